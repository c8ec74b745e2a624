package dto

import "time"

// Form drafts hold the editable fields of each entity. The label tag names the
// field in user-facing validation messages.

type OrganizationDraft struct {
	Name        string `json:"name" label:"Name" validate:"required,max=120"`
	Email       string `json:"email" label:"Email" validate:"required,email"`
	Phone       string `json:"phone" label:"Phone" validate:"omitempty,max=32"`
	Address     string `json:"address" label:"Address" validate:"omitempty,max=255"`
	Website     string `json:"website" label:"Website" validate:"omitempty,url"`
	Description string `json:"description" label:"Description" validate:"omitempty,max=2000"`
}

type UserDraft struct {
	Name  string `json:"name" label:"Name" validate:"required,max=120"`
	Email string `json:"email" label:"Email" validate:"required,email"`
	Phone string `json:"phone" label:"Phone" validate:"omitempty,max=32"`
	Role  string `json:"role" label:"Role" validate:"required,oneof=citizen charity government admin"`
}

type IncidentDraft struct {
	Title       string `json:"title" label:"Title" validate:"required,max=150"`
	Description string `json:"description" label:"Description" validate:"required,max=5000"`
	Type        string `json:"type" label:"Type" validate:"required,oneof=flood fire earthquake storm medical other"`
	Severity    string `json:"severity" label:"Severity" validate:"required,oneof=low medium high critical"`
	Location    string `json:"location" label:"Location" validate:"required,max=255"`
}

type CampaignDraft struct {
	Title            string     `json:"title" label:"Title" validate:"required,max=150"`
	Description      string     `json:"description" label:"Description" validate:"required,max=5000"`
	Location         string     `json:"location" label:"Location" validate:"required,max=255"`
	StartDate        *time.Time `json:"startDate" label:"Start date" validate:"required"`
	EndDate          *time.Time `json:"endDate" label:"End date" validate:"required,gtfield=StartDate"`
	VolunteersNeeded int        `json:"volunteersNeeded" label:"Volunteers needed" validate:"gte=1,lte=10000"`
}

type AnnouncementDraft struct {
	Title    string `json:"title" label:"Title" validate:"required,max=150"`
	Content  string `json:"content" label:"Content" validate:"required,max=10000"`
	Audience string `json:"audience" label:"Audience" validate:"required,oneof=all citizen charity government"`
	Priority string `json:"priority" label:"Priority" validate:"required,oneof=low normal high"`
}

type NewsDraft struct {
	Title    string `json:"title" label:"Title" validate:"required,max=150"`
	Content  string `json:"content" label:"Content" validate:"required,max=20000"`
	Category string `json:"category" label:"Category" validate:"required,oneof=update alert story relief"`
	ImageURL string `json:"imageUrl" label:"Image URL" validate:"omitempty,url"`
}
