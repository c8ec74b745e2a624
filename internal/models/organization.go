package models

import "time"

// OrganizationRole distinguishes charities from government agencies; both live
// in the organizations collection.
type OrganizationRole string

const (
	OrganizationCharity    OrganizationRole = "charity"
	OrganizationGovernment OrganizationRole = "government"
)

// Organization is a charity or a government agency registered on the platform.
type Organization struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Email       string           `json:"email"`
	Phone       string           `json:"phone,omitempty"`
	Address     string           `json:"address,omitempty"`
	Description string           `json:"description,omitempty"`
	Website     string           `json:"website,omitempty"`
	Role        OrganizationRole `json:"role"`
	Logo        string           `json:"logo,omitempty"`
	Lifecycle
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (o Organization) EntityID() string { return o.ID }

// OwnerID is empty: organizations are managed by administrators only.
func (o Organization) OwnerID() string { return "" }

func (o Organization) State() Lifecycle { return o.Lifecycle }

func (o Organization) WithState(l Lifecycle) Organization {
	o.Lifecycle = l
	return o
}
