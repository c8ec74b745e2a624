package models

import "time"

// CharityCampaign is a volunteer drive run by a charity.
type CharityCampaign struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Location         string     `json:"location"`
	StartDate        *time.Time `json:"startDate,omitempty"`
	EndDate          *time.Time `json:"endDate,omitempty"`
	VolunteersNeeded int        `json:"volunteersNeeded"`
	VolunteersJoined int        `json:"volunteersJoined"`
	CharityID        string     `json:"charityId"`
	ImageURL         string     `json:"imageUrl,omitempty"`
	Lifecycle
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c CharityCampaign) EntityID() string { return c.ID }
func (c CharityCampaign) OwnerID() string  { return c.CharityID }
func (c CharityCampaign) State() Lifecycle { return c.Lifecycle }

func (c CharityCampaign) WithState(l Lifecycle) CharityCampaign {
	c.Lifecycle = l
	return c
}
