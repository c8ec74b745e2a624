package models

import "time"

// Announcement is an official notice published by a government agency.
type Announcement struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Audience string `json:"audience"`
	Priority string `json:"priority"`
	AuthorID string `json:"authorId"`
	Lifecycle
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (a Announcement) EntityID() string { return a.ID }
func (a Announcement) OwnerID() string  { return a.AuthorID }
func (a Announcement) State() Lifecycle { return a.Lifecycle }

func (a Announcement) WithState(l Lifecycle) Announcement {
	a.Lifecycle = l
	return a
}
