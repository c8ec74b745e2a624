package models

import "time"

// NewsPost is a news article shown on the public feed.
type NewsPost struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
	ImageURL string `json:"imageUrl,omitempty"`
	AuthorID string `json:"authorId"`
	Lifecycle
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (n NewsPost) EntityID() string { return n.ID }
func (n NewsPost) OwnerID() string  { return n.AuthorID }
func (n NewsPost) State() Lifecycle { return n.Lifecycle }

func (n NewsPost) WithState(l Lifecycle) NewsPost {
	n.Lifecycle = l
	return n
}
