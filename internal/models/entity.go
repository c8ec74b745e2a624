package models

// EntityStatus is the activity axis of an entity lifecycle.
type EntityStatus string

const (
	StatusPending  EntityStatus = "pending"
	StatusActive   EntityStatus = "active"
	StatusInactive EntityStatus = "inactive"
)

// Valid reports whether s is one of the known statuses.
func (s EntityStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusInactive:
		return true
	}
	return false
}

// Lifecycle holds the two independent lifecycle axes shared by every entity.
type Lifecycle struct {
	Status     EntityStatus `json:"status"`
	IsVerified bool         `json:"isVerified"`
}

// Entity is implemented by every record a screen can list. Implementations use
// value receivers; WithState returns a copy with the lifecycle replaced.
type Entity[T any] interface {
	EntityID() string
	OwnerID() string
	State() Lifecycle
	WithState(Lifecycle) T
}
