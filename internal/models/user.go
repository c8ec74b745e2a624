package models

import "time"

// UserRole represents the platform roles used for RBAC.
type UserRole string

const (
	RoleCitizen    UserRole = "citizen"
	RoleCharity    UserRole = "charity"
	RoleGovernment UserRole = "government"
	RoleAdmin      UserRole = "admin"
)

// AllRoles lists every role in dashboard order.
var AllRoles = []UserRole{RoleCitizen, RoleCharity, RoleGovernment, RoleAdmin}

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// User represents a platform account as returned by the backend.
type User struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Phone string   `json:"phone,omitempty"`
	Role  UserRole `json:"role"`
	Lifecycle
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u User) EntityID() string { return u.ID }
func (u User) OwnerID() string  { return "" }
func (u User) State() Lifecycle { return u.Lifecycle }

func (u User) WithState(l Lifecycle) User {
	u.Lifecycle = l
	return u
}
