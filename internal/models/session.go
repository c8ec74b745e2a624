package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the payload of the bearer token issued by the CDRP backend.
type JWTClaims struct {
	UserID string   `json:"userId"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email,omitempty"`
	Name   string   `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Session is the authenticated caller, built once per request and passed to
// screens explicitly. Token is forwarded to the backend.
type Session struct {
	UserID string   `json:"userId"`
	Email  string   `json:"email,omitempty"`
	Name   string   `json:"name,omitempty"`
	Role   UserRole `json:"role"`
	Token  string   `json:"-"`
}

// IsAdmin reports whether the session belongs to an administrator.
func (s Session) IsAdmin() bool { return s.Role == RoleAdmin }

// HasRole reports whether the session role is one of roles.
func (s Session) HasRole(roles ...UserRole) bool {
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}
