package domain

import (
	"errors"
	"time"
)

// User is the principal this subsystem authenticates. Profile data beyond what
// identity assertions need lives in the user directory, not here.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      Role
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Role is the principal's role within the onboarding platform.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleCrew    Role = "crew"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleCrew:
		return true
	}
	return false
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if !u.Role.Valid() {
		return errors.New("role must be admin, manager, or crew")
	}
	return nil
}
