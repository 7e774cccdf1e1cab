package domain

import "time"

// Identity holds a user's local credential. Providers other than local are out
// of scope; the enum stays so the storage model does not need to change when
// federation lands.
type Identity struct {
	ID           string
	UserID       string
	Provider     IdentityProvider
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type IdentityProvider string

const (
	IdentityProviderLocal IdentityProvider = "local"
)
