package repository

import (
	"context"

	"maritime-onboarding/backend/internal/identity/domain"
)

// Repository defines persistence for local identities and password history.
type Repository interface {
	GetByUserAndProvider(ctx context.Context, userID string, provider domain.IdentityProvider) (*domain.Identity, error)
	Create(ctx context.Context, i *domain.Identity) error
	// UpdatePasswordHash replaces the identity's hash and appends the previous
	// one to the password history.
	UpdatePasswordHash(ctx context.Context, identityID, newHash string) error
	// RecentPasswordHashes returns up to limit most recent password hashes for
	// the user, newest first, including the current one.
	RecentPasswordHashes(ctx context.Context, userID string, limit int) ([]string, error)
}
