package repository

import (
	"context"

	"maritime-onboarding/backend/internal/user/domain"
)

// Repository defines lookups against the user directory. This subsystem never
// owns profile data; Create exists for seeding and tests.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}
