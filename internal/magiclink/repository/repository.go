package repository

import (
	"context"
	"time"

	"maritime-onboarding/backend/internal/magiclink/domain"
)

// Repository defines persistence for magic links.
type Repository interface {
	Create(ctx context.Context, l *domain.MagicLink) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.MagicLink, error)
	// Consume marks the link used, but only if it has not been used yet and
	// has not expired. It reports whether this caller won the link; a false
	// return with nil error means someone else consumed it first or it
	// lapsed in the meantime.
	Consume(ctx context.Context, tokenHash, usedIP string) (bool, error)
	// SupersedeOthers retires every other outstanding link for the email.
	SupersedeOthers(ctx context.Context, email, exceptID string) error
	// CountRecentByEmail counts links requested for the email since the given
	// instant, for rate limiting.
	CountRecentByEmail(ctx context.Context, email string, since time.Time) (int, error)
	// DeleteExpired removes links that expired more than olderThan ago.
	DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}
