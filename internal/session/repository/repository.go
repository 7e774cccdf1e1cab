package repository

import (
	"context"
	"time"

	"maritime-onboarding/backend/internal/session/domain"
)

// Repository defines persistence for sessions.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// ListActiveByUser returns the user's non-revoked, non-expired sessions
	// ordered by last activity, most recent first.
	ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	Revoke(ctx context.Context, id string) error
	RevokeAllByUser(ctx context.Context, userID string) error
	UpdateLastActivity(ctx context.Context, id string, at time.Time) error
	// RotateRefreshToken swaps the session's refresh jti and hash, but only if
	// the stored jti still equals oldJti. It reports whether the swap won;
	// a false return with nil error means another caller rotated first.
	RotateRefreshToken(ctx context.Context, sessionID, oldJti, newJti, newHash string) (bool, error)
	// UpdateAccessJti records the jti of the latest access token minted for
	// the session.
	UpdateAccessJti(ctx context.Context, sessionID, jti string) error
	// DeleteExpired removes sessions whose expiry or revocation is older than
	// olderThan.
	DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}
