package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"maritime-onboarding/backend/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `
	id, user_id, ip_address, user_agent, device_fingerprint,
	access_jti, refresh_jti, refresh_token_hash,
	expires_at, revoked_at, last_activity, created_at`

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	query := `SELECT` + sessionColumns + ` FROM sessions WHERE id = $1`
	return r.scanSession(r.db.QueryRowContext(ctx, query, id))
}

// ListActiveByUser returns the user's live sessions, most recently active first.
func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	query := `
		SELECT` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > now()
		ORDER BY last_activity DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := r.scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	query := `
		INSERT INTO sessions (
			id, user_id, ip_address, user_agent, device_fingerprint,
			access_jti, refresh_jti, refresh_token_hash,
			expires_at, last_activity, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.UserID, s.IPAddress, s.UserAgent, s.DeviceFingerprint,
		s.AccessJti, s.RefreshJti, s.RefreshTokenHash,
		s.ExpiresAt, s.LastActivity, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Revoke marks the session with the given id as revoked.
func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	query := `UPDATE sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// RevokeAllByUser revokes every live session for the given user.
func (r *PostgresRepository) RevokeAllByUser(ctx context.Context, userID string) error {
	query := `UPDATE sessions SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to revoke user sessions: %w", err)
	}
	return nil
}

// UpdateLastActivity sets the session's last-activity timestamp.
func (r *PostgresRepository) UpdateLastActivity(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE sessions SET last_activity = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to update last activity: %w", err)
	}
	return nil
}

// RotateRefreshToken swaps jti and hash iff the stored jti still matches
// oldJti. The conditional WHERE makes concurrent rotations of the same token
// resolve to exactly one winner.
func (r *PostgresRepository) RotateRefreshToken(ctx context.Context, sessionID, oldJti, newJti, newHash string) (bool, error) {
	query := `
		UPDATE sessions
		SET refresh_jti = $3, refresh_token_hash = $4
		WHERE id = $1 AND refresh_jti = $2 AND revoked_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, sessionID, oldJti, newJti, newHash)
	if err != nil {
		return false, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// UpdateAccessJti records the latest access token jti for the session.
func (r *PostgresRepository) UpdateAccessJti(ctx context.Context, sessionID, jti string) error {
	query := `UPDATE sessions SET access_jti = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, sessionID, jti); err != nil {
		return fmt.Errorf("failed to update access jti: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions that expired or were revoked more than
// olderThan ago.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE (expires_at < now() - $1::interval)
		   OR (revoked_at IS NOT NULL AND revoked_at < now() - $1::interval)`

	res, err := r.db.ExecContext(ctx, query, fmt.Sprintf("%d seconds", int64(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanSession(row rowScanner) (*domain.Session, error) {
	s := &domain.Session{}
	err := row.Scan(
		&s.ID, &s.UserID, &s.IPAddress, &s.UserAgent, &s.DeviceFingerprint,
		&s.AccessJti, &s.RefreshJti, &s.RefreshTokenHash,
		&s.ExpiresAt, &s.RevokedAt, &s.LastActivity, &s.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return s, nil
}
