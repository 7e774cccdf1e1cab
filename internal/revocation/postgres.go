package revocation

import (
	"context"
	"database/sql"
	"time"

	"maritime-onboarding/backend/internal/config"
)

type PostgresStore struct {
	db        *sql.DB
	retention time.Duration
}

// NewPostgresStore returns a blacklist backed by the revoked_tokens table.
// retention is how long entries are kept past token expiry; it is floored at
// the maximum token lifetime so a live token's jti can never be cleaned away.
func NewPostgresStore(db *sql.DB, retention time.Duration) *PostgresStore {
	if retention < config.MaxAccessTTL {
		retention = config.MaxAccessTTL
	}
	return &PostgresStore{db: db, retention: retention}
}

// Revoke appends an entry for jti. ON CONFLICT DO NOTHING keeps the table
// append-only and the call idempotent under races.
func (s *PostgresStore) Revoke(ctx context.Context, jti, reason string, tokenExpiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO revoked_tokens (jti, revoked_at, reason, token_expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (jti) DO NOTHING`,
		jti, time.Now().UTC(), reason, tokenExpiresAt.UTC())
	return err
}

// IsRevoked reports whether jti is blacklisted. Returns an error only for
// database failures; callers treat that as revoked (fail-secure).
func (s *PostgresStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)`, jti).Scan(&revoked)
	if err != nil {
		return false, err
	}
	return revoked, nil
}

// CleanupExpired deletes entries whose token has been expired for at least the
// retention window. Safe to run concurrently; losers of a delete race simply
// remove zero rows.
func (s *PostgresStore) CleanupExpired(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.retention)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE token_expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
