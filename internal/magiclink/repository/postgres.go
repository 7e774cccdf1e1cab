package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"maritime-onboarding/backend/internal/magiclink/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, l *domain.MagicLink) error {
	query := `
		INSERT INTO magic_links (id, email, token_hash, request_ip, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		l.ID, l.Email, l.TokenHash, l.RequestIP, l.ExpiresAt, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create magic link: %w", err)
	}
	return nil
}

// GetByTokenHash returns the link for the hash, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.MagicLink, error) {
	query := `
		SELECT id, email, token_hash, request_ip, expires_at, used_at, used_ip, superseded, created_at
		FROM magic_links
		WHERE token_hash = $1`

	l := &domain.MagicLink{}
	var usedIP sql.NullString
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&l.ID, &l.Email, &l.TokenHash, &l.RequestIP,
		&l.ExpiresAt, &l.UsedAt, &usedIP, &l.Superseded, &l.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get magic link: %w", err)
	}
	l.UsedIP = usedIP.String
	return l, nil
}

// Consume marks the link used. The conditional WHERE makes concurrent
// exchanges of the same token resolve to exactly one winner.
func (r *PostgresRepository) Consume(ctx context.Context, tokenHash, usedIP string) (bool, error) {
	query := `
		UPDATE magic_links
		SET used_at = now(), used_ip = $2
		WHERE token_hash = $1
		  AND used_at IS NULL
		  AND superseded = false
		  AND expires_at > now()`

	res, err := r.db.ExecContext(ctx, query, tokenHash, usedIP)
	if err != nil {
		return false, fmt.Errorf("failed to consume magic link: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) SupersedeOthers(ctx context.Context, email, exceptID string) error {
	query := `
		UPDATE magic_links
		SET superseded = true
		WHERE email = $1 AND id <> $2 AND used_at IS NULL AND superseded = false`

	if _, err := r.db.ExecContext(ctx, query, email, exceptID); err != nil {
		return fmt.Errorf("failed to supersede magic links: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountRecentByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	query := `SELECT count(*) FROM magic_links WHERE email = $1 AND created_at >= $2`

	var n int
	if err := r.db.QueryRowContext(ctx, query, email, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count magic links: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `DELETE FROM magic_links WHERE expires_at < now() - $1::interval`

	res, err := r.db.ExecContext(ctx, query, fmt.Sprintf("%d seconds", int64(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired magic links: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}
