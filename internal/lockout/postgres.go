package lockout

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresRepository persists lockout records in the login_lockouts table.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, identifier, ip string) (*Record, error) {
	query := `
		SELECT identifier, ip, attempt_count, lockout_count, locked_until, updated_at
		FROM login_lockouts
		WHERE identifier = $1 AND ip = $2`

	rec := &Record{}
	err := r.db.QueryRowContext(ctx, query, identifier, ip).Scan(
		&rec.Identifier, &rec.IP, &rec.AttemptCount, &rec.LockoutCount,
		&rec.LockedUntil, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lockout record: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) IncrementFailure(ctx context.Context, identifier, ip string) (*Record, error) {
	query := `
		INSERT INTO login_lockouts (identifier, ip, attempt_count, lockout_count, updated_at)
		VALUES ($1, $2, 1, 0, now())
		ON CONFLICT (identifier, ip) DO UPDATE
		SET attempt_count = login_lockouts.attempt_count + 1,
		    updated_at = now()
		RETURNING identifier, ip, attempt_count, lockout_count, locked_until, updated_at`

	rec := &Record{}
	err := r.db.QueryRowContext(ctx, query, identifier, ip).Scan(
		&rec.Identifier, &rec.IP, &rec.AttemptCount, &rec.LockoutCount,
		&rec.LockedUntil, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to increment lockout counter: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Lock(ctx context.Context, identifier, ip string, until time.Time) error {
	query := `
		UPDATE login_lockouts
		SET locked_until = $3,
		    lockout_count = lockout_count + 1,
		    attempt_count = 0,
		    updated_at = now()
		WHERE identifier = $1 AND ip = $2`

	if _, err := r.db.ExecContext(ctx, query, identifier, ip, until); err != nil {
		return fmt.Errorf("failed to lock record: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Clear(ctx context.Context, identifier, ip string) error {
	query := `DELETE FROM login_lockouts WHERE identifier = $1 AND ip = $2`
	if _, err := r.db.ExecContext(ctx, query, identifier, ip); err != nil {
		return fmt.Errorf("failed to clear lockout record: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteInert(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		DELETE FROM login_lockouts
		WHERE updated_at < now() - $1::interval
		  AND (locked_until IS NULL OR locked_until < now())`

	res, err := r.db.ExecContext(ctx, query, fmt.Sprintf("%d seconds", int64(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("failed to delete inert lockout records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}
