package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"maritime-onboarding/backend/internal/identity/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an identity repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByUserAndProvider returns the identity for the user and provider, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByUserAndProvider(ctx context.Context, userID string, provider domain.IdentityProvider) (*domain.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, provider, password_hash, created_at, updated_at
		 FROM identities WHERE user_id = $1 AND provider = $2`,
		userID, string(provider))
	var i domain.Identity
	var p string
	err := row.Scan(&i.ID, &i.UserID, &p, &i.PasswordHash, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	i.Provider = domain.IdentityProvider(p)
	return &i, nil
}

// Create persists the identity and seeds the password history with its hash.
func (r *PostgresRepository) Create(ctx context.Context, i *domain.Identity) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO identities (id, user_id, provider, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		i.ID, i.UserID, string(i.Provider), i.PasswordHash, i.CreatedAt, i.UpdatedAt)
	if err != nil {
		return err
	}
	if i.PasswordHash != "" {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO password_history (id, user_id, password_hash, created_at)
			 VALUES ($1, $2, $3, $4)`,
			uuid.New().String(), i.UserID, i.PasswordHash, i.CreatedAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpdatePasswordHash replaces the identity's hash and records the new hash in
// the password history in one transaction.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, identityID, newHash string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	var userID string
	err = tx.QueryRowContext(ctx,
		`UPDATE identities SET password_hash = $2, updated_at = $3 WHERE id = $1 RETURNING user_id`,
		identityID, newHash, now).Scan(&userID)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO password_history (id, user_id, password_hash, created_at)
		 VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), userID, newHash, now)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// RecentPasswordHashes returns up to limit most recent password hashes for the user, newest first.
func (r *PostgresRepository) RecentPasswordHashes(ctx context.Context, userID string, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT password_hash FROM password_history
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
