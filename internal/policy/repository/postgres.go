package repository

import (
	"context"
	"database/sql"
	"fmt"

	"maritime-onboarding/backend/internal/policy/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a policy repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the policy for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Policy, error) {
	query := `SELECT id, name, rules, enabled, created_at FROM policies WHERE id = $1`

	p := &domain.Policy{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.Rules, &p.Enabled, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}
	return p, nil
}

// ListEnabled returns all enabled policies, oldest first so later policies
// layer on earlier ones.
func (r *PostgresRepository) ListEnabled(ctx context.Context) ([]*domain.Policy, error) {
	query := `SELECT id, name, rules, enabled, created_at FROM policies WHERE enabled ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	var out []*domain.Policy
	for rows.Next() {
		p := &domain.Policy{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Rules, &p.Enabled, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create persists the policy to the database. The policy must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Policy) error {
	query := `INSERT INTO policies (id, name, rules, enabled, created_at) VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.Rules, p.Enabled, p.CreatedAt); err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, p *domain.Policy) error {
	query := `UPDATE policies SET name = $2, rules = $3, enabled = $4 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.Rules, p.Enabled); err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}
	return nil
}
