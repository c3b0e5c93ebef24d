package plans

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Seed inserts plans that do not exist yet. Existing rows are left untouched.
func (s *PostgresStore) Seed(ctx context.Context, plans []Plan) error {
	query := `
		INSERT INTO plans (id, name, price_cents, credit_allotment, stripe_price_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO NOTHING
	`
	for _, p := range plans {
		if _, err := s.db.ExecContext(ctx, query,
			uuid.NewString(), p.Name, p.PriceCents, p.CreditAllotment, p.StripePriceID); err != nil {
			return fmt.Errorf("failed to seed plan %s: %w", p.Name, err)
		}
	}
	return nil
}

// List returns all plans ordered by price
func (s *PostgresStore) List(ctx context.Context) ([]*Plan, error) {
	query := `
		SELECT id, name, price_cents, credit_allotment, stripe_price_id, created_at
		FROM plans
		ORDER BY price_cents, name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var out []*Plan
	for rows.Next() {
		p := &Plan{}
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.CreditAllotment, &p.StripePriceID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetByPriceID returns the plan bound to a provider price
func (s *PostgresStore) GetByPriceID(ctx context.Context, priceID string) (*Plan, error) {
	query := `
		SELECT id, name, price_cents, credit_allotment, stripe_price_id, created_at
		FROM plans
		WHERE stripe_price_id = $1
	`
	p := &Plan{}
	err := s.db.QueryRowContext(ctx, query, priceID).
		Scan(&p.ID, &p.Name, &p.PriceCents, &p.CreditAllotment, &p.StripePriceID, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return p, nil
}
