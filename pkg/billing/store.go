package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const subscriptionColumns = `user_id, stripe_customer_id, stripe_subscription_id, status, price_id, period_start, updated_at`

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// checkInvariant rejects a write that would pair the free status with an
// external subscription, or a paid status without one.
func checkInvariant(status Status, subscriptionID *string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidOperation, status)
	}
	hasExternal := subscriptionID != nil && *subscriptionID != ""
	if (status == StatusFree) == hasExternal {
		return fmt.Errorf("%w: status %s with subscription id set=%t", ErrInvalidOperation, status, hasExternal)
	}
	return nil
}

// Create inserts a new subscription record
func (s *PostgresStore) Create(ctx context.Context, sub *Subscription) error {
	if err := checkInvariant(sub.Status, sub.StripeSubscriptionID); err != nil {
		return err
	}

	query := `
		INSERT INTO subscriptions (user_id, stripe_customer_id, stripe_subscription_id, status, price_id, period_start)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		sub.UserID, sub.StripeCustomerID, sub.StripeSubscriptionID, sub.Status, sub.PriceID, sub.PeriodStart.UTC()).
		Scan(&sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// GetByUser returns the record for userID
func (s *PostgresStore) GetByUser(ctx context.Context, userID string) (*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`

	sub, err := scanSubscription(s.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotProvisioned
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

// ApplyByCustomer writes snap onto the record owned by customerID in a
// single statement and returns the owning user id. Applying the same
// snapshot twice leaves the record unchanged apart from updated_at.
func (s *PostgresStore) ApplyByCustomer(ctx context.Context, customerID string, snap Snapshot) (string, error) {
	if err := checkInvariant(snap.Status, &snap.SubscriptionID); err != nil {
		return "", err
	}

	var periodStart sql.NullTime
	if !snap.PeriodStart.IsZero() {
		periodStart = sql.NullTime{Time: snap.PeriodStart.UTC(), Valid: true}
	}

	query := `
		UPDATE subscriptions
		SET stripe_subscription_id = $2,
		    status = $3,
		    price_id = $4,
		    period_start = COALESCE($5, period_start),
		    updated_at = now()
		WHERE stripe_customer_id = $1
		RETURNING user_id
	`
	var userID string
	err := s.db.QueryRowContext(ctx, query, customerID, snap.SubscriptionID, snap.Status, snap.PriceID, periodStart).
		Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: no subscription for customer %s", ErrNotFound, customerID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to apply subscription snapshot: %w", err)
	}
	return userID, nil
}

// SetFree moves userID to the free plan and clears the external
// subscription. The period restarts only when the record was not already
// free.
func (s *PostgresStore) SetFree(ctx context.Context, userID, freePriceID string) error {
	query := `
		UPDATE subscriptions
		SET status = 'free',
		    stripe_subscription_id = NULL,
		    price_id = $2,
		    period_start = CASE WHEN status = 'free' THEN period_start ELSE now() END,
		    updated_at = now()
		WHERE user_id = $1
	`
	res, err := s.db.ExecContext(ctx, query, userID, freePriceID)
	if err != nil {
		return fmt.Errorf("failed to downgrade subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to downgrade subscription: %w", err)
	}
	if n == 0 {
		return ErrNotProvisioned
	}
	return nil
}

// ListByStatus returns up to limit records in any of statuses, least
// recently updated first.
func (s *PostgresStore) ListByStatus(ctx context.Context, statuses []Status, limit int) ([]*Subscription, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}

	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = ANY($1)
		ORDER BY updated_at
		LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(names), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(row rowScanner) (*Subscription, error) {
	sub := &Subscription{}
	err := row.Scan(&sub.UserID, &sub.StripeCustomerID, &sub.StripeSubscriptionID,
		&sub.Status, &sub.PriceID, &sub.PeriodStart, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
