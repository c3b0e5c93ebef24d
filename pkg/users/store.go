package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts user, assigning its ID and CreatedAt
func (s *PostgresStore) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = NormalizeEmail(user.Email)
	if user.AuthMethod == "" {
		user.AuthMethod = AuthMethodEmail
	}

	query := `
		INSERT INTO users (id, email, name, password_hash, auth_method)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := s.db.QueryRowContext(ctx, query, user.ID, user.Email, user.Name, user.PasswordHash, user.AuthMethod).
		Scan(&user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID returns the user with id
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*User, error) {
	return s.getOne(ctx, `WHERE id = $1`, id)
}

// GetByEmail returns the user with email
func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.getOne(ctx, `WHERE email = $1`, NormalizeEmail(email))
}

func (s *PostgresStore) getOne(ctx context.Context, where string, arg string) (*User, error) {
	query := `SELECT id, email, name, password_hash, auth_method, created_at FROM users ` + where

	u := &User{}
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.AuthMethod, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// View returns the user joined with its subscription and plan name
func (s *PostgresStore) View(ctx context.Context, id string) (*View, error) {
	query := `
		SELECT u.id, u.email, u.name, s.status, s.price_id, p.name
		FROM users u
		LEFT JOIN subscriptions s ON s.user_id = u.id
		LEFT JOIN plans p ON p.stripe_price_id = s.price_id
		WHERE u.id = $1
	`
	v := &View{}
	var status, priceID, planName sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).
		Scan(&v.ID, &v.Email, &v.Name, &status, &priceID, &planName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user view: %w", err)
	}

	if status.Valid {
		v.Subscription = &SubscriptionView{
			Status:   status.String,
			PlanID:   priceID.String,
			PlanName: planName.String,
		}
	}
	return v, nil
}

// ListIDs returns every user id, oldest first
func (s *PostgresStore) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
