package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

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

// Create inserts a project named name for userID
func (s *PostgresStore) Create(ctx context.Context, userID, name string) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	p := &Project{ID: uuid.NewString(), UserID: userID, Name: name}
	query := `INSERT INTO projects (id, user_id, name) VALUES ($1, $2, $3) RETURNING created_at`
	if err := s.db.QueryRowContext(ctx, query, p.ID, userID, name).Scan(&p.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return p, nil
}

// Get returns projectID if it is owned by userID
func (s *PostgresStore) Get(ctx context.Context, userID, projectID string) (*Project, error) {
	if _, err := uuid.Parse(projectID); err != nil {
		return nil, ErrNotFound
	}
	query := `SELECT id, user_id, name, created_at FROM projects WHERE id = $1 AND user_id = $2`

	p := &Project{}
	err := s.db.QueryRowContext(ctx, query, projectID, userID).Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// ListByUser returns the user's projects, oldest first
func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]*Project, error) {
	query := `SELECT id, user_id, name, created_at FROM projects WHERE user_id = $1 ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []*Project
	for rows.Next() {
		p := &Project{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListWithStats returns the user's projects with per-type credit totals
func (s *PostgresStore) ListWithStats(ctx context.Context, userID string) ([]WithStats, error) {
	query := `
		SELECT p.id, p.user_id, p.name, p.created_at,
			COALESCE(SUM(u.credits), 0),
			COALESCE(SUM(u.credits) FILTER (WHERE u.type = 'api_call'), 0),
			COALESCE(SUM(u.credits) FILTER (WHERE u.type = 'content_analysis'), 0),
			COALESCE(SUM(u.credits) FILTER (WHERE u.type = 'model_training'), 0)
		FROM projects p
		LEFT JOIN usage_events u ON u.project_id = p.id
		WHERE p.user_id = $1
		GROUP BY p.id
		ORDER BY p.created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project stats: %w", err)
	}
	defer rows.Close()

	out := []WithStats{}
	for rows.Next() {
		var p WithStats
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt,
			&p.Usage.Credits, &p.Usage.APICalls, &p.Usage.ContentAnalysis, &p.Usage.ModelTraining); err != nil {
			return nil, fmt.Errorf("failed to scan project stats: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// EnsureDefault returns the user's oldest project, creating DefaultName
// when the user has none.
func (s *PostgresStore) EnsureDefault(ctx context.Context, userID string) (*Project, error) {
	existing, err := s.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing[0], nil
	}
	return s.Create(ctx, userID, DefaultName)
}
