// Package projects manages the projects that usage is recorded against.
package projects

import (
	"context"
	"errors"
	"time"
)

// DefaultName is the project created for users who have none
const DefaultName = "Default Project"

var (
	// ErrNotFound is returned when a project does not exist or belongs to
	// another user
	ErrNotFound = errors.New("project not found")
	// ErrNameRequired is returned when creating a project with a blank name
	ErrNameRequired = errors.New("project name is required")
)

// Project is a user-owned container for usage events
type Project struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Stats holds credit totals for a project, split by usage type
type Stats struct {
	Credits         int64 `json:"credits"`
	APICalls        int64 `json:"apiCalls"`
	ContentAnalysis int64 `json:"contentAnalysis"`
	ModelTraining   int64 `json:"modelTraining"`
}

// WithStats is a project and its usage totals
type WithStats struct {
	Project
	Usage Stats `json:"usage"`
}

// Store persists projects
type Store interface {
	Create(ctx context.Context, userID, name string) (*Project, error)
	Get(ctx context.Context, userID, projectID string) (*Project, error)
	ListByUser(ctx context.Context, userID string) ([]*Project, error)
	ListWithStats(ctx context.Context, userID string) ([]WithStats, error)
	EnsureDefault(ctx context.Context, userID string) (*Project, error)
}
