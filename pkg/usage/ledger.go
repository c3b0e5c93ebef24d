package usage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/creditmeter/pkg/observability"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// PostgresLedger is the append-only usage event store
type PostgresLedger struct {
	db      *sql.DB
	metrics *observability.Metrics
}

// NewPostgresLedger creates a new PostgresLedger
func NewPostgresLedger(db *sql.DB, metrics *observability.Metrics) *PostgresLedger {
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &PostgresLedger{db: db, metrics: metrics}
}

// Record appends a usage event to projectID, which must be owned by userID
func (l *PostgresLedger) Record(ctx context.Context, userID, projectID string, credits int64, typ Type, metadata map[string]interface{}) (*Event, error) {
	return l.RecordAt(ctx, userID, projectID, credits, typ, metadata, time.Time{})
}

// RecordAt is Record with an explicit timestamp; a zero at means now
func (l *PostgresLedger) RecordAt(ctx context.Context, userID, projectID string, credits int64, typ Type, metadata map[string]interface{}, at time.Time) (*Event, error) {
	if credits < 0 {
		return nil, fmt.Errorf("%w: credits must be non-negative", ErrInvalidUsage)
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidUsage, typ)
	}
	if _, err := uuid.Parse(projectID); err != nil {
		return nil, ErrProjectNotFound
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata is not JSON encodable", ErrInvalidUsage)
	}

	var createdAt sql.NullTime
	if !at.IsZero() {
		createdAt = sql.NullTime{Time: at.UTC(), Valid: true}
	}

	ev := &Event{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Credits:   credits,
		Type:      typ,
		Metadata:  metadata,
	}

	query := `
		INSERT INTO usage_events (id, project_id, credits, type, metadata, created_at)
		SELECT $1, p.id, $3, $4, $5, COALESCE($7, now())
		FROM projects p
		WHERE p.id = $2 AND p.user_id = $6
		RETURNING created_at
	`
	err = l.db.QueryRowContext(ctx, query, ev.ID, projectID, credits, typ, raw, userID, createdAt).
		Scan(&ev.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record usage: %w", err)
	}

	l.metrics.UsageEventsRecordedTotal.WithLabelValues(string(typ)).Inc()
	l.metrics.UsageCreditsRecordedTotal.WithLabelValues(string(typ)).Add(float64(credits))
	return ev, nil
}

// List returns the user's most recent events across all projects, newest
// first.
func (l *PostgresLedger) List(ctx context.Context, userID string, limit int) ([]DetailedEvent, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := `
		SELECT u.id, u.project_id, u.credits, u.type, u.metadata, u.created_at, p.name
		FROM usage_events u
		JOIN projects p ON p.id = u.project_id
		WHERE p.user_id = $1
		ORDER BY u.created_at DESC
		LIMIT $2
	`
	rows, err := l.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage: %w", err)
	}
	defer rows.Close()

	out := []DetailedEvent{}
	for rows.Next() {
		var ev DetailedEvent
		var raw []byte
		if err := rows.Scan(&ev.ID, &ev.ProjectID, &ev.Credits, &ev.Type, &raw, &ev.CreatedAt, &ev.ProjectName); err != nil {
			return nil, fmt.Errorf("failed to scan usage event: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &ev.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal usage metadata: %w", err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
