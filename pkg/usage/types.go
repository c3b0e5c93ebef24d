package usage

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidWindow is returned for a daily series window other than 7 or 30
	ErrInvalidWindow = errors.New("window must be 7 or 30 days")
	// ErrInvalidUsage is returned when a usage event fails validation
	ErrInvalidUsage = errors.New("invalid usage event")
	// ErrProjectNotFound is returned when recording against a project the
	// user does not own
	ErrProjectNotFound = errors.New("project not found")
)

// Type classifies a usage event
type Type string

const (
	TypeAPICall         Type = "api_call"
	TypeContentAnalysis Type = "content_analysis"
	TypeModelTraining   Type = "model_training"
)

// Types lists every known usage type
var Types = []Type{TypeAPICall, TypeContentAnalysis, TypeModelTraining}

// Valid reports whether t is a known usage type
func (t Type) Valid() bool {
	switch t {
	case TypeAPICall, TypeContentAnalysis, TypeModelTraining:
		return true
	}
	return false
}

// Event is an immutable ledger entry
type Event struct {
	ID        string                 `json:"id"`
	ProjectID string                 `json:"projectId"`
	Credits   int64                  `json:"credits"`
	Type      Type                   `json:"type"`
	Metadata  map[string]interface{} `json:"metadata"`
	CreatedAt time.Time              `json:"createdAt"`
}

// DetailedEvent is an Event with its project name
type DetailedEvent struct {
	Event
	ProjectName string `json:"projectName"`
}

// DailyUsage is the credit total for one UTC calendar day
type DailyUsage struct {
	Date    time.Time `json:"date"`
	Credits int64     `json:"credits"`
}

// Window is a trailing daily series length in days
type Window int

const (
	Window7  Window = 7
	Window30 Window = 30
)

// ParseWindow validates a window length
func ParseWindow(days int) (Window, error) {
	w := Window(days)
	if !w.Valid() {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidWindow, days)
	}
	return w, nil
}

// Valid reports whether w is a supported window
func (w Window) Valid() bool {
	return w == Window7 || w == Window30
}

// Start returns midnight UTC of the first day in the window ending on the
// UTC day containing now.
func (w Window) Start(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(int(w) - 1))
}
