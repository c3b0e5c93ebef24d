package api

import (
	"context"
	"iter"
	"time"

	"github.com/platinummonkey/creditmeter/pkg/auth"
	"github.com/platinummonkey/creditmeter/pkg/billing"
	"github.com/platinummonkey/creditmeter/pkg/plans"
	"github.com/platinummonkey/creditmeter/pkg/projects"
	"github.com/platinummonkey/creditmeter/pkg/usage"
	"github.com/platinummonkey/creditmeter/pkg/users"
)

// Identity signs users up and in
type Identity interface {
	Signup(ctx context.Context, email, password, name string) (*auth.Result, error)
	Login(ctx context.Context, email, password string) (*auth.Result, error)
	GoogleLogin(ctx context.Context, idToken string) (*auth.Result, error)
}

// Subscriptions drives plan changes through the payment provider
type Subscriptions interface {
	InitiateCheckout(ctx context.Context, userID, priceID string) (*billing.CheckoutSession, error)
	CancelOrDowngradeToFree(ctx context.Context, userID string) (*users.View, error)
	ConfirmSession(ctx context.Context, userID, sessionID string) (*billing.ConfirmResult, error)
	CreatePortalSession(ctx context.Context, userID string) (string, error)
	HandleProviderEvent(ctx context.Context, payload []byte, signature string) error
}

// PlanCatalog lists plans and identifies the free price
type PlanCatalog interface {
	List(ctx context.Context) ([]*plans.Plan, error)
	IsFreePrice(priceID string) bool
}

// UsageReader answers usage queries
type UsageReader interface {
	Summary(ctx context.Context, userID string) (*usage.Summary, error)
	DailySeries(ctx context.Context, userID string, window usage.Window) iter.Seq2[usage.DailyUsage, error]
}

// UsageLedger records and lists usage events
type UsageLedger interface {
	Record(ctx context.Context, userID, projectID string, credits int64, typ usage.Type, metadata map[string]interface{}) (*usage.Event, error)
	List(ctx context.Context, userID string, limit int) ([]usage.DetailedEvent, error)
}

// ProjectStore creates and lists projects
type ProjectStore interface {
	Create(ctx context.Context, userID, name string) (*projects.Project, error)
	ListWithStats(ctx context.Context, userID string) ([]projects.WithStats, error)
}

// UserViews renders the current user
type UserViews interface {
	View(ctx context.Context, id string) (*users.View, error)
}

// SignupRequest is the body of POST /api/auth/signup
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// GoogleLoginRequest is the body of POST /api/auth/google
type GoogleLoginRequest struct {
	Token string `json:"token"`
}

// CheckoutRequest is the body of POST /api/subscriptions/checkout
type CheckoutRequest struct {
	PriceID string `json:"priceId"`
}

// CheckoutResponse is returned when a hosted checkout session was created
type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// PlanChangeResponse is returned when a plan change completed immediately
type PlanChangeResponse struct {
	Success bool        `json:"success"`
	User    *users.View `json:"user"`
}

// PortalResponse carries the billing portal URL
type PortalResponse struct {
	URL string `json:"url"`
}

// WebhookResponse acknowledges a processed provider event
type WebhookResponse struct {
	Received bool `json:"received"`
}

// RecordUsageRequest is the body of POST /api/usage/events
type RecordUsageRequest struct {
	ProjectID string                 `json:"projectId"`
	Credits   int64                  `json:"credits"`
	Type      usage.Type             `json:"type"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// CreateProjectRequest is the body of POST /api/projects
type CreateProjectRequest struct {
	Name string `json:"name"`
}

// DailyUsageResponse is the body of GET /api/usage/daily
type DailyUsageResponse struct {
	Window int                `json:"window"`
	Start  time.Time          `json:"start"`
	Days   []usage.DailyUsage `json:"days"`
}
