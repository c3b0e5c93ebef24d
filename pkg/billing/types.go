package billing

import (
	"context"
	"time"

	"github.com/platinummonkey/creditmeter/pkg/plans"
	"github.com/platinummonkey/creditmeter/pkg/users"
)

// Status is the local subscription status
type Status string

const (
	StatusActive     Status = "active"
	StatusFree       Status = "free"
	StatusIncomplete Status = "incomplete"
	StatusPastDue    Status = "past_due"
	StatusCanceled   Status = "canceled"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusFree, StatusIncomplete, StatusPastDue, StatusCanceled:
		return true
	}
	return false
}

// Subscription is the local record of a user's plan. A free record has a
// nil StripeSubscriptionID; every other status has one.
type Subscription struct {
	UserID               string    `json:"userId"`
	StripeCustomerID     string    `json:"stripeCustomerId"`
	StripeSubscriptionID *string   `json:"stripeSubscriptionId"`
	Status               Status    `json:"status"`
	PriceID              string    `json:"priceId"`
	PeriodStart          time.Time `json:"periodStart"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Snapshot is provider-side subscription state applied to a local record
type Snapshot struct {
	SubscriptionID string
	CustomerID     string
	Status         Status
	PriceID        string
	PeriodStart    time.Time
}

// CheckoutSession is a hosted checkout session. Subscription is set once
// the session has produced a subscription; when fetched with
// GetCheckoutSession it is a full snapshot, when parsed from an event only
// SubscriptionID is populated.
type CheckoutSession struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	CustomerID    string    `json:"-"`
	PaymentStatus string    `json:"-"`
	Subscription  *Snapshot `json:"-"`
}

// Paid reports whether the session's payment completed
func (s *CheckoutSession) Paid() bool {
	return s.PaymentStatus == "paid"
}

// Event is a verified provider webhook event
type Event struct {
	ID      string
	Type    string
	Session *CheckoutSession
}

// EventCheckoutSessionCompleted is the only event type acted upon
const EventCheckoutSessionCompleted = "checkout.session.completed"

// ConfirmResult is returned by ConfirmSession. Success false means payment
// is not confirmed yet and the caller should retry later.
type ConfirmResult struct {
	Success bool        `json:"success"`
	User    *users.View `json:"user,omitempty"`
}

// Provider is the payment provider surface the reconciler depends on
type Provider interface {
	CreateCustomer(ctx context.Context, userID, email, name string) (string, error)
	CreateCheckoutSession(ctx context.Context, customerID, priceID string) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*Snapshot, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
	ParseEvent(payload []byte, signature string) (*Event, error)
}

// Store persists subscription records
type Store interface {
	Create(ctx context.Context, sub *Subscription) error
	GetByUser(ctx context.Context, userID string) (*Subscription, error)
	ApplyByCustomer(ctx context.Context, customerID string, snap Snapshot) (string, error)
	SetFree(ctx context.Context, userID, freePriceID string) error
	ListByStatus(ctx context.Context, statuses []Status, limit int) ([]*Subscription, error)
}

// PlanLookup resolves price ids against the plan catalog
type PlanLookup interface {
	ByPriceID(ctx context.Context, priceID string) (*plans.Plan, error)
	FreePriceID() string
}

// UserViews renders the user view returned after a plan change
type UserViews interface {
	View(ctx context.Context, id string) (*users.View, error)
}

// Deduper remembers processed webhook event ids
type Deduper interface {
	MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, key string) error
}
