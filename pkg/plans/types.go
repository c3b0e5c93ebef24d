package plans

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrPlanNotFound is returned when no plan matches a lookup
	ErrPlanNotFound = errors.New("plan not found")
	// ErrInvalidCatalog is returned when a plan catalog fails validation
	ErrInvalidCatalog = errors.New("invalid plan catalog")
)

// Plan is a named billing plan bound to one provider price. Plans are
// immutable once seeded.
type Plan struct {
	ID              string    `json:"id" yaml:"-"`
	Name            string    `json:"name" yaml:"name"`
	PriceCents      int64     `json:"priceCents" yaml:"price_cents"`
	CreditAllotment int64     `json:"creditAllotment" yaml:"credit_allotment"`
	StripePriceID   string    `json:"stripePriceId" yaml:"stripe_price_id"`
	CreatedAt       time.Time `json:"createdAt" yaml:"-"`
}

// IsFree reports whether the plan costs nothing
func (p *Plan) IsFree() bool {
	return p.PriceCents == 0
}

// PriceIDs binds the default plans to configured provider prices
type PriceIDs struct {
	Free     string
	Pro      string
	Business string
}

// Store persists the plan catalog
type Store interface {
	Seed(ctx context.Context, plans []Plan) error
	List(ctx context.Context) ([]*Plan, error)
	GetByPriceID(ctx context.Context, priceID string) (*Plan, error)
}
