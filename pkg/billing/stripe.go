package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/creditmeter/pkg/observability"
)

// StripeProvider implements Provider using the Stripe API
type StripeProvider struct {
	webhookSecret string
	clientURL     string
	metrics       *observability.Metrics
	tracer        trace.Tracer
}

// NewStripeProvider configures the Stripe client. clientURL is the frontend
// origin that checkout and the billing portal redirect back to.
func NewStripeProvider(secretKey, webhookSecret, clientURL string, metrics *observability.Metrics) *StripeProvider {
	stripe.Key = secretKey
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &StripeProvider{
		webhookSecret: webhookSecret,
		clientURL:     clientURL,
		metrics:       metrics,
		tracer:        observability.Tracer("creditmeter/billing"),
	}
}

// call runs one Stripe request inside a span and records its outcome
func (p *StripeProvider) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "stripe."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("stripe.operation", op)),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	p.metrics.ObserveProvider(op, start, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
		return mapStripeError(op, err)
	}
	return nil
}

// mapStripeError converts Stripe failures to the package taxonomy
func mapStripeError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
		return fmt.Errorf("stripe %s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("stripe %s: %w: %w", op, ErrProviderUnavailable, err)
}

// CreateCustomer creates a Stripe customer tagged with the user id
func (p *StripeProvider) CreateCustomer(ctx context.Context, userID, email, name string) (string, error) {
	var customerID string
	err := p.call(ctx, "create_customer", func(ctx context.Context) error {
		params := &stripe.CustomerParams{
			Email:    stripe.String(email),
			Metadata: map[string]string{"user_id": userID},
		}
		if name != "" {
			params.Name = stripe.String(name)
		}
		params.Context = ctx

		c, err := customer.New(params)
		if err != nil {
			return err
		}
		customerID = c.ID
		return nil
	})
	return customerID, err
}

// CreateCheckoutSession starts a hosted subscription checkout for priceID
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, customerID, priceID string) (*CheckoutSession, error) {
	var out *CheckoutSession
	err := p.call(ctx, "create_checkout_session", func(ctx context.Context) error {
		params := &stripe.CheckoutSessionParams{
			Customer:           stripe.String(customerID),
			Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
			PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
			LineItems: []*stripe.CheckoutSessionLineItemParams{
				{
					Price:    stripe.String(priceID),
					Quantity: stripe.Int64(1),
				},
			},
			SuccessURL: stripe.String(p.clientURL + "/?session_id={CHECKOUT_SESSION_ID}"),
			CancelURL:  stripe.String(p.clientURL + "/"),
		}
		params.Context = ctx

		s, err := checkoutsession.New(params)
		if err != nil {
			return err
		}
		out = sessionFromStripe(s)
		return nil
	})
	return out, err
}

// GetCheckoutSession retrieves a session with its subscription expanded
func (p *StripeProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	var out *CheckoutSession
	err := p.call(ctx, "get_checkout_session", func(ctx context.Context) error {
		params := &stripe.CheckoutSessionParams{}
		params.AddExpand("subscription")
		params.Context = ctx

		s, err := checkoutsession.Get(sessionID, params)
		if err != nil {
			return err
		}
		out = sessionFromStripe(s)
		return nil
	})
	return out, err
}

// GetSubscription retrieves the authoritative state of a subscription
func (p *StripeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*Snapshot, error) {
	var out *Snapshot
	err := p.call(ctx, "get_subscription", func(ctx context.Context) error {
		params := &stripe.SubscriptionParams{}
		params.Context = ctx

		sub, err := subscription.Get(subscriptionID, params)
		if err != nil {
			return err
		}
		out = snapshotFromStripe(sub)
		return nil
	})
	return out, err
}

// CancelSubscription cancels a subscription immediately
func (p *StripeProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return p.call(ctx, "cancel_subscription", func(ctx context.Context) error {
		params := &stripe.SubscriptionCancelParams{}
		params.Context = ctx

		_, err := subscription.Cancel(subscriptionID, params)
		return err
	})
}

// CreatePortalSession returns a billing portal URL for customerID
func (p *StripeProvider) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	var url string
	err := p.call(ctx, "create_portal_session", func(ctx context.Context) error {
		params := &stripe.BillingPortalSessionParams{
			Customer:  stripe.String(customerID),
			ReturnURL: stripe.String(p.clientURL + "/"),
		}
		params.Context = ctx

		s, err := portalsession.New(params)
		if err != nil {
			return err
		}
		url = s.URL
		return nil
	})
	return url, err
}

// ParseEvent verifies the Stripe-Signature header against the raw payload
// and decodes the event. Verification failures return ErrInvalidSignature.
func (p *StripeProvider) ParseEvent(payload []byte, signature string) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: event.ID, Type: string(event.Type)}
	if out.Type == EventCheckoutSessionCompleted && event.Data != nil {
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("failed to decode checkout session: %w", err)
		}
		out.Session = sessionFromStripe(&s)
	}
	return out, nil
}

// MapStatus maps a Stripe subscription status onto the local status set.
// Unrecognized statuses are treated as incomplete.
func MapStatus(status stripe.SubscriptionStatus) Status {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return StatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusPaused:
		return StatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return StatusCanceled
	default:
		return StatusIncomplete
	}
}

func snapshotFromStripe(sub *stripe.Subscription) *Snapshot {
	snap := &Snapshot{
		SubscriptionID: sub.ID,
		Status:         MapStatus(sub.Status),
	}
	if sub.Customer != nil {
		snap.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			snap.PriceID = item.Price.ID
		}
		if item.CurrentPeriodStart > 0 {
			snap.PeriodStart = time.Unix(item.CurrentPeriodStart, 0).UTC()
		}
	}
	if snap.PeriodStart.IsZero() && sub.StartDate > 0 {
		snap.PeriodStart = time.Unix(sub.StartDate, 0).UTC()
	}
	return snap
}

func sessionFromStripe(s *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: string(s.PaymentStatus),
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil && s.Subscription.ID != "" {
		out.Subscription = snapshotFromStripe(s.Subscription)
	}
	return out
}
