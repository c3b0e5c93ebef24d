package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/creditmeter/pkg/observability"
	"github.com/platinummonkey/creditmeter/pkg/plans"
	"github.com/platinummonkey/creditmeter/pkg/users"
)

const eventDedupeTTL = 72 * time.Hour

// Reconciler synchronizes local subscription records with the payment
// provider. It holds no mutable state; every call is an independent unit of
// work against the store and the provider.
type Reconciler struct {
	store    Store
	provider Provider
	plans    PlanLookup
	users    UserViews
	dedupe   Deduper
	metrics  *observability.Metrics
	logger   *observability.Logger
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithLogger sets the logger used outside request scope
func WithLogger(logger *observability.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// WithMetrics sets the metrics sink
func WithMetrics(metrics *observability.Metrics) Option {
	return func(r *Reconciler) { r.metrics = metrics }
}

// WithDeduper skips webhook events already processed
func WithDeduper(d Deduper) Option {
	return func(r *Reconciler) { r.dedupe = d }
}

// NewReconciler creates a Reconciler
func NewReconciler(store Store, provider Provider, planLookup PlanLookup, userViews UserViews, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:    store,
		provider: provider,
		plans:    planLookup,
		users:    userViews,
		metrics:  observability.NewNopMetrics(),
		logger:   observability.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reconciler) loggerFor(ctx context.Context) *observability.Logger {
	return observability.FromContextOr(ctx, r.logger)
}

// Provision creates the provider customer and the free subscription record
// for a newly created user.
func (r *Reconciler) Provision(ctx context.Context, userID, email, name string) (*Subscription, error) {
	customerID, err := r.provider.CreateCustomer(ctx, userID, email, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	sub := &Subscription{
		UserID:           userID,
		StripeCustomerID: customerID,
		Status:           StatusFree,
		PriceID:          r.plans.FreePriceID(),
		PeriodStart:      time.Now().UTC(),
	}
	if err := r.store.Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// InitiateCheckout starts a hosted checkout for priceID. An active paid
// subscription is canceled first on a best-effort basis. The local record
// is not touched until payment is confirmed.
func (r *Reconciler) InitiateCheckout(ctx context.Context, userID, priceID string) (*CheckoutSession, error) {
	if priceID == "" {
		return nil, fmt.Errorf("%w: price id is required", ErrInvalidOperation)
	}
	if priceID == r.plans.FreePriceID() {
		return nil, fmt.Errorf("%w: checkout is not available for the free plan", ErrInvalidOperation)
	}
	if _, err := r.plans.ByPriceID(ctx, priceID); err != nil {
		if errors.Is(err, plans.ErrPlanNotFound) {
			return nil, fmt.Errorf("%w: unknown price %s", ErrInvalidOperation, priceID)
		}
		return nil, err
	}

	sub, err := r.store.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if sub.Status == StatusActive && sub.StripeSubscriptionID != nil {
		if err := r.provider.CancelSubscription(ctx, *sub.StripeSubscriptionID); err != nil {
			r.metrics.BestEffortCancelFailuresTotal.Inc()
			r.loggerFor(ctx).WithError(err).
				WithField("subscription_id", *sub.StripeSubscriptionID).
				Warn("failed to cancel previous subscription before checkout")
		}
	}

	session, err := r.provider.CreateCheckoutSession(ctx, sub.StripeCustomerID, priceID)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// CancelOrDowngradeToFree cancels the external subscription, if any, and
// moves the record to the free plan. Calling it on a free record is a no-op
// apart from updated_at.
func (r *Reconciler) CancelOrDowngradeToFree(ctx context.Context, userID string) (*users.View, error) {
	sub, err := r.store.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if sub.StripeSubscriptionID != nil {
		err := r.provider.CancelSubscription(ctx, *sub.StripeSubscriptionID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			r.metrics.ReconciliationTotal.WithLabelValues("downgrade", "error").Inc()
			return nil, err
		}
	}

	if err := r.store.SetFree(ctx, userID, r.plans.FreePriceID()); err != nil {
		r.metrics.ReconciliationTotal.WithLabelValues("downgrade", "error").Inc()
		return nil, err
	}
	r.metrics.ReconciliationTotal.WithLabelValues("downgrade", "applied").Inc()

	return r.View(ctx, userID)
}

// ConfirmSession applies a completed checkout session. A session whose
// payment is not yet confirmed returns Success false with no writes. The
// update is keyed by the session's customer, not by userID.
func (r *Reconciler) ConfirmSession(ctx context.Context, userID, sessionID string) (*ConfirmResult, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidOperation)
	}

	session, err := r.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !session.Paid() || session.Subscription == nil {
		r.metrics.ReconciliationTotal.WithLabelValues("confirm", "pending").Inc()
		return &ConfirmResult{Success: false}, nil
	}

	ownerID, err := r.apply(ctx, "confirm", session.CustomerID, *session.Subscription)
	if err != nil {
		return nil, err
	}
	if ownerID != userID {
		r.loggerFor(ctx).WithFields(map[string]interface{}{
			"session_id": sessionID,
			"owner_id":   ownerID,
		}).Warn("confirmed session belongs to a different user")
	}

	view, err := r.View(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &ConfirmResult{Success: true, User: view}, nil
}

// HandleProviderEvent verifies and applies a webhook delivery. Only
// checkout.session.completed is acted upon; other types are accepted and
// ignored. A returned error should make the caller ask for redelivery.
func (r *Reconciler) HandleProviderEvent(ctx context.Context, payload []byte, signature string) (retErr error) {
	event, err := r.provider.ParseEvent(payload, signature)
	if err != nil {
		r.metrics.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		if errors.Is(err, ErrInvalidSignature) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if event.Type != EventCheckoutSessionCompleted {
		r.metrics.WebhookEventsTotal.WithLabelValues(event.Type, "ignored").Inc()
		return nil
	}

	session := event.Session
	if session == nil || session.Subscription == nil || session.Subscription.SubscriptionID == "" {
		r.metrics.WebhookEventsTotal.WithLabelValues(event.Type, "ignored").Inc()
		return nil
	}

	if r.dedupe != nil && event.ID != "" {
		key := "stripe:event:" + event.ID
		fresh, err := r.dedupe.MarkSeen(ctx, key, eventDedupeTTL)
		if err != nil {
			r.loggerFor(ctx).WithError(err).Warn("event dedupe unavailable")
		} else if !fresh {
			r.metrics.WebhookEventsTotal.WithLabelValues(event.Type, "duplicate").Inc()
			return nil
		} else {
			defer func() {
				if retErr != nil {
					if ferr := r.dedupe.Forget(context.WithoutCancel(ctx), key); ferr != nil {
						r.loggerFor(ctx).WithError(ferr).Warn("failed to release event dedupe key")
					}
				}
			}()
		}
	}

	snap, err := r.provider.GetSubscription(ctx, session.Subscription.SubscriptionID)
	if err != nil {
		r.metrics.WebhookEventsTotal.WithLabelValues(event.Type, "error").Inc()
		return err
	}

	if _, err := r.apply(ctx, "webhook", session.CustomerID, *snap); err != nil {
		r.metrics.WebhookEventsTotal.WithLabelValues(event.Type, "error").Inc()
		return err
	}

	r.metrics.WebhookEventsTotal.WithLabelValues(event.Type, "handled").Inc()
	return nil
}

// Refresh re-reads the external subscription behind sub and applies it.
// Used by the sweeper for records left in incomplete or past_due.
func (r *Reconciler) Refresh(ctx context.Context, sub *Subscription) error {
	if sub.StripeSubscriptionID == nil {
		return nil
	}

	snap, err := r.provider.GetSubscription(ctx, *sub.StripeSubscriptionID)
	if err != nil {
		r.metrics.ReconciliationTotal.WithLabelValues("sweeper", "error").Inc()
		return err
	}

	_, err = r.apply(ctx, "sweeper", sub.StripeCustomerID, *snap)
	return err
}

// CreatePortalSession returns a billing portal URL for userID
func (r *Reconciler) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	sub, err := r.store.GetByUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return r.provider.CreatePortalSession(ctx, sub.StripeCustomerID)
}

// View returns the user joined with its current subscription
func (r *Reconciler) View(ctx context.Context, userID string) (*users.View, error) {
	view, err := r.users.View(ctx, userID)
	if errors.Is(err, users.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	return view, err
}

// apply is the single sink shared by every reconciliation path
func (r *Reconciler) apply(ctx context.Context, path, customerID string, snap Snapshot) (string, error) {
	if customerID == "" {
		customerID = snap.CustomerID
	}

	userID, err := r.store.ApplyByCustomer(ctx, customerID, snap)
	if err != nil {
		r.metrics.ReconciliationTotal.WithLabelValues(path, "error").Inc()
		return "", err
	}

	r.metrics.ReconciliationTotal.WithLabelValues(path, "applied").Inc()
	r.loggerFor(ctx).WithFields(map[string]interface{}{
		"path":            path,
		"customer_id":     customerID,
		"subscription_id": snap.SubscriptionID,
		"status":          string(snap.Status),
		"price_id":        snap.PriceID,
	}).Info("subscription reconciled")
	return userID, nil
}
