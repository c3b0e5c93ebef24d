package billing

import (
	"context"
	"sync"
	"time"

	"github.com/platinummonkey/creditmeter/pkg/plans"
	"github.com/platinummonkey/creditmeter/pkg/users"
)

// mockProvider implements Provider with overridable funcs
type mockProvider struct {
	mu sync.Mutex

	createCustomerFunc        func(ctx context.Context, userID, email, name string) (string, error)
	createCheckoutSessionFunc func(ctx context.Context, customerID, priceID string) (*CheckoutSession, error)
	getCheckoutSessionFunc    func(ctx context.Context, sessionID string) (*CheckoutSession, error)
	getSubscriptionFunc       func(ctx context.Context, subscriptionID string) (*Snapshot, error)
	cancelSubscriptionFunc    func(ctx context.Context, subscriptionID string) error
	createPortalSessionFunc   func(ctx context.Context, customerID string) (string, error)
	parseEventFunc            func(payload []byte, signature string) (*Event, error)

	canceled []string
	calls    []string
}

func (m *mockProvider) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockProvider) CreateCustomer(ctx context.Context, userID, email, name string) (string, error) {
	m.record("CreateCustomer")
	if m.createCustomerFunc != nil {
		return m.createCustomerFunc(ctx, userID, email, name)
	}
	return "cus_" + userID, nil
}

func (m *mockProvider) CreateCheckoutSession(ctx context.Context, customerID, priceID string) (*CheckoutSession, error) {
	m.record("CreateCheckoutSession")
	if m.createCheckoutSessionFunc != nil {
		return m.createCheckoutSessionFunc(ctx, customerID, priceID)
	}
	return &CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/pay/cs_1", CustomerID: customerID}, nil
}

func (m *mockProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	m.record("GetCheckoutSession")
	if m.getCheckoutSessionFunc != nil {
		return m.getCheckoutSessionFunc(ctx, sessionID)
	}
	return nil, ErrNotFound
}

func (m *mockProvider) GetSubscription(ctx context.Context, subscriptionID string) (*Snapshot, error) {
	m.record("GetSubscription")
	if m.getSubscriptionFunc != nil {
		return m.getSubscriptionFunc(ctx, subscriptionID)
	}
	return nil, ErrNotFound
}

func (m *mockProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	m.record("CancelSubscription")
	m.mu.Lock()
	m.canceled = append(m.canceled, subscriptionID)
	m.mu.Unlock()
	if m.cancelSubscriptionFunc != nil {
		return m.cancelSubscriptionFunc(ctx, subscriptionID)
	}
	return nil
}

func (m *mockProvider) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	m.record("CreatePortalSession")
	if m.createPortalSessionFunc != nil {
		return m.createPortalSessionFunc(ctx, customerID)
	}
	return "https://billing.stripe.com/p/session/" + customerID, nil
}

func (m *mockProvider) ParseEvent(payload []byte, signature string) (*Event, error) {
	m.record("ParseEvent")
	if m.parseEventFunc != nil {
		return m.parseEventFunc(payload, signature)
	}
	return nil, ErrInvalidSignature
}

// memStore is an in-memory Store enforcing the same invariants as
// PostgresStore.
type memStore struct {
	mu     sync.Mutex
	byUser map[string]*Subscription
	writes int
}

func newMemStore(subs ...*Subscription) *memStore {
	s := &memStore{byUser: make(map[string]*Subscription)}
	for _, sub := range subs {
		cp := *sub
		s.byUser[sub.UserID] = &cp
	}
	return s
}

func (s *memStore) Create(ctx context.Context, sub *Subscription) error {
	if err := checkInvariant(sub.Status, sub.StripeSubscriptionID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sub
	s.byUser[sub.UserID] = &cp
	s.writes++
	return nil
}

func (s *memStore) GetByUser(ctx context.Context, userID string) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.byUser[userID]
	if !ok {
		return nil, ErrNotProvisioned
	}
	cp := *sub
	return &cp, nil
}

func (s *memStore) ApplyByCustomer(ctx context.Context, customerID string, snap Snapshot) (string, error) {
	if err := checkInvariant(snap.Status, &snap.SubscriptionID); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.byUser {
		if sub.StripeCustomerID != customerID {
			continue
		}
		id := snap.SubscriptionID
		sub.StripeSubscriptionID = &id
		sub.Status = snap.Status
		sub.PriceID = snap.PriceID
		if !snap.PeriodStart.IsZero() {
			sub.PeriodStart = snap.PeriodStart
		}
		s.writes++
		return sub.UserID, nil
	}
	return "", ErrNotFound
}

func (s *memStore) SetFree(ctx context.Context, userID, freePriceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.byUser[userID]
	if !ok {
		return ErrNotProvisioned
	}
	if sub.Status != StatusFree {
		sub.PeriodStart = time.Now().UTC()
	}
	sub.Status = StatusFree
	sub.StripeSubscriptionID = nil
	sub.PriceID = freePriceID
	s.writes++
	return nil
}

func (s *memStore) ListByStatus(ctx context.Context, statuses []Status, limit int) ([]*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Subscription
	for _, sub := range s.byUser {
		for _, st := range statuses {
			if sub.Status == st {
				cp := *sub
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (s *memStore) snapshot(userID string) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.byUser[userID]
}

type stubPlans struct{}

func (stubPlans) FreePriceID() string { return "price_free" }

func (stubPlans) ByPriceID(ctx context.Context, priceID string) (*plans.Plan, error) {
	switch priceID {
	case "price_free":
		return &plans.Plan{Name: "Free", CreditAllotment: 10, StripePriceID: priceID}, nil
	case "price_pro":
		return &plans.Plan{Name: "Pro", PriceCents: 2000, CreditAllotment: 100, StripePriceID: priceID}, nil
	case "price_biz":
		return &plans.Plan{Name: "Business", PriceCents: 5000, CreditAllotment: 500, StripePriceID: priceID}, nil
	}
	return nil, plans.ErrPlanNotFound
}

// storeViews renders user views straight from a memStore
type storeViews struct {
	store *memStore
}

func (v storeViews) View(ctx context.Context, id string) (*users.View, error) {
	sub, err := v.store.GetByUser(ctx, id)
	if err != nil {
		return nil, users.ErrNotFound
	}
	return &users.View{
		ID:    id,
		Email: id + "@example.com",
		Subscription: &users.SubscriptionView{
			Status: string(sub.Status),
			PlanID: sub.PriceID,
		},
	}, nil
}

type memDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memDeduper) MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

func (d *memDeduper) Forget(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
	return nil
}
