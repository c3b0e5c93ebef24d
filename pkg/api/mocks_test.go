package api

import (
	"context"
	"iter"

	"github.com/platinummonkey/creditmeter/pkg/auth"
	"github.com/platinummonkey/creditmeter/pkg/billing"
	"github.com/platinummonkey/creditmeter/pkg/plans"
	"github.com/platinummonkey/creditmeter/pkg/projects"
	"github.com/platinummonkey/creditmeter/pkg/usage"
	"github.com/platinummonkey/creditmeter/pkg/users"
)

type mockIdentity struct {
	SignupFunc      func(ctx context.Context, email, password, name string) (*auth.Result, error)
	LoginFunc       func(ctx context.Context, email, password string) (*auth.Result, error)
	GoogleLoginFunc func(ctx context.Context, idToken string) (*auth.Result, error)
}

func (m *mockIdentity) Signup(ctx context.Context, email, password, name string) (*auth.Result, error) {
	return m.SignupFunc(ctx, email, password, name)
}

func (m *mockIdentity) Login(ctx context.Context, email, password string) (*auth.Result, error) {
	return m.LoginFunc(ctx, email, password)
}

func (m *mockIdentity) GoogleLogin(ctx context.Context, idToken string) (*auth.Result, error) {
	return m.GoogleLoginFunc(ctx, idToken)
}

type mockSubscriptions struct {
	InitiateCheckoutFunc    func(ctx context.Context, userID, priceID string) (*billing.CheckoutSession, error)
	CancelFunc              func(ctx context.Context, userID string) (*users.View, error)
	ConfirmSessionFunc      func(ctx context.Context, userID, sessionID string) (*billing.ConfirmResult, error)
	CreatePortalSessionFunc func(ctx context.Context, userID string) (string, error)
	HandleEventFunc         func(ctx context.Context, payload []byte, signature string) error
}

func (m *mockSubscriptions) InitiateCheckout(ctx context.Context, userID, priceID string) (*billing.CheckoutSession, error) {
	return m.InitiateCheckoutFunc(ctx, userID, priceID)
}

func (m *mockSubscriptions) CancelOrDowngradeToFree(ctx context.Context, userID string) (*users.View, error) {
	return m.CancelFunc(ctx, userID)
}

func (m *mockSubscriptions) ConfirmSession(ctx context.Context, userID, sessionID string) (*billing.ConfirmResult, error) {
	return m.ConfirmSessionFunc(ctx, userID, sessionID)
}

func (m *mockSubscriptions) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	return m.CreatePortalSessionFunc(ctx, userID)
}

func (m *mockSubscriptions) HandleProviderEvent(ctx context.Context, payload []byte, signature string) error {
	return m.HandleEventFunc(ctx, payload, signature)
}

type mockPlans struct {
	plans     []*plans.Plan
	freePrice string
}

func (m *mockPlans) List(ctx context.Context) ([]*plans.Plan, error) {
	return m.plans, nil
}

func (m *mockPlans) IsFreePrice(priceID string) bool {
	return priceID == m.freePrice
}

type mockUsage struct {
	SummaryFunc func(ctx context.Context, userID string) (*usage.Summary, error)
	Days        []usage.DailyUsage
	SeriesErr   error
	gotWindow   usage.Window
}

func (m *mockUsage) Summary(ctx context.Context, userID string) (*usage.Summary, error) {
	return m.SummaryFunc(ctx, userID)
}

func (m *mockUsage) DailySeries(ctx context.Context, userID string, window usage.Window) iter.Seq2[usage.DailyUsage, error] {
	m.gotWindow = window
	return func(yield func(usage.DailyUsage, error) bool) {
		if m.SeriesErr != nil {
			yield(usage.DailyUsage{}, m.SeriesErr)
			return
		}
		for _, d := range m.Days {
			if !yield(d, nil) {
				return
			}
		}
	}
}

type mockLedger struct {
	RecordFunc func(ctx context.Context, userID, projectID string, credits int64, typ usage.Type, metadata map[string]interface{}) (*usage.Event, error)
	ListFunc   func(ctx context.Context, userID string, limit int) ([]usage.DetailedEvent, error)
}

func (m *mockLedger) Record(ctx context.Context, userID, projectID string, credits int64, typ usage.Type, metadata map[string]interface{}) (*usage.Event, error) {
	return m.RecordFunc(ctx, userID, projectID, credits, typ, metadata)
}

func (m *mockLedger) List(ctx context.Context, userID string, limit int) ([]usage.DetailedEvent, error) {
	return m.ListFunc(ctx, userID, limit)
}

type mockProjects struct {
	CreateFunc        func(ctx context.Context, userID, name string) (*projects.Project, error)
	ListWithStatsFunc func(ctx context.Context, userID string) ([]projects.WithStats, error)
}

func (m *mockProjects) Create(ctx context.Context, userID, name string) (*projects.Project, error) {
	return m.CreateFunc(ctx, userID, name)
}

func (m *mockProjects) ListWithStats(ctx context.Context, userID string) ([]projects.WithStats, error) {
	return m.ListWithStatsFunc(ctx, userID)
}

type mockUsers struct {
	ViewFunc func(ctx context.Context, id string) (*users.View, error)
}

func (m *mockUsers) View(ctx context.Context, id string) (*users.View, error) {
	return m.ViewFunc(ctx, id)
}
