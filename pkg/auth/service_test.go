package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/creditmeter/pkg/billing"
	"github.com/platinummonkey/creditmeter/pkg/users"
)

type memUsers struct {
	mu      sync.Mutex
	byID    map[string]*users.User
	provisd map[string]bool
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]*users.User{}, provisd: map[string]bool{}}
}

func (m *memUsers) Create(ctx context.Context, u *users.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == users.NormalizeEmail(u.Email) {
			return users.ErrEmailTaken
		}
	}
	u.ID = uuid.NewString()
	u.Email = users.NormalizeEmail(u.Email)
	u.CreatedAt = time.Now()
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(ctx context.Context, id string) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, users.ErrNotFound
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == users.NormalizeEmail(email) {
			return u, nil
		}
	}
	return nil, users.ErrNotFound
}

func (m *memUsers) View(ctx context.Context, id string) (*users.View, error) {
	u, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	v := &users.View{ID: u.ID, Email: u.Email, Name: u.Name}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.provisd[id] {
		v.Subscription = &users.SubscriptionView{Status: "free", PlanID: "plan-free"}
	}
	return v, nil
}

func (m *memUsers) ListIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.byID))
	for id := range m.byID {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeProvisioner struct {
	store *memUsers
	calls []string
	err   error
}

func (p *fakeProvisioner) Provision(ctx context.Context, userID, email, name string) (*billing.Subscription, error) {
	p.calls = append(p.calls, userID)
	if p.err != nil {
		return nil, p.err
	}
	p.store.mu.Lock()
	p.store.provisd[userID] = true
	p.store.mu.Unlock()
	return &billing.Subscription{UserID: userID, Status: billing.StatusFree, PriceID: "price_free"}, nil
}

type fakeVerifier struct {
	identity *GoogleIdentity
	err      error
}

func (f fakeVerifier) Verify(ctx context.Context, raw string) (*GoogleIdentity, error) {
	return f.identity, f.err
}

func newTestService(t *testing.T, google IDTokenVerifier) (*Service, *memUsers, *fakeProvisioner) {
	t.Helper()
	store := newMemUsers()
	prov := &fakeProvisioner{store: store}
	tm, err := NewTokenManager(testSecret, time.Hour)
	require.NoError(t, err)
	return NewService(store, prov, tm, google, nil), store, prov
}

func TestService_Signup(t *testing.T) {
	svc, _, prov := newTestService(t, nil)
	ctx := context.Background()

	res, err := svc.Signup(ctx, " Alice@Example.com ", "hunter22", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", res.User.Email)
	require.NotNil(t, res.User.Subscription)
	assert.Equal(t, "free", res.User.Subscription.Status)
	assert.Len(t, prov.calls, 1)

	claims, err := svc.Tokens().Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.Subject)

	_, err = svc.Signup(ctx, "alice@example.com", "other", "")
	assert.ErrorIs(t, err, ErrUserExists)
	assert.Len(t, prov.calls, 1)
}

func TestService_SignupProvisionFailure(t *testing.T) {
	svc, _, prov := newTestService(t, nil)
	prov.err = billing.ErrProviderUnavailable

	_, err := svc.Signup(context.Background(), "bob@example.com", "pw", "")
	assert.ErrorIs(t, err, billing.ErrProviderUnavailable)
}

func TestService_Login(t *testing.T) {
	svc, store, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice@example.com", "hunter22", "")
	require.NoError(t, err)

	res, err := svc.Login(ctx, "ALICE@example.com", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	_, err = svc.Login(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, store.Create(ctx, &users.User{Email: "google@example.com", AuthMethod: users.AuthMethodGoogle}))
	_, err = svc.Login(ctx, "google@example.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_GoogleLogin(t *testing.T) {
	verifier := fakeVerifier{identity: &GoogleIdentity{Subject: "g1", Email: "carol@example.com", Name: "Carol"}}
	svc, store, prov := newTestService(t, verifier)
	ctx := context.Background()

	first, err := svc.GoogleLogin(ctx, "id-token")
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", first.User.Email)
	assert.Len(t, prov.calls, 1)

	u, err := store.GetByEmail(ctx, "carol@example.com")
	require.NoError(t, err)
	assert.Equal(t, users.AuthMethodGoogle, u.AuthMethod)
	assert.Nil(t, u.PasswordHash)

	second, err := svc.GoogleLogin(ctx, "id-token")
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Len(t, prov.calls, 1)
}

func TestService_GoogleLoginRejected(t *testing.T) {
	svc, _, _ := newTestService(t, fakeVerifier{err: ErrInvalidGoogleToken})
	_, err := svc.GoogleLogin(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalidGoogleToken)

	unconfigured, _, _ := newTestService(t, nil)
	_, err = unconfigured.GoogleLogin(context.Background(), "tok")
	assert.True(t, errors.Is(err, ErrInvalidGoogleToken))
}
