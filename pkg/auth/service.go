package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/creditmeter/pkg/observability"
	"github.com/platinummonkey/creditmeter/pkg/users"
)

// Service implements the signup and login flows
type Service struct {
	users       users.Store
	provisioner Provisioner
	tokens      *TokenManager
	google      IDTokenVerifier
	logger      *observability.Logger
}

// NewService creates a Service. google may be nil when Google sign-in is
// not configured.
func NewService(store users.Store, provisioner Provisioner, tokens *TokenManager, google IDTokenVerifier, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Service{
		users:       store,
		provisioner: provisioner,
		tokens:      tokens,
		google:      google,
		logger:      logger,
	}
}

// Tokens returns the session token manager
func (s *Service) Tokens() *TokenManager {
	return s.tokens
}

// Signup registers an email/password user and provisions the free plan
func (s *Service) Signup(ctx context.Context, email, password, name string) (*Result, error) {
	email = users.NormalizeEmail(email)

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, users.ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &users.User{Email: email, PasswordHash: &hash, AuthMethod: users.AuthMethodEmail}
	if name != "" {
		user.Name = &name
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	if _, err := s.provisioner.Provision(ctx, user.ID, user.Email, name); err != nil {
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}

	s.logger.WithField("user_id", user.ID).Info("user signed up")
	return s.result(ctx, user)
}

// Login authenticates an email/password user
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, users.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == nil || *user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	ok, err := CheckPassword(*user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return s.result(ctx, user)
}

// GoogleLogin signs in with a Google ID token, creating and provisioning
// the user on first login.
func (s *Service) GoogleLogin(ctx context.Context, idToken string) (*Result, error) {
	if s.google == nil {
		return nil, ErrInvalidGoogleToken
	}

	identity, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, identity.Email)
	if err == nil {
		return s.result(ctx, user)
	}
	if !errors.Is(err, users.ErrNotFound) {
		return nil, err
	}

	user = &users.User{Email: identity.Email, AuthMethod: users.AuthMethodGoogle}
	if identity.Name != "" {
		user.Name = &identity.Name
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	if _, err := s.provisioner.Provision(ctx, user.ID, user.Email, identity.Name); err != nil {
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}

	s.logger.WithField("user_id", user.ID).Info("user signed up with Google")
	return s.result(ctx, user)
}

func (s *Service) result(ctx context.Context, user *users.User) (*Result, error) {
	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	view, err := s.users.View(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &Result{User: view, Token: token}, nil
}
