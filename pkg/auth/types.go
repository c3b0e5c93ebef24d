package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/platinummonkey/creditmeter/pkg/billing"
	"github.com/platinummonkey/creditmeter/pkg/users"
)

var (
	// ErrInvalidToken is returned for a malformed or forged session token
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned for a session token past its expiry
	ErrExpiredToken = errors.New("token expired")
	// ErrUserExists is returned when signing up with a registered email
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials is returned for an unknown email or wrong password
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidGoogleToken is returned when a Google ID token fails
	// verification or carries no email
	ErrInvalidGoogleToken = errors.New("invalid Google token")
)

// Claims are the session token claims. Subject is the user id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// GoogleIdentity is the verified content of a Google ID token
type GoogleIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// IDTokenVerifier verifies third-party ID tokens
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*GoogleIdentity, error)
}

// Provisioner binds a new user to the free plan
type Provisioner interface {
	Provision(ctx context.Context, userID, email, name string) (*billing.Subscription, error)
}

// Result is returned by every successful sign-in
type Result struct {
	User  *users.View `json:"user"`
	Token string      `json:"token"`
}
