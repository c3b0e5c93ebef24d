package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// GoogleIssuer is the issuer of Google ID tokens
const GoogleIssuer = "https://accounts.google.com"

// GoogleVerifier verifies Google ID tokens for one OAuth client
type GoogleVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewGoogleVerifier discovers Google's signing keys and returns a verifier
// for tokens issued to clientID.
func NewGoogleVerifier(ctx context.Context, clientID string) (*GoogleVerifier, error) {
	if clientID == "" {
		return nil, fmt.Errorf("Google client ID is required")
	}

	provider, err := oidc.NewProvider(ctx, GoogleIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover Google OIDC provider: %w", err)
	}

	return &GoogleVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// NewGoogleVerifierWithKeySet builds a verifier against a fixed key set
func NewGoogleVerifierWithKeySet(clientID string, keySet oidc.KeySet) *GoogleVerifier {
	return &GoogleVerifier{
		verifier: oidc.NewVerifier(GoogleIssuer, keySet, &oidc.Config{ClientID: clientID}),
	}
}

// Verify checks rawIDToken's signature, issuer, audience and expiry
func (g *GoogleVerifier) Verify(ctx context.Context, rawIDToken string) (*GoogleIdentity, error) {
	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGoogleToken, err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGoogleToken, err)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: token has no email", ErrInvalidGoogleToken)
	}

	return &GoogleIdentity{
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
	}, nil
}
