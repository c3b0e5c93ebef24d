package middleware

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/creditmeter/pkg/auth"
	"github.com/platinummonkey/creditmeter/pkg/contextkeys"
	"github.com/platinummonkey/creditmeter/pkg/httputil"
	"github.com/platinummonkey/creditmeter/pkg/observability"
)

// TokenVerifier verifies session tokens
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// AuthMiddleware requires a valid bearer session token
type AuthMiddleware struct {
	tokens TokenVerifier
	logger *observability.Logger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokens TokenVerifier, logger *observability.Logger) *AuthMiddleware {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &AuthMiddleware{tokens: tokens, logger: logger}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteUnauthorized(w, "no token provided")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		claims, err := m.tokens.Verify(parts[1])
		if err != nil {
			observability.FromContextOr(r.Context(), m.logger).WithError(err).Debug("token rejected")
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := contextkeys.WithUserID(r.Context(), claims.Subject)
		ctx = contextkeys.WithEmail(ctx, claims.Email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the authenticated user id, or "" outside AuthMiddleware
func UserID(r *http.Request) string {
	return contextkeys.GetUserID(r.Context())
}
