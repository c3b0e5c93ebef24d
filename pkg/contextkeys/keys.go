// Package contextkeys holds every context key used across creditmeter.
//
// Keys live here so that middleware, handlers, and the logger agree on a
// single definition:
//
//	ctx = contextkeys.WithUserID(ctx, userID)
//	userID := contextkeys.GetUserID(ctx)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// RequestIDKey contains the request ID string (UUID).
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, error responses
	RequestIDKey Key = "request_id"

	// UserIDKey contains the authenticated user ID string.
	// Set by: middleware.AuthMiddleware after bearer token verification
	// Used by: every user-scoped handler; passed explicitly into billing,
	// usage and project operations from there
	UserIDKey Key = "user_id"

	// EmailKey contains the authenticated user's email claim.
	// Set by: middleware.AuthMiddleware
	EmailKey Key = "email"

	// LoggerKey contains *observability.Logger
	// Set by: httputil.LoggingMiddleware
	LoggerKey Key = "logger"
)

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithEmail adds the email claim to the context
func WithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, EmailKey, email)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// GetEmail retrieves the email claim from context
func GetEmail(ctx context.Context) string {
	if email, ok := ctx.Value(EmailKey).(string); ok {
		return email
	}
	return ""
}
