// Package middleware provides HTTP middleware for bearer authentication and
// rate limiting.
//
// # Middleware Components
//
// AuthMiddleware: session token authentication
//
//	authMW := middleware.NewAuthMiddleware(tokenManager, logger)
//	router.Use(authMW.Handler)
//	// Verifies "Authorization: Bearer <jwt>" and stores the user id and
//	// email in the request context via contextkeys.
//
// Handlers read the caller with middleware.UserID(r) and pass it to the
// engines explicitly.
//
// RateLimitMiddleware: fixed-window limiting keyed by client IP
//
//	limiter := middleware.NewRedisRateLimiter(redisClient, cfg, "ratelimit:auth")
//	authRoutes.Use(middleware.RateLimitMiddleware(limiter, logger))
//
// NewMemoryRateLimiter serves single-instance deployments without Redis.
// Limiter errors fail open: the request is served and the error logged.
package middleware
