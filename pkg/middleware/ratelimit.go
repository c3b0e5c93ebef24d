package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/platinummonkey/creditmeter/pkg/httputil"
	"github.com/platinummonkey/creditmeter/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int64
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
}

// DefaultRateLimitConfig returns the limits applied to the auth endpoints
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 20,
		WindowDuration:    time.Minute,
	}
}

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetIn   time.Duration
}

// Limiter counts requests per key
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// MemoryRateLimiter is an in-process fixed-window limiter
type MemoryRateLimiter struct {
	config  *RateLimitConfig
	windows map[string]*window
	mu      sync.Mutex
	now     func() time.Time
}

type window struct {
	count   int64
	resetAt time.Time
}

// NewMemoryRateLimiter creates a new in-process rate limiter
func NewMemoryRateLimiter(config *RateLimitConfig) *MemoryRateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	return &MemoryRateLimiter{
		config:  config,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow checks if a request is allowed for the given key
func (rl *MemoryRateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(rl.config.WindowDuration)}
		rl.windows[key] = w
	}
	w.count++

	return decide(rl.config, w.count, w.resetAt.Sub(now)), nil
}

// Cleanup drops expired windows
func (rl *MemoryRateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, w := range rl.windows {
		if !now.Before(w.resetAt) {
			delete(rl.windows, key)
		}
	}
}

func decide(config *RateLimitConfig, count int64, resetIn time.Duration) Decision {
	remaining := config.RequestsPerWindow - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= config.RequestsPerWindow,
		Limit:     config.RequestsPerWindow,
		Remaining: remaining,
		ResetIn:   resetIn,
	}
}

// RateLimitMiddleware limits requests per client IP. Limiter errors fail
// open.
func RateLimitMiddleware(limiter Limiter, logger *observability.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + getClientIP(r)

			d, err := limiter.Allow(r.Context(), key)
			if err != nil {
				observability.FromContextOr(r.Context(), logger).WithError(err).Warn("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			if d.ResetIn > 0 {
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(d.ResetIn).Unix(), 10))
			}

			if !d.Allowed {
				retryAfter := int64(d.ResetIn.Round(time.Second).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				observability.FromContextOr(r.Context(), logger).Debugf("rate limit exceeded for %s", key)
				httputil.WriteTooManyRequests(w, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	// First hop of X-Forwarded-For when behind a proxy
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
