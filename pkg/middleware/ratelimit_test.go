package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRateLimiter_Allow(t *testing.T) {
	rl := NewMemoryRateLimiter(&RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute})
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	d, err := rl.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(1), d.Remaining)

	d, _ = rl.Allow(ctx, "ip:1.2.3.4")
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(0), d.Remaining)

	d, _ = rl.Allow(ctx, "ip:1.2.3.4")
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.ResetIn)

	d, _ = rl.Allow(ctx, "ip:5.6.7.8")
	assert.True(t, d.Allowed, "keys are independent")

	now = now.Add(time.Minute)
	d, _ = rl.Allow(ctx, "ip:1.2.3.4")
	assert.True(t, d.Allowed, "window resets")
}

func TestMemoryRateLimiter_Cleanup(t *testing.T) {
	rl := NewMemoryRateLimiter(nil)
	now := time.Now()
	rl.now = func() time.Time { return now }

	_, _ = rl.Allow(context.Background(), "a")
	now = now.Add(2 * time.Minute)
	rl.Cleanup()
	assert.Empty(t, rl.windows)
}

type failingLimiter struct{}

func (failingLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	return Decision{}, errors.New("redis down")
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewMemoryRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	handler := RateLimitMiddleware(rl, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remoteAddr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = remoteAddr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	first := send("10.0.0.1:5000")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := send("10.0.0.1:5001")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, second.Body.String())

	assert.Equal(t, http.StatusOK, send("10.0.0.2:5000").Code)
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	called := false
	handler := RateLimitMiddleware(failingLimiter{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, remote: "10.0.0.1:80", want: "203.0.113.9"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "198.51.100.7"}, remote: "10.0.0.1:80", want: "198.51.100.7"},
		{name: "remote addr", remote: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "remote without port", remote: "192.0.2.1", want: "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
