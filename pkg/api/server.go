package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/creditmeter/pkg/httputil"
	"github.com/platinummonkey/creditmeter/pkg/middleware"
	"github.com/platinummonkey/creditmeter/pkg/observability"
)

const maxRequestBytes = 1 << 20

// Deps are the collaborators the HTTP server routes to
type Deps struct {
	Identity      Identity
	Tokens        middleware.TokenVerifier
	Subscriptions Subscriptions
	Plans         PlanCatalog
	Usage         UsageReader
	Ledger        UsageLedger
	Projects      ProjectStore
	Users         UserViews

	// RateLimiter guards the auth routes. Nil disables limiting.
	RateLimiter middleware.Limiter

	Health      *observability.HealthChecker
	Metrics     *observability.Metrics
	Registry    *prometheus.Registry
	Logger      *observability.Logger
	CORSOrigins []string
}

// Server represents the API server
type Server struct {
	deps    Deps
	router  *mux.Router
	logger  *observability.Logger
	handler http.Handler
}

// NewServer creates a new API server
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewNopMetrics()
	}

	s := &Server{
		deps:   deps,
		router: mux.NewRouter(),
		logger: deps.Logger,
	}
	s.setupRoutes()

	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware(s.logger),
		httputil.CORSMiddleware(deps.CORSOrigins),
		httputil.MaxBytesMiddleware(maxRequestBytes),
	)
	s.handler = otelhttp.NewHandler(chain(s.router), "creditmeter-api")
	return s
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Router returns the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(observability.HTTPMetricsMiddleware(s.deps.Metrics))

	if s.deps.Health != nil {
		observability.RegisterHealthRoutes(s.router, s.deps.Health)
	}
	if s.deps.Registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.deps.Registry)).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api").Subrouter()

	// Unauthenticated routes are registered first so the bearer subrouter
	// never shadows them.
	authRoutes := api.PathPrefix("/auth").Subrouter()
	if s.deps.RateLimiter != nil {
		authRoutes.Use(middleware.RateLimitMiddleware(s.deps.RateLimiter, s.logger))
	}
	NewAuthHandlers(s).RegisterRoutes(authRoutes)

	subs := NewSubscriptionHandlers(s)
	api.HandleFunc("/subscriptions/webhook", subs.HandleWebhook).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.NewAuthMiddleware(s.deps.Tokens, s.logger).Handler)
	subs.RegisterRoutes(protected)
	NewUsageHandlers(s).RegisterRoutes(protected)
	NewProjectHandlers(s).RegisterRoutes(protected)
	NewAccountHandlers(s).RegisterRoutes(protected)
}
