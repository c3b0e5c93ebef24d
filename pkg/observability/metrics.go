package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Reconciliation metrics
	ReconciliationTotal           *prometheus.CounterVec
	WebhookEventsTotal            *prometheus.CounterVec
	BestEffortCancelFailuresTotal prometheus.Counter

	// Payment provider metrics
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec

	// Usage ledger metrics
	UsageEventsRecordedTotal  *prometheus.CounterVec
	UsageCreditsRecordedTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "creditmeter_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "creditmeter_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		ReconciliationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "creditmeter_reconciliation_total",
				Help: "Subscription reconciliation attempts by path and outcome",
			},
			[]string{"path", "outcome"},
		),
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "creditmeter_webhook_events_total",
				Help: "Verified webhook events by type and whether they were acted on",
			},
			[]string{"type", "handled"},
		),
		BestEffortCancelFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "creditmeter_best_effort_cancel_failures_total",
				Help: "Prior-subscription cancellations that failed during checkout initiation",
			},
		),

		ProviderRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "creditmeter_provider_requests_total",
				Help: "Payment provider API calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		ProviderRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "creditmeter_provider_request_duration_seconds",
				Help:    "Payment provider API call duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),

		UsageEventsRecordedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "creditmeter_usage_events_recorded_total",
				Help: "Usage events appended to the ledger",
			},
			[]string{"type"},
		),
		UsageCreditsRecordedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "creditmeter_usage_credits_recorded_total",
				Help: "Credits appended to the ledger",
			},
			[]string{"type"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "creditmeter_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "creditmeter_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReconciliationTotal,
		m.WebhookEventsTotal,
		m.BestEffortCancelFailuresTotal,
		m.ProviderRequestsTotal,
		m.ProviderRequestDuration,
		m.UsageEventsRecordedTotal,
		m.UsageCreditsRecordedTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// NewNopMetrics returns metrics registered against a throwaway registry.
// Used by tests and binaries that do not expose /metrics.
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// ObserveProvider records one payment provider call.
func (m *Metrics) ObserveProvider(operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.ProviderRequestsTotal.WithLabelValues(operation, outcome).Inc()
	m.ProviderRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Requests are labelled by their mux route template to keep cardinality
// bounded.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := "unmatched"
			if current := mux.CurrentRoute(r); current != nil {
				if tmpl, err := current.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
