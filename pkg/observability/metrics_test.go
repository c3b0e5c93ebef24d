package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersOnce(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry)

	assert.Panics(t, func() { NewMetrics(registry) }, "duplicate registration must panic")
}

func TestMetrics_ObserveProvider(t *testing.T) {
	m := NewNopMetrics()

	m.ObserveProvider("cancel_subscription", time.Now(), nil)
	m.ObserveProvider("cancel_subscription", time.Now(), errors.New("timeout"))
	m.ObserveProvider("cancel_subscription", time.Now(), errors.New("timeout"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequestsTotal.WithLabelValues("cancel_subscription", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProviderRequestsTotal.WithLabelValues("cancel_subscription", "error")))
}

func TestHTTPMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	m := NewNopMetrics()

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/api/subscriptions/session/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/subscriptions/session/cs_123", nil))

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/subscriptions/session/{id}", "202")))
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.BestEffortCancelFailuresTotal.Inc()

	srv := httptest.NewServer(MetricsHandler(registry))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "creditmeter_best_effort_cancel_failures_total 1"))
}
