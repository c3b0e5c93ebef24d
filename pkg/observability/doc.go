// Package observability provides structured logging, Prometheus metrics,
// health checks, graceful shutdown, and OpenTelemetry setup for creditmeter.
//
// Logging:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("customer_id", customerID).Warn("prior subscription cancel failed")
//
// Metrics are registered once per process:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	router.Handle("/metrics", observability.MetricsHandler(registry))
//
// Reconciliation outcomes are counted per path (confirm, webhook, sweeper,
// downgrade) in creditmeter_reconciliation_total.
package observability
