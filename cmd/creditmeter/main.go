package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platinummonkey/creditmeter/pkg/api"
	"github.com/platinummonkey/creditmeter/pkg/auth"
	"github.com/platinummonkey/creditmeter/pkg/billing"
	"github.com/platinummonkey/creditmeter/pkg/config"
	"github.com/platinummonkey/creditmeter/pkg/middleware"
	"github.com/platinummonkey/creditmeter/pkg/observability"
	"github.com/platinummonkey/creditmeter/pkg/plans"
	"github.com/platinummonkey/creditmeter/pkg/projects"
	"github.com/platinummonkey/creditmeter/pkg/storage/postgres"
	"github.com/platinummonkey/creditmeter/pkg/usage"
	"github.com/platinummonkey/creditmeter/pkg/users"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "creditmeter: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	db, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL:  cfg.Database.URL,
		ReplicaURLs: cfg.Database.ReplicaURLs,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	db.StartHealthCheckRoutine(ctx, 30*time.Second, metrics)

	applied, err := postgres.Migrate(ctx, db.Primary())
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if len(applied) > 0 {
		logger.WithField("migrations", applied).Info("applied migrations")
	}

	var redisClient *postgres.RedisClient
	if cfg.Redis.URL != "" {
		redisClient, err = postgres.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			db.Close()
			return err
		}
	}

	planStore := plans.NewPostgresStore(db.Primary())
	if err := seedPlans(ctx, planStore, cfg); err != nil {
		db.Close()
		return err
	}
	catalog, err := plans.NewCatalog(planStore, cfg.Stripe.FreePriceID)
	if err != nil {
		db.Close()
		return err
	}

	userStore := users.NewPostgresStore(db.Primary())
	subStore := billing.NewPostgresStore(db.Primary())
	projectStore := projects.NewPostgresStore(db.Primary())
	provider := billing.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, cfg.Server.ClientURL, metrics)

	reconcilerOpts := []billing.Option{billing.WithLogger(logger), billing.WithMetrics(metrics)}
	if redisClient != nil {
		reconcilerOpts = append(reconcilerOpts, billing.WithDeduper(redisClient))
	}
	reconciler := billing.NewReconciler(subStore, provider, catalog, userStore, reconcilerOpts...)

	tokens, err := auth.NewTokenManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	if err != nil {
		db.Close()
		return err
	}
	var google auth.IDTokenVerifier
	if cfg.Auth.GoogleClientID != "" {
		verifier, err := auth.NewGoogleVerifier(ctx, cfg.Auth.GoogleClientID)
		if err != nil {
			db.Close()
			return err
		}
		google = verifier
	}
	identity := auth.NewService(userStore, reconciler, tokens, google, logger)

	limiterConfig := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.Requests,
		WindowDuration:    cfg.RateLimit.Window,
	}
	var limiter middleware.Limiter
	var rdb *redis.Client
	if redisClient != nil {
		rdb = redisClient.GetClient()
		limiter = middleware.NewRedisRateLimiter(rdb, limiterConfig, "creditmeter:ratelimit")
	} else {
		memLimiter := middleware.NewMemoryRateLimiter(limiterConfig)
		go cleanupLoop(ctx, memLimiter, cfg.RateLimit.Window)
		limiter = memLimiter
	}
	health := observability.NewHealthChecker(db.Primary(), rdb).WithMetrics(metrics)

	deps := api.Deps{
		Identity:      identity,
		Tokens:        tokens,
		Subscriptions: reconciler,
		Plans:         catalog,
		Usage:         usage.NewAggregator(db.Replica(), subStore, catalog),
		Ledger:        usage.NewPostgresLedger(db.Primary(), metrics),
		Projects:      projectStore,
		Users:         reconciler,
		RateLimiter:   limiter,
		Health:        health,
		Metrics:       metrics,
		Logger:        logger,
		CORSOrigins:   cfg.Server.CORSOrigins,
	}
	if cfg.Observability.MetricsEnabled {
		deps.Registry = registry
	}
	server := api.NewServer(deps)

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return db.Close()
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return redisClient.Close()
		})
	}
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders)
	})

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("creditmeter listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	waitCtx, stopWait := context.WithCancel(ctx)
	defer stopWait()
	go func() {
		if err, ok := <-serverErr; ok && err != nil {
			logger.WithError(err).Error("HTTP server failed")
			stopWait()
		}
	}()

	return shutdown.WaitForShutdown(waitCtx)
}

// seedPlans loads the plan catalog from file, or the defaults bound to the
// configured price ids, and seeds it.
func seedPlans(ctx context.Context, store *plans.PostgresStore, cfg *config.Config) error {
	var catalog []plans.Plan
	if cfg.Plans.File != "" {
		loaded, err := plans.LoadFile(cfg.Plans.File)
		if err != nil {
			return err
		}
		catalog = loaded
	} else {
		catalog = plans.DefaultPlans(plans.PriceIDs{
			Free:     cfg.Stripe.FreePriceID,
			Pro:      cfg.Stripe.ProPriceID,
			Business: cfg.Stripe.BusinessPriceID,
		})
		if err := plans.Validate(catalog); err != nil {
			return err
		}
	}
	return store.Seed(ctx, catalog)
}

func cleanupLoop(ctx context.Context, limiter *middleware.MemoryRateLimiter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			limiter.Cleanup()
		case <-ctx.Done():
			return
		}
	}
}
