package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/creditmeter/pkg/billing"
	"github.com/platinummonkey/creditmeter/pkg/config"
	"github.com/platinummonkey/creditmeter/pkg/export"
	"github.com/platinummonkey/creditmeter/pkg/observability"
	"github.com/platinummonkey/creditmeter/pkg/plans"
	"github.com/platinummonkey/creditmeter/pkg/storage/postgres"
	"github.com/platinummonkey/creditmeter/pkg/usage"
	"github.com/platinummonkey/creditmeter/pkg/users"
)

var (
	sweepSchedule  = flag.String("sweep-schedule", "*/15 * * * *", "Cron schedule for refreshing incomplete and past_due subscriptions")
	exportSchedule = flag.String("export-schedule", "30 0 1 * *", "Cron schedule for the monthly statement export (default: 1st day 00:30 UTC)")
	batchSize      = flag.Int("batch", billing.DefaultSweepBatch, "Maximum subscriptions refreshed per sweep")
	runOnce        = flag.Bool("run-once", false, "Run one sweep (and the export, if --month is set) and exit")
	exportMonth    = flag.String("month", "", "Month to export (YYYY-MM). Only used with --run-once")
)

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg := config.Load()
	if cfg.Observability.LogLevel == observability.DebugLevel {
		log.SetLevel(logrus.DebugLevel)
	}
	if err := cfg.Database.Validate(); err != nil {
		log.WithError(err).Fatal("invalid database configuration")
	}
	if err := cfg.Stripe.Validate(); err != nil {
		log.WithError(err).Fatal("invalid stripe configuration")
	}

	db, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL:  cfg.Database.URL,
		ReplicaURLs: cfg.Database.ReplicaURLs,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
	}, nil)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	catalog, err := plans.NewCatalog(plans.NewPostgresStore(db.Primary()), cfg.Stripe.FreePriceID)
	if err != nil {
		log.WithError(err).Fatal("failed to build plan catalog")
	}

	subStore := billing.NewPostgresStore(db.Primary())
	userStore := users.NewPostgresStore(db.Primary())
	provider := billing.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, cfg.Server.ClientURL, nil)
	reconciler := billing.NewReconciler(subStore, provider, catalog, userStore)
	sweeper := billing.NewSweeper(subStore, reconciler, *batchSize, log)

	var exporter *export.Exporter
	if cfg.Export.Enabled() {
		store, err := export.NewS3Store(context.Background(), export.S3Config{
			Bucket:    cfg.Export.Bucket,
			Region:    cfg.Export.Region,
			Endpoint:  cfg.Export.Endpoint,
			PathStyle: cfg.Export.PathStyle,
			AccessKey: cfg.Export.AccessKey,
			SecretKey: cfg.Export.SecretKey,
		})
		if err != nil {
			log.WithError(err).Fatal("failed to configure statement export")
		}
		aggregator := usage.NewAggregator(db.Replica(), subStore, catalog)
		exporter = export.NewExporter(aggregator, subStore, catalog, userStore, store, log)
	}

	if *runOnce {
		ctx := context.Background()
		if _, err := sweeper.Run(ctx); err != nil {
			log.WithError(err).Fatal("sweep failed")
		}
		if *exportMonth != "" {
			if exporter == nil {
				log.Fatal("--month requires CREDITMETER_EXPORT_BUCKET")
			}
			month, err := time.Parse("2006-01", *exportMonth)
			if err != nil {
				log.WithError(err).Fatal("invalid month format")
			}
			runExport(ctx, log, exporter, month)
		}
		return
	}

	c := cron.New(cron.WithLocation(time.UTC))

	_, err = c.AddFunc(*sweepSchedule, func() {
		if _, err := sweeper.Run(context.Background()); err != nil {
			log.WithError(err).Error("sweep failed")
		}
	})
	if err != nil {
		log.WithError(err).Fatal("failed to schedule sweep")
	}

	if exporter != nil {
		_, err = c.AddFunc(*exportSchedule, func() {
			previous := time.Now().UTC().AddDate(0, -1, 0)
			runExport(context.Background(), log, exporter, previous)
		})
		if err != nil {
			log.WithError(err).Fatal("failed to schedule statement export")
		}
	}

	c.Start()
	log.WithFields(logrus.Fields{
		"sweep_schedule":  *sweepSchedule,
		"export_enabled":  exporter != nil,
		"export_schedule": *exportSchedule,
	}).Info("creditmeter sweeper started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info("shutting down gracefully")

	stopped := c.Stop()
	<-stopped.Done()
	log.Info("sweeper stopped")
}

func runExport(ctx context.Context, log *logrus.Logger, exporter *export.Exporter, month time.Time) {
	res, err := exporter.ExportMonth(ctx, month)
	if err != nil {
		log.WithError(err).Error("statement export failed")
		return
	}
	log.WithFields(logrus.Fields{
		"month":   month.Format("2006-01"),
		"written": res.Written,
		"failed":  res.Failed,
	}).Info("statement export finished")
}
