package main

import (
	"context"
	"flag"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/creditmeter/pkg/config"
	"github.com/platinummonkey/creditmeter/pkg/projects"
	"github.com/platinummonkey/creditmeter/pkg/storage/postgres"
	"github.com/platinummonkey/creditmeter/pkg/usage"
	"github.com/platinummonkey/creditmeter/pkg/users"
)

var seed = flag.Uint64("seed", 0, "Random seed (0 uses the current time)")

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := config.Load()
	if err := cfg.Database.Validate(); err != nil {
		log.WithError(err).Fatal("invalid database configuration")
	}

	db, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL: cfg.Database.URL,
		MaxConns:   cfg.Database.MaxConns,
		MinConns:   cfg.Database.MinConns,
		Timeout:    cfg.Database.Timeout,
	}, nil)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	ctx := context.Background()
	if _, err := postgres.Migrate(ctx, db.Primary()); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	s := *seed
	if s == 0 {
		s = uint64(time.Now().UnixNano())
	}

	sd := &seeder{
		users:    users.NewPostgresStore(db.Primary()),
		projects: projects.NewPostgresStore(db.Primary()),
		ledger:   usage.NewPostgresLedger(db.Primary(), nil),
		rng:      rand.New(rand.NewPCG(s, s)),
		now:      time.Now,
		log:      log,
	}

	n, err := sd.run(ctx)
	if err != nil {
		log.WithError(err).Fatal("seeding failed")
	}
	log.WithField("events", n).Info("usage seeding finished")
}
