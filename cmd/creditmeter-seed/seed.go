package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/creditmeter/pkg/projects"
	"github.com/platinummonkey/creditmeter/pkg/usage"
)

const seedDays = 30

var (
	requestTypes = []string{"search", "summarize", "classify", "embed"}
	statuses     = []string{"success", "success", "success", "error"}
)

type projectEnsurer interface {
	EnsureDefault(ctx context.Context, userID string) (*projects.Project, error)
}

type usageRecorder interface {
	RecordAt(ctx context.Context, userID, projectID string, credits int64, typ usage.Type, metadata map[string]interface{}, at time.Time) (*usage.Event, error)
}

type userLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// seeder fills the ledger with demo usage for every user
type seeder struct {
	users    userLister
	projects projectEnsurer
	ledger   usageRecorder
	rng      *rand.Rand
	now      func() time.Time
	log      *logrus.Logger
}

// run seeds every user and returns the number of events written
func (s *seeder) run(ctx context.Context) (int, error) {
	ids, err := s.users.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	total := 0
	for _, userID := range ids {
		n, err := s.seedUser(ctx, userID)
		total += n
		if err != nil {
			return total, fmt.Errorf("failed to seed user %s: %w", userID, err)
		}
		s.log.WithFields(logrus.Fields{"user_id": userID, "events": n}).Info("seeded usage")
	}
	return total, nil
}

// seedUser writes 1-3 events per day over the last 30 days into the user's
// default project
func (s *seeder) seedUser(ctx context.Context, userID string) (int, error) {
	project, err := s.projects.EnsureDefault(ctx, userID)
	if err != nil {
		return 0, err
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	written := 0
	for day := seedDays - 1; day >= 0; day-- {
		date := today.AddDate(0, 0, -day)
		events := 1 + s.rng.IntN(3)
		for i := 0; i < events; i++ {
			at := date.Add(time.Duration(s.rng.IntN(24*60)) * time.Minute)
			typ := usage.Types[s.rng.IntN(len(usage.Types))]
			credits := int64(10 + s.rng.IntN(100))
			metadata := map[string]interface{}{
				"requestType": requestTypes[s.rng.IntN(len(requestTypes))],
				"status":      statuses[s.rng.IntN(len(statuses))],
				"duration":    50 + s.rng.IntN(1950),
			}
			if _, err := s.ledger.RecordAt(ctx, userID, project.ID, credits, typ, metadata, at); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}
