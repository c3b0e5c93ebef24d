package billing

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// DefaultSweepBatch bounds how many records one sweep refreshes
const DefaultSweepBatch = 500

// StuckStatuses are the statuses a sweep revisits
var StuckStatuses = []Status{StatusIncomplete, StatusPastDue}

// Refresher re-reads one subscription from the provider
type Refresher interface {
	Refresh(ctx context.Context, sub *Subscription) error
}

// SweepResult summarises one sweep
type SweepResult struct {
	Checked int
	Failed  int
}

// Sweeper converges records a missed webhook left in incomplete or past_due
type Sweeper struct {
	store     Store
	refresher Refresher
	batch     int
	log       *logrus.Logger
}

// NewSweeper creates a Sweeper. A batch of zero uses DefaultSweepBatch.
func NewSweeper(store Store, refresher Refresher, batch int, log *logrus.Logger) *Sweeper {
	if batch <= 0 {
		batch = DefaultSweepBatch
	}
	if log == nil {
		log = logrus.New()
	}
	return &Sweeper{store: store, refresher: refresher, batch: batch, log: log}
}

// Run refreshes one batch of stuck records. A failed refresh is logged and
// counted; only a failure to list aborts the sweep.
func (s *Sweeper) Run(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	subs, err := s.store.ListByStatus(ctx, StuckStatuses, s.batch)
	if err != nil {
		return res, fmt.Errorf("failed to list stuck subscriptions: %w", err)
	}

	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Checked++

		if err := s.refresher.Refresh(ctx, sub); err != nil {
			res.Failed++
			s.log.WithFields(logrus.Fields{
				"user_id": sub.UserID,
				"status":  sub.Status,
			}).WithError(err).Warn("subscription refresh failed")
		}
	}

	s.log.WithFields(logrus.Fields{
		"checked": res.Checked,
		"failed":  res.Failed,
	}).Info("subscription sweep finished")
	return res, nil
}
