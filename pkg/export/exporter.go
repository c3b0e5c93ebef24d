package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/creditmeter/pkg/async"
	"github.com/platinummonkey/creditmeter/pkg/billing"
	"github.com/platinummonkey/creditmeter/pkg/plans"
	"github.com/platinummonkey/creditmeter/pkg/usage"
)

// UsageSource aggregates usage over a time range
type UsageSource interface {
	Range(ctx context.Context, userID string, from, to time.Time) (*usage.RangeUsage, error)
}

// SubscriptionSource reads a user's subscription
type SubscriptionSource interface {
	GetByUser(ctx context.Context, userID string) (*billing.Subscription, error)
}

// PlanResolver resolves a price id to a plan, falling back to free
type PlanResolver interface {
	ByPriceIDOrFree(ctx context.Context, priceID string) (*plans.Plan, error)
}

// UserLister enumerates users
type UserLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

const (
	defaultWorkers = 4
	perUserTimeout = 30 * time.Second
)

// Result summarises one export run
type Result struct {
	Written int
	Failed  int
}

// Exporter writes monthly usage statements to object storage
type Exporter struct {
	usage UsageSource
	subs  SubscriptionSource
	plans PlanResolver
	users UserLister
	store ObjectStore
	log   *logrus.Logger
	now   func() time.Time

	workers int
}

// NewExporter creates an Exporter
func NewExporter(usage UsageSource, subs SubscriptionSource, plans PlanResolver, users UserLister, store ObjectStore, log *logrus.Logger) *Exporter {
	if log == nil {
		log = logrus.New()
	}
	return &Exporter{
		usage: usage,
		subs:  subs,
		plans: plans,
		users: users,
		store: store,
		log:   log,
		now:   time.Now,

		workers: defaultWorkers,
	}
}

// Build assembles userID's statement for the month containing month
func (e *Exporter) Build(ctx context.Context, userID string, month time.Time) (*Statement, error) {
	from, to := MonthBounds(month)

	used, err := e.usage.Range(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	st := &Statement{
		UserID:      userID,
		Month:       from.Format("2006-01"),
		PeriodStart: from,
		PeriodEnd:   to,
		CreditsUsed: used.Total,
		ByType:      used.ByType,
		Daily:       used.Daily,
		GeneratedAt: e.now().UTC(),
	}

	var priceID string
	sub, err := e.subs.GetByUser(ctx, userID)
	switch {
	case errors.Is(err, billing.ErrNotProvisioned):
	case err != nil:
		return nil, err
	default:
		priceID = sub.PriceID
		st.SubscriptionStatus = sub.Status
	}

	plan, err := e.plans.ByPriceIDOrFree(ctx, priceID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plan: %w", err)
	}
	st.Plan = StatementPlan{ID: plan.ID, Name: plan.Name, CreditAllotment: plan.CreditAllotment}
	return st, nil
}

// ExportMonth writes a statement for every user for the month containing
// month. A failure for one user is logged and counted; the run continues.
func (e *Exporter) ExportMonth(ctx context.Context, month time.Time) (Result, error) {
	from, _ := MonthBounds(month)
	ctx, span := tracer.Start(ctx, "Export.Month",
		trace.WithAttributes(attribute.String("export.month", from.Format("2006-01"))),
	)
	defer span.End()

	ids, err := e.users.ListIDs(ctx)
	if err != nil {
		span.RecordError(err)
		return Result{}, fmt.Errorf("failed to list users: %w", err)
	}

	errs := async.Batch(ctx, ids, e.workers, perUserTimeout, func(ctx context.Context, id string) error {
		return e.exportOne(ctx, id, from)
	})
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var res Result
	for i, err := range errs {
		if err != nil {
			res.Failed++
			e.log.WithError(err).WithField("user_id", ids[i]).Error("statement export failed")
			continue
		}
		res.Written++
	}

	span.SetAttributes(attribute.Int("export.written", res.Written), attribute.Int("export.failed", res.Failed))
	e.log.WithFields(logrus.Fields{
		"month":   from.Format("2006-01"),
		"written": res.Written,
		"failed":  res.Failed,
	}).Info("statement export finished")
	return res, nil
}

func (e *Exporter) exportOne(ctx context.Context, userID string, month time.Time) error {
	st, err := e.Build(ctx, userID, month)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal statement: %w", err)
	}
	return e.store.PutObject(ctx, StatementKey(month, userID), data, "application/json")
}
