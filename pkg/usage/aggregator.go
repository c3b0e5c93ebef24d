package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/creditmeter/pkg/billing"
	"github.com/platinummonkey/creditmeter/pkg/plans"
)

// SubscriptionReader reads a user's subscription record
type SubscriptionReader interface {
	GetByUser(ctx context.Context, userID string) (*billing.Subscription, error)
}

// PlanResolver resolves a price id to a plan, falling back to free
type PlanResolver interface {
	ByPriceIDOrFree(ctx context.Context, priceID string) (*plans.Plan, error)
}

// Aggregator answers read-only questions about a user's usage. Every method
// returns zero values for a user with no projects or no events.
type Aggregator struct {
	db    *sql.DB
	subs  SubscriptionReader
	plans PlanResolver
	now   func() time.Time
}

// NewAggregator creates an Aggregator. db may be a read replica.
func NewAggregator(db *sql.DB, subs SubscriptionReader, plans PlanResolver) *Aggregator {
	return &Aggregator{db: db, subs: subs, plans: plans, now: time.Now}
}

// TotalCreditsUsed sums the credits the user has consumed at or after
// since. A zero since covers all time.
func (a *Aggregator) TotalCreditsUsed(ctx context.Context, userID string, since time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(u.credits), 0)
		FROM usage_events u
		JOIN projects p ON p.id = u.project_id
		WHERE p.user_id = $1 AND u.created_at >= $2
	`
	var total int64
	if err := a.db.QueryRowContext(ctx, query, userID, since.UTC()).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum credits: %w", err)
	}
	return total, nil
}

// DailySeries yields per-day credit totals for the trailing window, oldest
// first. Days with no usage are omitted. The query runs when iteration
// starts; an error is yielded once and ends the sequence.
func (a *Aggregator) DailySeries(ctx context.Context, userID string, window Window) iter.Seq2[DailyUsage, error] {
	return func(yield func(DailyUsage, error) bool) {
		if !window.Valid() {
			yield(DailyUsage{}, ErrInvalidWindow)
			return
		}

		query := `
			SELECT (u.created_at AT TIME ZONE 'UTC')::date AS day, SUM(u.credits)
			FROM usage_events u
			JOIN projects p ON p.id = u.project_id
			WHERE p.user_id = $1 AND u.created_at >= $2
			GROUP BY day
			HAVING SUM(u.credits) > 0
			ORDER BY day ASC
		`
		rows, err := a.db.QueryContext(ctx, query, userID, window.Start(a.now()))
		if err != nil {
			yield(DailyUsage{}, fmt.Errorf("failed to query daily usage: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var d DailyUsage
			if err := rows.Scan(&d.Date, &d.Credits); err != nil {
				yield(DailyUsage{}, fmt.Errorf("failed to scan daily usage: %w", err))
				return
			}
			d.Date = d.Date.UTC()
			if !yield(d, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(DailyUsage{}, fmt.Errorf("failed to read daily usage: %w", err))
		}
	}
}

// Collect drains a daily series into a slice. The result is never nil.
func Collect(seq iter.Seq2[DailyUsage, error]) ([]DailyUsage, error) {
	out := []DailyUsage{}
	for d, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// ByType returns credits grouped by usage type. Types with no usage are
// absent from the map.
func (a *Aggregator) ByType(ctx context.Context, userID string) (map[Type]int64, error) {
	query := `
		SELECT u.type, SUM(u.credits)
		FROM usage_events u
		JOIN projects p ON p.id = u.project_id
		WHERE p.user_id = $1
		GROUP BY u.type
	`
	rows, err := a.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage by type: %w", err)
	}
	defer rows.Close()

	out := make(map[Type]int64)
	for rows.Next() {
		var t Type
		var credits int64
		if err := rows.Scan(&t, &credits); err != nil {
			return nil, fmt.Errorf("failed to scan usage by type: %w", err)
		}
		out[t] = credits
	}
	return out, rows.Err()
}

// SubscriptionSummary is the plan portion of a Summary
type SubscriptionSummary struct {
	Status   billing.Status `json:"status"`
	PlanID   string         `json:"planId"`
	PlanName string         `json:"planName"`
}

// Summary is the dashboard view of a user's usage
type Summary struct {
	CreditsUsed       int64                `json:"creditsUsed"`
	PeriodCreditsUsed int64                `json:"periodCreditsUsed"`
	CreditAllotment   int64                `json:"creditAllotment"`
	RemainingCredits  int64                `json:"remainingCredits"`
	PeriodStart       *time.Time           `json:"periodStart,omitempty"`
	Last7Days         []DailyUsage         `json:"usageLast7Days"`
	Last30Days        []DailyUsage         `json:"usageLast30Days"`
	ByType            map[Type]int64       `json:"usageByType"`
	Subscription      *SubscriptionSummary `json:"subscription"`
}

// Summary assembles totals, both daily windows, the per-type breakdown and
// the plan allotment. RemainingCredits may be negative.
func (a *Aggregator) Summary(ctx context.Context, userID string) (*Summary, error) {
	out := &Summary{}

	var priceID string
	sub, err := a.subs.GetByUser(ctx, userID)
	switch {
	case errors.Is(err, billing.ErrNotProvisioned):
	case err != nil:
		return nil, err
	default:
		priceID = sub.PriceID
		periodStart := sub.PeriodStart.UTC()
		out.PeriodStart = &periodStart
	}

	plan, err := a.plans.ByPriceIDOrFree(ctx, priceID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plan: %w", err)
	}
	out.CreditAllotment = plan.CreditAllotment
	if sub != nil {
		out.Subscription = &SubscriptionSummary{Status: sub.Status, PlanID: plan.ID, PlanName: plan.Name}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, err := a.TotalCreditsUsed(gctx, userID, time.Time{})
		out.CreditsUsed = total
		return err
	})
	g.Go(func() error {
		var since time.Time
		if out.PeriodStart != nil {
			since = *out.PeriodStart
		}
		period, err := a.TotalCreditsUsed(gctx, userID, since)
		out.PeriodCreditsUsed = period
		return err
	})
	g.Go(func() error {
		days, err := Collect(a.DailySeries(gctx, userID, Window7))
		out.Last7Days = days
		return err
	})
	g.Go(func() error {
		days, err := Collect(a.DailySeries(gctx, userID, Window30))
		out.Last30Days = days
		return err
	})
	g.Go(func() error {
		byType, err := a.ByType(gctx, userID)
		out.ByType = byType
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.RemainingCredits = out.CreditAllotment - out.PeriodCreditsUsed
	return out, nil
}

// RangeUsage is a user's usage within [From, To)
type RangeUsage struct {
	From   time.Time      `json:"from"`
	To     time.Time      `json:"to"`
	Total  int64          `json:"total"`
	ByType map[Type]int64 `json:"byType"`
	Daily  []DailyUsage   `json:"daily"`
}

// Range aggregates usage between from (inclusive) and to (exclusive). Daily
// buckets follow the same rules as DailySeries.
func (a *Aggregator) Range(ctx context.Context, userID string, from, to time.Time) (*RangeUsage, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: range end must be after start", ErrInvalidWindow)
	}

	query := `
		SELECT (u.created_at AT TIME ZONE 'UTC')::date AS day, u.type, SUM(u.credits)
		FROM usage_events u
		JOIN projects p ON p.id = u.project_id
		WHERE p.user_id = $1 AND u.created_at >= $2 AND u.created_at < $3
		GROUP BY day, u.type
		ORDER BY day ASC
	`
	rows, err := a.db.QueryContext(ctx, query, userID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query usage range: %w", err)
	}
	defer rows.Close()

	out := &RangeUsage{From: from.UTC(), To: to.UTC(), ByType: make(map[Type]int64), Daily: []DailyUsage{}}
	for rows.Next() {
		var day time.Time
		var t Type
		var credits int64
		if err := rows.Scan(&day, &t, &credits); err != nil {
			return nil, fmt.Errorf("failed to scan usage range: %w", err)
		}
		if credits == 0 {
			continue
		}
		day = day.UTC()

		out.Total += credits
		out.ByType[t] += credits
		if n := len(out.Daily); n > 0 && out.Daily[n-1].Date.Equal(day) {
			out.Daily[n-1].Credits += credits
		} else {
			out.Daily = append(out.Daily, DailyUsage{Date: day, Credits: credits})
		}
	}
	return out, rows.Err()
}
