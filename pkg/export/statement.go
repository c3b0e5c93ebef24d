package export

import (
	"fmt"
	"time"

	"github.com/platinummonkey/creditmeter/pkg/billing"
	"github.com/platinummonkey/creditmeter/pkg/usage"
)

// StatementPlan is the plan a statement was billed against
type StatementPlan struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	CreditAllotment int64  `json:"creditAllotment"`
}

// Statement is one user's usage for one calendar month
type Statement struct {
	UserID             string               `json:"userId"`
	Month              string               `json:"month"`
	PeriodStart        time.Time            `json:"periodStart"`
	PeriodEnd          time.Time            `json:"periodEnd"`
	Plan               StatementPlan        `json:"plan"`
	SubscriptionStatus billing.Status       `json:"subscriptionStatus,omitempty"`
	CreditsUsed        int64                `json:"creditsUsed"`
	ByType             map[usage.Type]int64 `json:"usageByType"`
	Daily              []usage.DailyUsage   `json:"daily"`
	GeneratedAt        time.Time            `json:"generatedAt"`
}

// MonthBounds returns [first of month, first of next month) in UTC for the
// month containing t.
func MonthBounds(t time.Time) (time.Time, time.Time) {
	y, m, _ := t.UTC().Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// StatementKey is the object key for userID's statement of month
func StatementKey(month time.Time, userID string) string {
	return fmt.Sprintf("statements/%s/%s.json", month.UTC().Format("2006-01"), userID)
}
