package plans

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPlans(t *testing.T) {
	plans := DefaultPlans(PriceIDs{Free: "price_free", Pro: "price_pro", Business: "price_biz"})
	require.Len(t, plans, 3)

	assert.Equal(t, "Free", plans[0].Name)
	assert.Equal(t, int64(0), plans[0].PriceCents)
	assert.Equal(t, int64(10), plans[0].CreditAllotment)
	assert.Equal(t, int64(2000), plans[1].PriceCents)
	assert.Equal(t, int64(100), plans[1].CreditAllotment)
	assert.Equal(t, int64(5000), plans[2].PriceCents)
	assert.Equal(t, int64(500), plans[2].CreditAllotment)
	assert.NoError(t, Validate(plans))
}

func TestDefaultPlans_SkipsUnconfiguredPrices(t *testing.T) {
	plans := DefaultPlans(PriceIDs{Free: "price_free"})
	require.Len(t, plans, 1)
	assert.True(t, plans[0].IsFree())
}

func TestValidate(t *testing.T) {
	free := Plan{Name: "Free", StripePriceID: "p0"}
	pro := Plan{Name: "Pro", PriceCents: 2000, CreditAllotment: 100, StripePriceID: "p1"}

	tests := []struct {
		name    string
		plans   []Plan
		wantErr bool
	}{
		{name: "valid", plans: []Plan{free, pro}},
		{name: "empty", plans: nil, wantErr: true},
		{name: "duplicate name", plans: []Plan{free, {Name: "Free", PriceCents: 1, StripePriceID: "p2"}}, wantErr: true},
		{name: "duplicate price", plans: []Plan{free, {Name: "Pro", PriceCents: 1, StripePriceID: "p0"}}, wantErr: true},
		{name: "no free plan", plans: []Plan{pro}, wantErr: true},
		{name: "two free plans", plans: []Plan{free, {Name: "Hobby", StripePriceID: "p3"}}, wantErr: true},
		{name: "negative allotment", plans: []Plan{free, {Name: "Bad", PriceCents: 1, CreditAllotment: -1, StripePriceID: "p4"}}, wantErr: true},
		{name: "missing price id", plans: []Plan{free, {Name: "Pro", PriceCents: 1}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.plans)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidCatalog), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.yaml")
	content := `plans:
  - name: Free
    price_cents: 0
    credit_allotment: 25
    stripe_price_id: price_free
  - name: Team
    price_cents: 9900
    credit_allotment: 2000
    stripe_price_id: price_team
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	plans, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, int64(25), plans[0].CreditAllotment)
	assert.Equal(t, "price_team", plans[1].StripePriceID)
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte("plans: [{name: Pro, price_cents: 10, stripe_price_id: p}]"), 0o600))

	_, err := LoadFile(path)
	assert.ErrorIs(t, err, ErrInvalidCatalog)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
