package plans

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPlans returns the built-in Free, Pro, and Business plans. A plan
// whose price id is empty is omitted.
func DefaultPlans(prices PriceIDs) []Plan {
	all := []Plan{
		{Name: "Free", PriceCents: 0, CreditAllotment: 10, StripePriceID: prices.Free},
		{Name: "Pro", PriceCents: 2000, CreditAllotment: 100, StripePriceID: prices.Pro},
		{Name: "Business", PriceCents: 5000, CreditAllotment: 500, StripePriceID: prices.Business},
	}

	out := make([]Plan, 0, len(all))
	for _, p := range all {
		if p.StripePriceID != "" {
			out = append(out, p)
		}
	}
	return out
}

type catalogFile struct {
	Plans []Plan `yaml:"plans"`
}

// LoadFile reads a YAML plan catalog:
//
//	plans:
//	  - name: Free
//	    price_cents: 0
//	    credit_allotment: 10
//	    stripe_price_id: price_free
func LoadFile(path string) ([]Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse plan catalog: %w", err)
	}

	if err := Validate(file.Plans); err != nil {
		return nil, err
	}
	return file.Plans, nil
}

// Validate checks a catalog has unique names and price ids, non-negative
// amounts, and exactly one free plan.
func Validate(plans []Plan) error {
	if len(plans) == 0 {
		return fmt.Errorf("%w: no plans defined", ErrInvalidCatalog)
	}

	names := make(map[string]bool, len(plans))
	prices := make(map[string]bool, len(plans))
	free := 0

	for _, p := range plans {
		switch {
		case p.Name == "":
			return fmt.Errorf("%w: plan name is required", ErrInvalidCatalog)
		case p.StripePriceID == "":
			return fmt.Errorf("%w: plan %q has no stripe_price_id", ErrInvalidCatalog, p.Name)
		case names[p.Name]:
			return fmt.Errorf("%w: duplicate plan name %q", ErrInvalidCatalog, p.Name)
		case prices[p.StripePriceID]:
			return fmt.Errorf("%w: duplicate price id %q", ErrInvalidCatalog, p.StripePriceID)
		case p.PriceCents < 0 || p.CreditAllotment < 0:
			return fmt.Errorf("%w: plan %q has a negative amount", ErrInvalidCatalog, p.Name)
		}
		names[p.Name] = true
		prices[p.StripePriceID] = true
		if p.IsFree() {
			free++
		}
	}

	if free != 1 {
		return fmt.Errorf("%w: expected exactly one free plan, found %d", ErrInvalidCatalog, free)
	}
	return nil
}
