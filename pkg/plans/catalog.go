package plans

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 64

// Catalog answers plan lookups by price id. Plans never change after
// seeding, so cached entries are never invalidated.
type Catalog struct {
	store       Store
	freePriceID string
	cache       *lru.Cache[string, *Plan]
}

// NewCatalog wraps store with an LRU keyed by price id
func NewCatalog(store Store, freePriceID string) (*Catalog, error) {
	cache, err := lru.New[string, *Plan](defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create plan cache: %w", err)
	}
	return &Catalog{
		store:       store,
		freePriceID: freePriceID,
		cache:       cache,
	}, nil
}

// FreePriceID returns the price id of the designated free plan
func (c *Catalog) FreePriceID() string {
	return c.freePriceID
}

// IsFreePrice reports whether priceID is the free plan's price
func (c *Catalog) IsFreePrice(priceID string) bool {
	return priceID == c.freePriceID
}

// ByPriceID returns the plan for priceID
func (c *Catalog) ByPriceID(ctx context.Context, priceID string) (*Plan, error) {
	if p, ok := c.cache.Get(priceID); ok {
		return p, nil
	}

	p, err := c.store.GetByPriceID(ctx, priceID)
	if err != nil {
		return nil, err
	}
	c.cache.Add(priceID, p)
	return p, nil
}

// Free returns the designated free plan
func (c *Catalog) Free(ctx context.Context) (*Plan, error) {
	return c.ByPriceID(ctx, c.freePriceID)
}

// ByPriceIDOrFree resolves priceID, falling back to the free plan when the
// price is unknown to the catalog.
func (c *Catalog) ByPriceIDOrFree(ctx context.Context, priceID string) (*Plan, error) {
	p, err := c.ByPriceID(ctx, priceID)
	if errors.Is(err, ErrPlanNotFound) {
		return c.Free(ctx)
	}
	return p, err
}

// List returns every plan ordered by price
func (c *Catalog) List(ctx context.Context) ([]*Plan, error) {
	return c.store.List(ctx)
}
