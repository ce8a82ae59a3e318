// Package refdata pulls catalog, inventory and recipe data from the system of
// record at start of day and serves it locally for the rest of the shift.
// Cached rows are disposable mirrors, except the inventory starting-quantity
// snapshot, which is the fold base for the day's deduction arithmetic.
package refdata

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"tilledge/store"
)

// Cache is the reference data cache service.
type Cache struct {
	db         *store.DB
	remote     Remote
	staleAfter time.Duration
}

// WarmResult reports what a cache warm pulled down.
type WarmResult struct {
	Success    bool `json:"success"`
	Products   int  `json:"products"`
	Categories int  `json:"categories"`
	Inventory  int  `json:"inventory"`
	Recipes    int  `json:"recipes"`
}

// NewCache creates a reference data cache. staleAfter <= 0 defaults to 24h.
func NewCache(db *store.DB, remote Remote, staleAfter time.Duration) *Cache {
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}
	return &Cache{db: db, remote: remote, staleAfter: staleAfter}
}

// StartOfDay fetches all four reference collections in parallel and
// bulk-replaces the local tables with overwrite semantics. Inventory rows
// capture starting_quantity = current remote stock and day_date = today; that
// snapshot is the fold base for the rest of the business day.
//
// Any fetch failure fails the whole call. A partial cache from a failed run is
// acceptable; the next successful warm fully overwrites it.
func (c *Cache) StartOfDay(ctx context.Context, storeID string) (*WarmResult, error) {
	var (
		wg         sync.WaitGroup
		products   []store.CachedProduct
		categories []store.CachedCategory
		inventory  []store.CachedInventoryStock
		recipes    []store.CachedRecipe
		errs       [4]error
	)

	wg.Add(4)
	go func() { defer wg.Done(); products, errs[0] = c.remote.FetchProducts(ctx, storeID) }()
	go func() { defer wg.Done(); categories, errs[1] = c.remote.FetchCategories(ctx, storeID) }()
	go func() { defer wg.Done(); inventory, errs[2] = c.remote.FetchInventoryStock(ctx, storeID) }()
	go func() { defer wg.Done(); recipes, errs[3] = c.remote.FetchRecipes(ctx, storeID) }()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return &WarmResult{}, fmt.Errorf("reference fetch: %w", err)
		}
	}

	cacheVersion := time.Now().Unix()
	today := store.Today()
	if err := c.db.PutProducts(storeID, products, cacheVersion); err != nil {
		return &WarmResult{}, fmt.Errorf("cache products: %w", err)
	}
	if err := c.db.PutCategories(storeID, categories); err != nil {
		return &WarmResult{}, fmt.Errorf("cache categories: %w", err)
	}
	if err := c.db.PutInventoryStock(storeID, inventory, today); err != nil {
		return &WarmResult{}, fmt.Errorf("cache inventory: %w", err)
	}
	if err := c.db.PutRecipes(storeID, recipes); err != nil {
		return &WarmResult{}, fmt.Errorf("cache recipes: %w", err)
	}

	log.Printf("refdata: warmed store %s: %d products, %d categories, %d stock, %d recipes",
		storeID, len(products), len(categories), len(inventory), len(recipes))
	return &WarmResult{
		Success:    true,
		Products:   len(products),
		Categories: len(categories),
		Inventory:  len(inventory),
		Recipes:    len(recipes),
	}, nil
}

// IsCacheStale reports whether the last successful warm is older than the TTL.
// Advisory only; nothing blocks operation on a stale cache.
func (c *Cache) IsCacheStale(storeID string) (bool, error) {
	age, err := c.CacheAgeMinutes(storeID)
	if err != nil {
		return true, err
	}
	if age < 0 {
		return true, nil
	}
	return time.Duration(age)*time.Minute > c.staleAfter, nil
}

// CacheAgeMinutes returns minutes since the last successful warm, or -1 when
// nothing is cached.
func (c *Cache) CacheAgeMinutes(storeID string) (int, error) {
	ts, err := c.db.LastCacheTime(storeID)
	if err != nil {
		return -1, err
	}
	if ts == "" {
		return -1, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04:05", ts, time.Local)
	if err != nil {
		return -1, err
	}
	return int(time.Since(t).Minutes()), nil
}

// Refresh clears all reference data and re-runs the warm. This is an explicit
// re-baseline: the inventory snapshot is re-captured.
func (c *Cache) Refresh(ctx context.Context, storeID string) (*WarmResult, error) {
	if err := c.db.ClearReferenceData(storeID); err != nil {
		return &WarmResult{}, fmt.Errorf("clear reference data: %w", err)
	}
	return c.StartOfDay(ctx, storeID)
}
