// Package cache provides a TTL cache with a declared invalidation table:
// each entity category names the mutating operations that invalidate it, so
// services call a single OnMutation hook instead of scattering ad-hoc
// invalidation calls.
package cache

import (
	"sync"
	"time"
)

// Category groups cached entries by entity kind. Each category carries its
// own TTL.
type Category string

const (
	CategoryStock        Category = "stock"
	CategoryPeriodPrices Category = "period_prices"
	CategoryNCRs         Category = "ncrs"
)

// Operation identifies a mutating operation for invalidation purposes.
type Operation string

const (
	OpPostReceiptBatch Operation = "post_receipt_batch"
	OpIssueStock       Operation = "issue_stock"
	OpTransferStock    Operation = "transfer_stock"
	OpSetPeriodPrice   Operation = "set_period_price"
	OpLockPeriod       Operation = "lock_period"
	OpResolveNCR       Operation = "resolve_ncr"
)

// invalidations declares which categories each operation dirties. Extending
// the system means adding a row here, not hunting for invalidation calls.
var invalidations = map[Operation][]Category{
	OpPostReceiptBatch: {CategoryStock, CategoryNCRs},
	OpIssueStock:       {CategoryStock},
	OpTransferStock:    {CategoryStock},
	OpSetPeriodPrice:   {CategoryPeriodPrices},
	OpLockPeriod:       {CategoryPeriodPrices},
	OpResolveNCR:       {CategoryNCRs},
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a concurrency-safe in-process TTL cache keyed by (category, key).
type Cache struct {
	mu      sync.RWMutex
	ttls    map[Category]time.Duration
	entries map[Category]map[string]entry
}

// DefaultTTLs is tuned for a single-instance deployment: stock snapshots go
// stale fast, period price lists change rarely.
var DefaultTTLs = map[Category]time.Duration{
	CategoryStock:        15 * time.Second,
	CategoryPeriodPrices: 5 * time.Minute,
	CategoryNCRs:         30 * time.Second,
}

// New builds a Cache with per-category TTLs. Categories absent from ttls are
// never cached (Get always misses, Set is a no-op).
func New(ttls map[Category]time.Duration) *Cache {
	return &Cache{
		ttls:    ttls,
		entries: make(map[Category]map[string]entry),
	}
}

// Get returns the cached value for (cat, key) if present and unexpired.
func (c *Cache) Get(cat Category, key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[cat][key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under (cat, key) with the category's TTL.
func (c *Cache) Set(cat Category, key string, value any) {
	ttl, ok := c.ttls[cat]
	if !ok || ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[cat] == nil {
		c.entries[cat] = make(map[string]entry)
	}
	c.entries[cat][key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
}

// Invalidate drops every entry in a category.
func (c *Cache) Invalidate(cat Category) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cat)
}

// OnMutation invalidates every category the invalidation table declares for
// op. Services call this after a successful commit.
func (c *Cache) OnMutation(op Operation) {
	for _, cat := range invalidations[op] {
		c.Invalidate(cat)
	}
}

// AffectedCategories exposes the invalidation table row for op. Used by
// tests to assert the table stays in sync with the service layer.
func AffectedCategories(op Operation) []Category {
	return invalidations[op]
}
