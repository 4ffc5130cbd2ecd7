package handlers

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/tobilg/caddyserver-soqlstudio-module/resultset"
)

// Default result cache settings.
const (
	DefaultResultCacheSize = 100
	DefaultResultCacheTTL  = 30 * time.Minute
)

// CachedResult is one executed query kept for later views and exports.
type CachedResult struct {
	ID         string
	SOQL       string
	Rows       []resultset.Row
	Columns    []string
	ExecutedAt time.Time
}

// response returns the view response fields identifying e.
func (e *CachedResult) response() ViewResponse {
	executedAt := e.ExecutedAt
	return ViewResponse{ResultID: e.ID, SOQL: e.SOQL, ExecutedAt: &executedAt}
}

// ResultCache keeps recent result sets by id. Entries expire after the TTL
// or when the least recently used entry is evicted.
type ResultCache struct {
	entries *expirable.LRU[string, *CachedResult]
}

// NewResultCache creates a cache holding up to size result sets for ttl.
func NewResultCache(size int, ttl time.Duration) *ResultCache {
	if size <= 0 {
		size = DefaultResultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultResultCacheTTL
	}
	return &ResultCache{
		entries: expirable.NewLRU[string, *CachedResult](size, nil, ttl),
	}
}

// Add stores rows under a new id and returns the entry.
func (c *ResultCache) Add(soql string, rows []resultset.Row) *CachedResult {
	entry := &CachedResult{
		ID:         uuid.New().String(),
		SOQL:       soql,
		Rows:       rows,
		Columns:    resultset.Columns(rows),
		ExecutedAt: time.Now().UTC(),
	}
	c.entries.Add(entry.ID, entry)
	return entry
}

// Get returns the entry for id. Cached rows are shared and must not be
// modified.
func (c *ResultCache) Get(id string) (*CachedResult, bool) {
	return c.entries.Get(id)
}

// Len returns the number of live entries.
func (c *ResultCache) Len() int {
	return c.entries.Len()
}
