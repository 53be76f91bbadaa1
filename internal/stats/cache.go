package stats

import (
	"sync"
	"time"
)

// cachedTable is a memoized report result
type cachedTable struct {
	Table    *Table
	CachedAt time.Time
}

// Cache holds report results keyed by report ID and params
type Cache struct {
	mu sync.RWMutex

	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	// tables caches results
	// Key: "reportID|params"
	tables map[string]*cachedTable
}

// NewCache creates a new cache instance. A zero ttl disables caching.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		tables:     make(map[string]*cachedTable),
	}
}

// Get returns a cached table that has not expired
func (c *Cache) Get(key string) (*Table, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.tables[key]
	if !ok || c.now().Sub(entry.CachedAt) >= c.ttl {
		return nil, false
	}
	return entry.Table, true
}

// Set stores a table, evicting the oldest entry when the cache is full
func (c *Cache) Set(key string, table *Table) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tables[key]; !exists && c.maxEntries > 0 && len(c.tables) >= c.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, entry := range c.tables {
			if oldestKey == "" || entry.CachedAt.Before(oldest) {
				oldestKey, oldest = k, entry.CachedAt
			}
		}
		delete(c.tables, oldestKey)
	}
	c.tables[key] = &cachedTable{Table: table, CachedAt: c.now()}
}

// Len returns the number of cached tables, expired or not
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tables)
}

// Clear drops every cached table
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = make(map[string]*cachedTable)
}

// CleanupExpired removes entries older than the TTL and returns how many were removed
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.tables {
		if now.Sub(entry.CachedAt) >= c.ttl {
			delete(c.tables, key)
			removed++
		}
	}
	return removed
}
