// Package prematch caches rendered pre-match context per match so the
// scheduler does not rebuild it on every cycle. The cache is an
// explicit component with a TTL and an injectable clock; nothing in
// the engine holds process-wide implicit state.
package prematch

import (
	"sync"
	"time"
)

// DefaultTTL matches the cadence at which pre-match context can
// meaningfully change during a live match.
const DefaultTTL = 10 * time.Minute

type entry struct {
	context  string
	storedAt time.Time
}

// Cache is a TTL cache of pre-match context strings keyed by match ID.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithClock injects a clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates an empty cache.
func NewCache(opts ...Option) *Cache {
	c := &Cache{
		ttl:     DefaultTTL,
		now:     time.Now,
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached context for matchID if it has not expired.
func (c *Cache) Get(matchID string) (string, bool) {
	c.mu.RLock()
	e, ok := c.entries[matchID]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.storedAt) > c.ttl {
		return "", false
	}
	return e.context, true
}

// Put stores the context for matchID, resetting its TTL.
func (c *Cache) Put(matchID, context string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[matchID] = entry{context: context, storedAt: c.now()}
}

// Evict drops expired entries and entries for matches no longer in
// keep. Called opportunistically by the scheduler.
func (c *Cache) Evict(keep map[string]bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		if now.Sub(e.storedAt) > c.ttl || (keep != nil && !keep[id]) {
			delete(c.entries, id)
		}
	}
}

// Len returns the number of cached entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
