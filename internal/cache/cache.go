// Package cache provides small in-memory TTL stores for upstream
// responses. Entries may carry an explicit deadline tighter than the
// store TTL (used for capability tokens with their own expiry).
package cache

import (
	"sync"
	"time"
)

// Store is a keyed TTL cache. Reads are lock-shared; refreshes are
// last-writer-wins, which is acceptable since a duplicate fetch is
// wasted work, not a correctness hazard.
type Store[V any] struct {
	mu      sync.RWMutex
	entries map[string]*entry[V]
	maxAge  time.Duration
	maxSize int

	// now is swappable for tests.
	now func() time.Time
}

type entry[V any] struct {
	value     V
	timestamp time.Time
	// deadline, when non-zero, expires the entry independently of the
	// store TTL. The tighter of the two governs validity.
	deadline time.Time
}

// New creates a store with the given max age and size.
func New[V any](maxAge time.Duration, maxSize int) *Store[V] {
	return &Store[V]{
		entries: make(map[string]*entry[V], maxSize),
		maxAge:  maxAge,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get returns the cached value if present and not expired.
func (c *Store[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero V
	e, exists := c.entries[key]
	if !exists {
		return zero, false
	}

	now := c.now()
	if now.Sub(e.timestamp) > c.maxAge {
		return zero, false
	}
	if !e.deadline.IsZero() && !now.Before(e.deadline) {
		return zero, false
	}
	return e.value, true
}

// Set stores a value under the store-wide TTL.
func (c *Store[V]) Set(key string, value V) {
	c.SetWithDeadline(key, value, time.Time{})
}

// SetWithDeadline stores a value that additionally expires at deadline.
func (c *Store[V]) SetWithDeadline(key string, value V, deadline time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple eviction: if at max size, remove the oldest entry.
	if len(c.entries) >= c.maxSize {
		var oldestKey string
		var oldestTime time.Time
		first := true
		for k, e := range c.entries {
			if first || e.timestamp.Before(oldestTime) {
				oldestKey = k
				oldestTime = e.timestamp
				first = false
			}
		}
		if oldestKey != "" {
			delete(c.entries, oldestKey)
		}
	}

	c.entries[key] = &entry[V]{
		value:     value,
		timestamp: c.now(),
		deadline:  deadline,
	}
}

// Delete removes a key.
func (c *Store[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// SetClock overrides the time source. Test hook.
func (c *Store[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
