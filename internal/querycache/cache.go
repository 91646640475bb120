// Package querycache memoises event read results for a bounded time.
//
// Entries expire individually and the cache holds at most a fixed number of
// them. When full, the oldest inserted entry is evicted; reads never change an
// entry's position. Values are copied on the way in and on the way out so
// callers can never mutate a cached result.
//
// Every invalidation advances a generation counter. A reader that captures
// Generation before loading from storage and stores with SetIfGeneration
// never caches a result that an invalidation has already superseded.
package querycache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

const (
	// DefaultCapacity bounds the number of live entries.
	DefaultCapacity = 100
	// DefaultTTL applies when Set receives a non-positive ttl.
	DefaultTTL = 5 * time.Minute
)

// CloneFunc returns a deep copy of a cached value.
type CloneFunc func(value any) any

// Options configures a Cache.
type Options struct {
	Capacity int
	Now      func() time.Time
	// Clone copies values on Set and Get. Nil stores values as given, which
	// is only safe for immutable values.
	Clone CloneFunc
}

// Stats reports counters since construction.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Expired   uint64
	// Stale counts conditional stores refused after an invalidation.
	Stale uint64
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a TTL and capacity bounded store safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	lru   *simplelru.LRU[string, entry]
	now   func() time.Time
	clone CloneFunc
	stats Stats
	gen   uint64
}

// New constructs an empty cache.
func New(opts Options) (*Cache, error) {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	lru, err := simplelru.NewLRU[string, entry](capacity, nil)
	if err != nil {
		return nil, fmt.Errorf("querycache: %w", err)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	clone := opts.Clone
	if clone == nil {
		clone = func(value any) any { return value }
	}
	return &Cache{lru: lru, now: now, clone: clone}, nil
}

// Get returns a copy of the live value stored under key. Expired entries are
// removed and reported as misses.
func (c *Cache) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// Peek keeps insertion order intact.
	e, ok := c.lru.Peek(key)
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.lru.Remove(key)
		c.stats.Expired++
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return c.clone(e.value), true
}

// Set stores a copy of value under key for ttl. Overwriting a key refreshes
// its expiry.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if c == nil {
		return
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	stored := c.clone(value)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.addLocked(key, stored, ttl)
}

// Generation returns the current invalidation generation.
func (c *Cache) Generation() uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// SetIfGeneration stores value like Set, but only while no invalidation has
// happened since gen was read. It reports whether the value was stored.
func (c *Cache) SetIfGeneration(key string, value any, ttl time.Duration, gen uint64) bool {
	if c == nil {
		return false
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	stored := c.clone(value)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		c.stats.Stale++
		return false
	}
	c.addLocked(key, stored, ttl)
	return true
}

func (c *Cache) addLocked(key string, stored any, ttl time.Duration) {
	now := c.now()
	c.removeExpiredLocked(now)
	if evicted := c.lru.Add(key, entry{value: stored, expiresAt: now.Add(ttl)}); evicted {
		c.stats.Evictions++
	}
}

// Invalidate removes every entry whose key contains substring and returns how
// many were removed. An empty substring matches nothing.
func (c *Cache) Invalidate(substring string) int {
	if c == nil || substring == "" {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	removed := 0
	for _, key := range c.lru.Keys() {
		if strings.Contains(key, substring) {
			if c.lru.Remove(key) {
				removed++
			}
		}
	}
	return removed
}

// InvalidateAll drops every entry.
func (c *Cache) InvalidateAll() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.gen++
	c.lru.Purge()
	c.mu.Unlock()
}

// Len reports the number of stored entries, including expired ones not yet
// collected.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Cache) removeExpiredLocked(now time.Time) {
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if ok && !now.Before(e.expiresAt) {
			c.lru.Remove(key)
			c.stats.Expired++
		}
	}
}
