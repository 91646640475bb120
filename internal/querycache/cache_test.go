package querycache

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func cloneStrings(value any) any {
	src, ok := value.([]string)
	if !ok {
		return value
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

func newTestCache(t *testing.T, capacity int, now func() time.Time) *Cache {
	t.Helper()
	cache, err := New(Options{Capacity: capacity, Now: now, Clone: cloneStrings})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return cache
}

func TestCacheStoresAndReturnsCopies(t *testing.T) {
	current := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	cache := newTestCache(t, 4, func() time.Time { return current })

	original := []string{"anniversary"}
	cache.Set("events:query:a", original, time.Minute)

	// Mutating the original slice should not affect the cached copy.
	original[0] = "mutated"

	cached, ok := cache.Get("events:query:a")
	if !ok {
		t.Fatalf("expected cache hit")
	}
	got := cached.([]string)
	if got[0] != "anniversary" {
		t.Fatalf("expected cached value to remain unchanged, got %s", got[0])
	}

	got[0] = "changed"
	again, _ := cache.Get("events:query:a")
	if again.([]string)[0] != "anniversary" {
		t.Fatalf("expected independent copy on each read, got %s", again.([]string)[0])
	}
}

func TestCacheExpiresEntriesPerTTL(t *testing.T) {
	current := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	cache := newTestCache(t, 4, func() time.Time { return current })

	cache.Set(StatsKey, []string{"stats"}, time.Minute)
	cache.Set("events:query:list", []string{"list"}, 5*time.Minute)

	current = current.Add(2 * time.Minute)
	if _, ok := cache.Get(StatsKey); ok {
		t.Fatalf("expected stats entry to expire after one minute")
	}
	if _, ok := cache.Get("events:query:list"); !ok {
		t.Fatalf("expected list entry to survive")
	}

	stats := cache.Stats()
	if stats.Expired != 1 || stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestCacheOverwriteRefreshesTTL(t *testing.T) {
	current := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	cache := newTestCache(t, 4, func() time.Time { return current })

	cache.Set("k", []string{"v1"}, time.Minute)
	current = current.Add(50 * time.Second)
	cache.Set("k", []string{"v2"}, time.Minute)
	current = current.Add(50 * time.Second)

	value, ok := cache.Get("k")
	if !ok {
		t.Fatalf("expected overwritten entry to be live")
	}
	if value.([]string)[0] != "v2" {
		t.Fatalf("expected latest value, got %v", value)
	}
}

func TestCacheEvictsOldestInsertedWhenFull(t *testing.T) {
	cache := newTestCache(t, 3, nil)

	cache.Set("events:query:1", []string{"1"}, time.Hour)
	cache.Set("events:query:2", []string{"2"}, time.Hour)
	cache.Set("events:query:3", []string{"3"}, time.Hour)

	// Reads must not protect an entry from eviction.
	if _, ok := cache.Get("events:query:1"); !ok {
		t.Fatalf("expected hit for first entry")
	}
	cache.Set("events:query:4", []string{"4"}, time.Hour)

	if cache.Len() != 3 {
		t.Fatalf("expected capacity to hold at 3, got %d", cache.Len())
	}
	if _, ok := cache.Get("events:query:1"); ok {
		t.Fatalf("expected oldest inserted entry to be evicted")
	}
	for _, key := range []string{"events:query:2", "events:query:3", "events:query:4"} {
		if _, ok := cache.Get(key); !ok {
			t.Fatalf("expected %s to remain", key)
		}
	}
	if cache.Stats().Evictions != 1 {
		t.Fatalf("expected one eviction, got %d", cache.Stats().Evictions)
	}
}

func TestCacheInvalidateBySubstring(t *testing.T) {
	cache := newTestCache(t, 10, nil)

	cache.Set("events:query:abc", []string{"a"}, time.Hour)
	cache.Set(StatsKey, []string{"s"}, time.Hour)
	cache.Set(HistoryKey(7), []string{"h"}, time.Hour)
	cache.Set("profile:settings", []string{"p"}, time.Hour)

	if removed := cache.Invalidate(""); removed != 0 {
		t.Fatalf("expected empty substring to match nothing, removed %d", removed)
	}
	if removed := cache.Invalidate(Namespace); removed != 3 {
		t.Fatalf("expected 3 event entries removed, got %d", removed)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected unrelated entry to remain, len=%d", cache.Len())
	}

	cache.InvalidateAll()
	if cache.Len() != 0 {
		t.Fatalf("expected empty cache, len=%d", cache.Len())
	}
}

func TestCacheSetIfGeneration(t *testing.T) {
	cache := newTestCache(t, 10, nil)

	gen := cache.Generation()
	if !cache.SetIfGeneration("events:query:a", []string{"fresh"}, time.Hour, gen) {
		t.Fatalf("expected store with current generation")
	}

	stale := cache.Generation()
	cache.Invalidate(Namespace)
	if cache.SetIfGeneration("events:query:a", []string{"old"}, time.Hour, stale) {
		t.Fatalf("expected store to be refused after invalidation")
	}
	if _, ok := cache.Get("events:query:a"); ok {
		t.Fatalf("expected no entry after refused store")
	}

	stale = cache.Generation()
	cache.InvalidateAll()
	if cache.SetIfGeneration(StatsKey, []string{"old"}, time.Hour, stale) {
		t.Fatalf("expected InvalidateAll to advance the generation")
	}
	if got := cache.Stats().Stale; got != 2 {
		t.Fatalf("expected 2 refused stores, got %d", got)
	}

	if !cache.SetIfGeneration(StatsKey, []string{"new"}, time.Hour, cache.Generation()) {
		t.Fatalf("expected store after re-reading the generation")
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	cache := newTestCache(t, 16, nil)

	done := make(chan struct{})
	for w := 0; w < 8; w++ {
		go func(w int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("events:query:%d", (w*200+i)%32)
				cache.Set(key, []string{key}, time.Minute)
				if value, ok := cache.Get(key); ok && !strings.HasPrefix(value.([]string)[0], "events:query:") {
					t.Errorf("unexpected value %v", value)
				}
				if i%50 == 0 {
					cache.Invalidate("events")
				}
			}
		}(w)
	}
	for w := 0; w < 8; w++ {
		<-done
	}
	if cache.Len() > 16 {
		t.Fatalf("capacity exceeded: %d", cache.Len())
	}
}

func TestNilCacheIsInert(t *testing.T) {
	var cache *Cache
	cache.Set("k", "v", time.Minute)
	if _, ok := cache.Get("k"); ok {
		t.Fatalf("expected miss from nil cache")
	}
	if cache.Invalidate("k") != 0 || cache.Len() != 0 {
		t.Fatalf("expected nil cache to report nothing")
	}
	if cache.SetIfGeneration("k", "v", time.Minute, cache.Generation()) {
		t.Fatalf("expected nil cache to refuse stores")
	}
}
