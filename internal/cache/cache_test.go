// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/epitrack/internal/metrics"
)

// manualClock is advanced explicitly by tests.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (m *manualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *manualClock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *manualClock) {
	t.Helper()
	clock := &manualClock{now: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)}
	return newCache("test-"+t.Name(), ttl, clock.Now), clock
}

func TestCacheBasicOperations(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(t, time.Minute)

	c.Set("key1", "value1")
	value, exists := c.Get("key1")
	if !exists {
		t.Error("Expected key1 to exist")
	}
	if value != "value1" {
		t.Errorf("Expected value1, got %v", value)
	}

	if _, exists = c.Get("key2"); exists {
		t.Error("Expected key2 to not exist")
	}
}

func TestCacheExpiration(t *testing.T) {
	t.Parallel()
	c, clock := newTestCache(t, 180*time.Second)

	c.Set("key1", "value1")
	clock.Advance(179 * time.Second)
	if _, exists := c.Get("key1"); !exists {
		t.Error("Expected key1 to exist before the TTL elapses")
	}

	clock.Advance(2 * time.Second)
	if _, exists := c.Get("key1"); exists {
		t.Error("Expected key1 to be expired")
	}
	if stats := c.GetStats(); stats.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", stats.Evictions)
	}
}

func TestCacheSetWithTTL(t *testing.T) {
	t.Parallel()
	c, clock := newTestCache(t, time.Hour)

	c.SetWithTTL("short", 1, time.Second)
	c.Set("long", 2)
	clock.Advance(2 * time.Second)

	if _, ok := c.Get("short"); ok {
		t.Error("short-lived entry should have expired")
	}
	if _, ok := c.Get("long"); !ok {
		t.Error("default TTL entry should still exist")
	}
}

func TestCacheDeleteAndClear(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(t, time.Minute)

	c.Set("key1", "value1")
	c.Delete("key1")
	if _, exists := c.Get("key1"); exists {
		t.Error("Expected key1 to be deleted")
	}

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("key%d", i), i)
	}
	c.Clear()
	for i := 0; i < 3; i++ {
		if _, exists := c.Get(fmt.Sprintf("key%d", i)); exists {
			t.Errorf("Expected key%d to be cleared", i)
		}
	}
	if stats := c.GetStats(); stats.TotalKeys != 0 {
		t.Errorf("TotalKeys = %d after Clear", stats.TotalKeys)
	}
}

func TestCacheCleanup(t *testing.T) {
	t.Parallel()
	c, clock := newTestCache(t, time.Minute)

	c.Set("a", 1)
	c.SetWithTTL("b", 2, time.Hour)
	clock.Advance(2 * time.Minute)
	c.cleanup()

	stats := c.GetStats()
	if stats.TotalKeys != 1 || stats.Evictions != 1 {
		t.Errorf("after cleanup: keys=%d evictions=%d, want 1/1", stats.TotalKeys, stats.Evictions)
	}
	if !stats.LastCleanup.Equal(clock.Now()) {
		t.Errorf("LastCleanup = %s", stats.LastCleanup)
	}
}

func TestCacheHitRateAndMetrics(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(t, time.Minute)

	if c.HitRate() != 0 {
		t.Errorf("HitRate() on empty cache = %v", c.HitRate())
	}

	c.Set("k", "v")
	c.Get("k")
	c.Get("k")
	c.Get("k")
	c.Get("missing")

	if got := c.HitRate(); got != 75 {
		t.Errorf("HitRate() = %v, want 75", got)
	}
	if got := testutil.ToFloat64(metrics.CacheHits.WithLabelValues(c.name)); got != 3 {
		t.Errorf("cache hits metric = %v, want 3", got)
	}
	if got := testutil.ToFloat64(metrics.CacheMisses.WithLabelValues(c.name)); got != 1 {
		t.Errorf("cache misses metric = %v, want 1", got)
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(t, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key%d", n%4)
			for j := 0; j < 100; j++ {
				c.Set(key, j)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if stats := c.GetStats(); stats.TotalKeys != 4 {
		t.Errorf("TotalKeys = %d, want 4", stats.TotalKeys)
	}
}

func TestCacheStopIsIdempotent(t *testing.T) {
	t.Parallel()
	c := New("test-stop", time.Minute)
	c.Stop()
	c.Stop()
}

func TestGenerateKey(t *testing.T) {
	t.Parallel()

	a := GenerateKey("trends_series", map[string]string{"phrase": "грипп", "year": "2024"})
	b := GenerateKey("trends_series", map[string]string{"year": "2024", "phrase": "грипп"})
	c := GenerateKey("trends_series", map[string]string{"phrase": "орви", "year": "2024"})

	if a != b {
		t.Errorf("keys differ for identical params: %s vs %s", a, b)
	}
	if a == c {
		t.Errorf("keys collide for different params")
	}
	if d := GenerateKey("bulletin_series", map[string]string{"phrase": "грипп", "year": "2024"}); d == a {
		t.Errorf("method name not part of key")
	}
}
