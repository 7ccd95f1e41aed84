package cache

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(cfg ResultCacheConfig) (*ResultCache, *time.Time) {
	c := NewResultCache(cfg)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestKey_Deterministic(t *testing.T) {
	type params struct {
		Snapshot string `json:"snapshot"`
		Position int    `json:"position"`
	}
	k1 := Key("position_stats", params{"snap-1", 2})
	k2 := Key("position_stats", params{"snap-1", 2})
	k3 := Key("position_stats", params{"snap-1", 3})

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.True(t, strings.HasPrefix(k1, "position_stats:"))
}

func TestResultCache_SetGet(t *testing.T) {
	c, _ := newTestCache(ResultCacheConfig{MaxEntries: 10, MaxMemoryBytes: 1 << 20, TTL: time.Minute})

	c.Set("score", "k1", 42)
	v, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
	assert.Equal(t, 1, stats.ByKind["score"])
}

func TestResultCache_CountEviction(t *testing.T) {
	// maxSize=2: inserting 3 keys leaves exactly 2, with the
	// least-recently-accessed of the originals evicted.
	c, _ := newTestCache(ResultCacheConfig{MaxEntries: 2, MaxMemoryBytes: 1 << 20, TTL: time.Minute})

	c.Set("score", "k1", "a")
	c.Set("score", "k2", "b")

	_, ok := c.Get("k1") // k2 is now least recently used
	require.True(t, ok)

	c.Set("score", "k3", "c")

	assert.Equal(t, 2, c.Len())
	assert.False(t, c.Has("k2"))
	assert.True(t, c.Has("k1"))
	assert.True(t, c.Has("k3"))
}

func TestResultCache_MemoryPressureEviction(t *testing.T) {
	cfg := ResultCacheConfig{MaxEntries: 100, MaxMemoryBytes: 400, TTL: time.Minute}
	c, _ := newTestCache(cfg)

	payload := strings.Repeat("x", 100) // ~105 bytes serialized with key
	for i := 0; i < 10; i++ {
		c.Set("blob", fmt.Sprintf("key-%d", i), payload)
		assert.LessOrEqual(t, c.MemoryUsage(), cfg.MaxMemoryBytes)
	}

	// Oldest entries were evicted lowest-recency-first.
	assert.False(t, c.Has("key-0"))
	assert.True(t, c.Has("key-9"))
	assert.Greater(t, c.Stats().Evictions, int64(0))
}

func TestResultCache_OversizedValueNotStored(t *testing.T) {
	c, _ := newTestCache(ResultCacheConfig{MaxEntries: 10, MaxMemoryBytes: 64, TTL: time.Minute})

	c.Set("blob", "huge", strings.Repeat("x", 1000))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.MemoryUsage())
}

func TestResultCache_TTLExpiryOnRead(t *testing.T) {
	c, now := newTestCache(ResultCacheConfig{MaxEntries: 10, MaxMemoryBytes: 1 << 20, TTL: time.Minute})

	c.Set("score", "k1", "value")
	before := c.MemoryUsage()
	require.Greater(t, before, int64(0))

	*now = now.Add(2 * time.Minute)

	_, ok := c.Get("k1")
	assert.False(t, ok, "entry past TTL must read as absent")
	assert.Equal(t, int64(0), c.MemoryUsage(), "expired entry size must be deducted")
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(1), c.Stats().Expirations)
}

func TestResultCache_HasExpiresWithoutBump(t *testing.T) {
	c, now := newTestCache(ResultCacheConfig{MaxEntries: 10, MaxMemoryBytes: 1 << 20, TTL: time.Minute})

	c.Set("score", "k1", "value")
	assert.True(t, c.Has("k1"))

	// Has must not count as a hit or refresh recency.
	stats := c.Stats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)

	*now = now.Add(2 * time.Minute)
	assert.False(t, c.Has("k1"))
	assert.Equal(t, 0, c.Len())
}

func TestResultCache_UpdateExistingKey(t *testing.T) {
	c, _ := newTestCache(ResultCacheConfig{MaxEntries: 10, MaxMemoryBytes: 1 << 20, TTL: time.Minute})

	c.Set("score", "k1", "short")
	first := c.MemoryUsage()
	c.Set("score", "k1", strings.Repeat("y", 50))

	assert.Equal(t, 1, c.Len())
	assert.Greater(t, c.MemoryUsage(), first)

	v, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, strings.Repeat("y", 50), v)
}

func TestResultCache_ClearExpired(t *testing.T) {
	c, now := newTestCache(ResultCacheConfig{MaxEntries: 10, MaxMemoryBytes: 1 << 20, TTL: time.Minute})

	c.Set("score", "old-1", "a")
	c.Set("score", "old-2", "b")
	*now = now.Add(2 * time.Minute)
	c.Set("score", "fresh", "c")

	removed := c.ClearExpired()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Has("fresh"))
}

func TestResultCache_OptimizeDropsLargeStaleEntries(t *testing.T) {
	c, now := newTestCache(ResultCacheConfig{
		MaxEntries:      10,
		MaxMemoryBytes:  1 << 20,
		TTL:             time.Hour,
		StaleWindow:     time.Minute,
		LargeEntryBytes: 50,
	})

	c.Set("blob", "large-stale", strings.Repeat("x", 200))
	c.Set("blob", "small-stale", "tiny")
	*now = now.Add(2 * time.Minute)
	c.Set("blob", "large-fresh", strings.Repeat("x", 200))
	_, _ = c.Get("large-fresh")

	removed := c.Optimize()
	assert.Equal(t, 1, removed)
	assert.False(t, c.Has("large-stale"))
	assert.True(t, c.Has("small-stale"), "small entries survive optimize even when stale")
	assert.True(t, c.Has("large-fresh"), "recently accessed large entries survive")
}

func TestResultCache_ClearKeepsCounters(t *testing.T) {
	c, _ := newTestCache(ResultCacheConfig{MaxEntries: 10, MaxMemoryBytes: 1 << 20, TTL: time.Minute})

	c.Set("score", "k1", 1)
	_, _ = c.Get("k1")
	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.MemoryUsage())
	assert.Equal(t, int64(1), c.Stats().Hits)
}

func TestResultCache_StatsAverageAge(t *testing.T) {
	c, now := newTestCache(ResultCacheConfig{MaxEntries: 10, MaxMemoryBytes: 1 << 20, TTL: time.Hour})

	c.Set("score", "k1", 1)
	*now = now.Add(time.Minute)
	c.Set("score", "k2", 2)

	stats := c.Stats()
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, 30*time.Second, stats.AverageAge)
	assert.Greater(t, stats.MemoryPercent, 0.0)
}
