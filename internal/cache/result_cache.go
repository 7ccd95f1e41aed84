package cache

import (
	"container/list"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// ResultCacheConfig bounds the memoization store.
type ResultCacheConfig struct {
	MaxEntries      int           `json:"max_entries"`
	MaxMemoryBytes  int64         `json:"max_memory_bytes"`
	TTL             time.Duration `json:"ttl"`
	StaleWindow     time.Duration `json:"stale_window"`      // Optimize: unaccessed-for window
	LargeEntryBytes int64         `json:"large_entry_bytes"` // Optimize: size threshold
}

// DefaultResultCacheConfig returns the stock bounds.
func DefaultResultCacheConfig() ResultCacheConfig {
	return ResultCacheConfig{
		MaxEntries:      1000,
		MaxMemoryBytes:  32 << 20,
		TTL:             10 * time.Minute,
		StaleWindow:     5 * time.Minute,
		LargeEntryBytes: 64 << 10,
	}
}

// Entry is one cached computation result and its bookkeeping.
type Entry struct {
	Key            string
	Kind           string
	Value          any
	InsertedAt     time.Time
	LastAccessedAt time.Time
	AccessCount    int64
	SizeBytes      int64
}

// Stats is a point-in-time view of cache health.
type Stats struct {
	Size           int            `json:"size"`
	MemoryUsage    int64          `json:"memory_usage_bytes"`
	MemoryPercent  float64        `json:"memory_percent"`
	Hits           int64          `json:"hits"`
	Misses         int64          `json:"misses"`
	HitRate        float64        `json:"hit_rate"`
	Evictions      int64          `json:"evictions"`
	Expirations    int64          `json:"expirations"`
	ByKind         map[string]int `json:"by_kind"`
	AverageAge     time.Duration  `json:"average_age"`
	LastUpdated    time.Time      `json:"last_updated"`
	MaxEntries     int            `json:"max_entries"`
	MaxMemoryBytes int64          `json:"max_memory_bytes"`
}

// ResultCache memoizes expensive derived results under a maximum entry
// count, a maximum estimated memory footprint, and a TTL. Expiry is checked
// lazily on read. All mutation goes through a single mutex so the count and
// memory invariants stay exact.
//
// Eviction rules:
//   - memory pressure (pre-insert): evict lowest-lastAccessedAt entries,
//     ties broken by insertion order, until the new entry fits;
//   - count pressure (pre-insert): evict exactly one least-recently-used
//     entry when the cache is full, even without memory pressure.
type ResultCache struct {
	mu    sync.Mutex
	cfg   ResultCacheConfig
	index map[string]*list.Element
	// lru orders entries by recency: front = most recently accessed. New
	// entries enter at the front, so the back is both the lowest
	// lastAccessedAt and, among ties, the earliest inserted.
	lru *list.List

	currentMemory int64
	hits          int64
	misses        int64
	evictions     int64
	expirations   int64

	// now is swapped in tests to drive TTL expiry deterministically.
	now func() time.Time
}

// NewResultCache builds a cache with the given bounds. Non-positive bounds
// fall back to defaults.
func NewResultCache(cfg ResultCacheConfig) *ResultCache {
	def := DefaultResultCacheConfig()
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	if cfg.MaxMemoryBytes <= 0 {
		cfg.MaxMemoryBytes = def.MaxMemoryBytes
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.StaleWindow <= 0 {
		cfg.StaleWindow = def.StaleWindow
	}
	if cfg.LargeEntryBytes <= 0 {
		cfg.LargeEntryBytes = def.LargeEntryBytes
	}
	return &ResultCache{
		cfg:   cfg,
		index: make(map[string]*list.Element),
		lru:   list.New(),
		now:   time.Now,
	}
}

// Key derives a deterministic cache key from a computation kind and its
// parameters. Parameters are JSON-serialized; map keys are sorted by
// encoding/json, so identical parameters always produce identical keys.
func Key(kind string, params any) string {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%s:%v", kind, params)
	}
	return kind + ":" + string(raw)
}

// estimateSize approximates an entry's memory footprint from its serialized
// length. Unserializable values get a fixed conservative estimate.
func estimateSize(key string, value any) int64 {
	raw, err := json.Marshal(value)
	if err != nil {
		return int64(len(key)) + 512
	}
	return int64(len(key) + len(raw))
}

// Set stores value under (kind, key), evicting as needed to respect the
// memory and count bounds. Values larger than the whole memory budget are
// dropped rather than stored; callers just recompute.
func (c *ResultCache) Set(kind, key string, value any) {
	size := estimateSize(key, value)
	if size > c.cfg.MaxMemoryBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if elem, ok := c.index[key]; ok {
		ent := elem.Value.(*Entry)
		c.currentMemory += size - ent.SizeBytes
		ent.Value = value
		ent.Kind = kind
		ent.SizeBytes = size
		ent.InsertedAt = now
		ent.LastAccessedAt = now
		c.lru.MoveToFront(elem)
		c.evictForMemoryLocked(0)
		return
	}

	// Memory-pressure eviction runs before the insert so the budget is
	// never knowingly exceeded.
	c.evictForMemoryLocked(size)

	// Count-based eviction: exactly one LRU entry makes room.
	if len(c.index) >= c.cfg.MaxEntries {
		c.evictOldestLocked()
	}

	ent := &Entry{
		Key:            key,
		Kind:           kind,
		Value:          value,
		InsertedAt:     now,
		LastAccessedAt: now,
		SizeBytes:      size,
	}
	c.index[key] = c.lru.PushFront(ent)
	c.currentMemory += size
}

// Get returns the cached value for key. An entry past its TTL is deleted
// and reported as a miss; a live entry's access metadata is bumped.
func (c *ResultCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[key]
	if !ok {
		c.misses++
		return nil, false
	}
	ent := elem.Value.(*Entry)
	now := c.now()
	if now.Sub(ent.InsertedAt) > c.cfg.TTL {
		c.removeLocked(elem)
		c.expirations++
		c.misses++
		return nil, false
	}

	ent.LastAccessedAt = now
	ent.AccessCount++
	c.lru.MoveToFront(elem)
	c.hits++
	return ent.Value, true
}

// Has reports whether key is present and live. Expired entries are deleted,
// but access metadata and hit/miss counters are untouched.
func (c *ResultCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[key]
	if !ok {
		return false
	}
	ent := elem.Value.(*Entry)
	if c.now().Sub(ent.InsertedAt) > c.cfg.TTL {
		c.removeLocked(elem)
		c.expirations++
		return false
	}
	return true
}

// Delete removes key if present and reports whether it was.
func (c *ResultCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[key]
	if !ok {
		return false
	}
	c.removeLocked(elem)
	return true
}

// Clear removes every entry. Hit/miss counters survive so hit-rate history
// remains visible in stats.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = make(map[string]*list.Element)
	c.lru.Init()
	c.currentMemory = 0
}

// ClearExpired sweeps all entries once and removes those past TTL,
// returning how many were dropped.
func (c *ResultCache) ClearExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		ent := elem.Value.(*Entry)
		if now.Sub(ent.InsertedAt) > c.cfg.TTL {
			c.removeLocked(elem)
			c.expirations++
			removed++
		}
		elem = prev
	}
	return removed
}

// Optimize sweeps expired entries and additionally drops entries that are
// both large (above LargeEntryBytes) and unaccessed for the stale window,
// bounding long-tail growth even when memory is not under pressure.
func (c *ResultCache) Optimize() int {
	removed := c.ClearExpired()

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		ent := elem.Value.(*Entry)
		if ent.SizeBytes >= c.cfg.LargeEntryBytes && now.Sub(ent.LastAccessedAt) >= c.cfg.StaleWindow {
			c.removeLocked(elem)
			c.evictions++
			removed++
		}
		elem = prev
	}
	return removed
}

// Stats returns a snapshot of cache health.
func (c *ResultCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	byKind := make(map[string]int)
	var ageSum time.Duration
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		ent := elem.Value.(*Entry)
		byKind[ent.Kind]++
		ageSum += now.Sub(ent.InsertedAt)
	}

	s := Stats{
		Size:           len(c.index),
		MemoryUsage:    c.currentMemory,
		Hits:           c.hits,
		Misses:         c.misses,
		Evictions:      c.evictions,
		Expirations:    c.expirations,
		ByKind:         byKind,
		LastUpdated:    now,
		MaxEntries:     c.cfg.MaxEntries,
		MaxMemoryBytes: c.cfg.MaxMemoryBytes,
	}
	if c.cfg.MaxMemoryBytes > 0 {
		s.MemoryPercent = float64(c.currentMemory) / float64(c.cfg.MaxMemoryBytes) * 100
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	if len(c.index) > 0 {
		s.AverageAge = ageSum / time.Duration(len(c.index))
	}
	return s
}

// MemoryUsage returns the current estimated footprint in bytes.
func (c *ResultCache) MemoryUsage() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentMemory
}

// Len returns the current entry count.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// evictForMemoryLocked frees space until incoming fits inside the budget.
// The list back is the lowest-recency entry with insertion-order ties.
func (c *ResultCache) evictForMemoryLocked(incoming int64) {
	for c.currentMemory+incoming > c.cfg.MaxMemoryBytes && c.lru.Len() > 0 {
		c.evictOldestLocked()
	}
}

func (c *ResultCache) evictOldestLocked() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	c.removeLocked(elem)
	c.evictions++
}

func (c *ResultCache) removeLocked(elem *list.Element) {
	ent := elem.Value.(*Entry)
	c.lru.Remove(elem)
	delete(c.index, ent.Key)
	c.currentMemory -= ent.SizeBytes
}
