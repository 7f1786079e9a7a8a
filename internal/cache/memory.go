package cache

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tutoapp/practicecache/internal/metrics"
	"github.com/tutoapp/practicecache/pkg/types"
)

// MemoryCache is a bounded in-memory cache with priority-weighted LRU eviction
// and priority-weighted TTL expiry. It implements types.Cache.
type MemoryCache[V any] struct {
	mu      sync.Mutex
	items   map[string]*entry[V]
	seq     uint64
	config  Config
	sweep   *Task
	name    string
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Collector

	// Statistics
	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64
}

type entry[V any] struct {
	key        string
	value      V
	priority   int
	accessedAt time.Time
	seq        uint64
}

var _ types.Cache[int] = (*MemoryCache[int])(nil)

// NewMemoryCache creates a memory cache and starts its periodic sweep when
// config.CleanupInterval is positive.
func NewMemoryCache[V any](config Config, opts ...Option) *MemoryCache[V] {
	o := buildOptions("memory", opts)
	config = config.withDefaults()

	c := &MemoryCache[V]{
		items:   make(map[string]*entry[V]),
		config:  config,
		name:    o.name,
		now:     o.now,
		logger:  o.logger,
		metrics: o.metrics,
	}
	c.sweep = StartTask(config.CleanupInterval, func() {
		c.EvictExpired(context.Background())
	})

	return c
}

// Get returns the value for key and refreshes its recency. A miss leaves the cache untouched.
func (c *MemoryCache[V]) Get(_ context.Context, key string) (V, bool) {
	c.mu.Lock()
	e, ok := c.items[key]
	if !ok {
		c.misses++
		c.mu.Unlock()
		c.metrics.RecordCacheRequest(c.name, "miss")
		var zero V
		return zero, false
	}
	c.touch(e)
	c.hits++
	value := e.value
	c.mu.Unlock()

	c.metrics.RecordCacheRequest(c.name, "hit")
	return value, true
}

// Put inserts or overwrites key, stamps it now and enforces capacity.
// Negative priorities are stored as 0.
func (c *MemoryCache[V]) Put(_ context.Context, key string, value V, priority int) {
	if priority < 0 {
		priority = 0
	}

	c.mu.Lock()
	e, ok := c.items[key]
	if !ok {
		e = &entry[V]{key: key}
		c.items[key] = e
	}
	e.value = value
	e.priority = priority
	c.touch(e)
	evicted := c.enforceCapacity()
	size := len(c.items)
	c.mu.Unlock()

	c.metrics.RecordEviction(c.name, "capacity", evicted)
	c.metrics.UpdateCacheSize(c.name, size)
}

// add inserts key only when it is absent, with an explicit access time.
// It reports whether the entry was inserted.
func (c *MemoryCache[V]) add(key string, value V, priority int, accessedAt time.Time) bool {
	if priority < 0 {
		priority = 0
	}

	c.mu.Lock()
	if _, ok := c.items[key]; ok {
		c.mu.Unlock()
		return false
	}
	c.seq++
	c.items[key] = &entry[V]{key: key, value: value, priority: priority, accessedAt: accessedAt, seq: c.seq}
	evicted := c.enforceCapacity()
	size := len(c.items)
	c.mu.Unlock()

	c.metrics.RecordEviction(c.name, "capacity", evicted)
	c.metrics.UpdateCacheSize(c.name, size)
	return true
}

// EvictExpired applies EvictOlderThan with the configured MaxAge.
func (c *MemoryCache[V]) EvictExpired(_ context.Context) {
	c.EvictOlderThan(c.config.MaxAge)
}

// EvictOlderThan removes every entry whose age exceeds maxAge * (1 + priority*0.5)
// and returns how many were removed.
func (c *MemoryCache[V]) EvictOlderThan(maxAge time.Duration) int {
	c.mu.Lock()
	now := c.now()
	removed := 0
	for key, e := range c.items {
		if now.Sub(e.accessedAt) > EffectiveTTL(maxAge, e.priority) {
			delete(c.items, key)
			removed++
		}
	}
	c.expirations += uint64(removed)
	size := len(c.items)
	c.mu.Unlock()

	if removed > 0 {
		c.logger.Debug("evicted expired entries", "count", removed, "max_age", maxAge)
	}
	c.metrics.RecordEviction(c.name, "expired", removed)
	c.metrics.UpdateCacheSize(c.name, size)
	return removed
}

// Clear removes every entry and halts the periodic sweep.
func (c *MemoryCache[V]) Clear() {
	c.stopSweep()
	c.Purge(context.Background())
}

// Purge removes every entry. The periodic sweep keeps running.
func (c *MemoryCache[V]) Purge(_ context.Context) {
	c.mu.Lock()
	c.items = make(map[string]*entry[V])
	c.mu.Unlock()
	c.metrics.UpdateCacheSize(c.name, 0)
}

// Len returns the number of entries.
func (c *MemoryCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys returns the cached keys ordered by eviction rank, the entry evicted last first.
func (c *MemoryCache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ranked := c.ranked()
	keys := make([]string, len(ranked))
	for i, e := range ranked {
		keys[i] = e.key
	}
	return keys
}

// Stats returns a snapshot of cache statistics.
func (c *MemoryCache[V]) Stats() types.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := types.CacheStats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		Size:        int64(len(c.items)),
		Capacity:    int64(c.config.MaxEntries),
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	if c.config.MaxEntries > 0 {
		stats.Utilization = float64(len(c.items)) / float64(c.config.MaxEntries)
	}
	return stats
}

// Close stops the periodic sweep. Entries stay readable.
func (c *MemoryCache[V]) Close() error {
	c.stopSweep()
	return nil
}

func (c *MemoryCache[V]) stopSweep() {
	c.mu.Lock()
	task := c.sweep
	c.sweep = nil
	c.mu.Unlock()

	// Stop outside the lock; the sweep itself takes it.
	task.Stop()
}

// touch must be called with mu held.
func (c *MemoryCache[V]) touch(e *entry[V]) {
	c.seq++
	e.seq = c.seq
	e.accessedAt = c.now()
}

// ranked orders entries by priority desc, then recency desc. Must be called with mu held.
func (c *MemoryCache[V]) ranked() []*entry[V] {
	all := make([]*entry[V], 0, len(c.items))
	for _, e := range c.items {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].priority != all[j].priority {
			return all[i].priority > all[j].priority
		}
		return all[i].seq > all[j].seq
	})
	return all
}

// enforceCapacity keeps the top MaxEntries entries. Must be called with mu held.
func (c *MemoryCache[V]) enforceCapacity() int {
	if len(c.items) <= c.config.MaxEntries {
		return 0
	}

	ranked := c.ranked()
	evicted := 0
	for _, e := range ranked[c.config.MaxEntries:] {
		delete(c.items, e.key)
		evicted++
	}
	c.evictions += uint64(evicted)
	return evicted
}
