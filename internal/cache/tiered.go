package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tutoapp/practicecache/internal/metrics"
	"github.com/tutoapp/practicecache/internal/storage"
	"github.com/tutoapp/practicecache/pkg/types"
)

// Store is the persistent tier used by TieredCache. *storage.Adapter implements it.
type Store interface {
	Get(ctx context.Context, partition, id string) (storage.Record, bool, error)
	Put(ctx context.Context, partition string, record storage.Record) error
	GetAll(ctx context.Context, partition string) ([]storage.Record, error)
	DeleteOlderThan(ctx context.Context, partition string, cutoff time.Time) (int, error)
	Clear(ctx context.Context, partition string) error
}

var _ Store = (*storage.Adapter)(nil)

// TieredConfig represents two-tier cache configuration
type TieredConfig struct {
	Memory       Config        `yaml:"memory"`
	Partition    string        `yaml:"partition"`
	SyncInterval time.Duration `yaml:"sync_interval"`
	QueueSize    int           `yaml:"queue_size"`
	WarmLimit    int           `yaml:"warm_limit"`

	// Classify derives the record type stored in the type index from a key.
	Classify func(key string) string `yaml:"-"`
}

// DefaultTieredConfig returns a two-tier configuration syncing every 5 seconds.
func DefaultTieredConfig(partition string) TieredConfig {
	return TieredConfig{
		Memory:       DefaultConfig(),
		Partition:    partition,
		SyncInterval: 5 * time.Second,
		QueueSize:    256,
	}
}

// TieredCache serves reads from a bounded memory tier and falls back to a
// persistent Store. Writes land in memory synchronously and reach the store
// through a write-back queue.
//
// The first persistent failure switches the cache to fallback mode. In
// fallback mode the store is not touched until ResetFallback is called.
type TieredCache[V any] struct {
	memory   *MemoryCache[V]
	store    Store
	config   TieredConfig
	writer   *writeBack
	syncTask *Task
	name     string
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Collector

	fallback  atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once

	hits             atomic.Uint64
	misses           atomic.Uint64
	persistentHits   atomic.Uint64
	persistentErrors atomic.Uint64
	droppedWrites    atomic.Uint64
}

var _ types.Cache[int] = (*TieredCache[int])(nil)

// NewTieredCache creates a two-tier cache over store and starts the periodic sync.
func NewTieredCache[V any](store Store, config TieredConfig, opts ...Option) *TieredCache[V] {
	o := buildOptions("tiered", opts)

	config.Memory = config.Memory.withDefaults()
	// the sync task sweeps memory
	config.Memory.CleanupInterval = 0
	if config.Partition == "" {
		config.Partition = storage.PartitionExerciseCache
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}
	if config.WarmLimit <= 0 {
		config.WarmLimit = config.Memory.MaxEntries
	}

	c := &TieredCache[V]{
		memory:  NewMemoryCache[V](config.Memory, opts...),
		store:   store,
		config:  config,
		name:    o.name,
		now:     o.now,
		logger:  o.logger.With("partition", config.Partition),
		metrics: o.metrics,
	}
	c.writer = newWriteBack(store, config.Partition, config.QueueSize, c.fallback.Load, c.enterFallback)
	c.syncTask = StartTask(config.SyncInterval, func() {
		c.EvictExpired(context.Background())
	})

	return c
}

// Get checks memory first. On a miss outside fallback mode it reads the store,
// promotes a live record into memory and refreshes its timestamp asynchronously.
func (c *TieredCache[V]) Get(ctx context.Context, key string) (V, bool) {
	if value, ok := c.memory.Get(ctx, key); ok {
		c.hits.Add(1)
		return value, true
	}

	var zero V
	if c.fallback.Load() {
		c.misses.Add(1)
		return zero, false
	}

	record, found, err := c.store.Get(ctx, c.config.Partition, key)
	if err != nil {
		c.storeFailed(ctx, "get", err)
		c.misses.Add(1)
		return zero, false
	}
	if !found || c.expired(record) {
		c.misses.Add(1)
		return zero, false
	}

	var value V
	if err := json.Unmarshal(record.Payload, &value); err != nil {
		c.logger.Warn("discarding undecodable record", "key", key, "error", err)
		c.misses.Add(1)
		return zero, false
	}

	now := c.now()
	if !c.memory.add(key, value, record.Priority, now) {
		// a concurrent Put won; it is newer than the stored record
		if current, ok := c.memory.Get(ctx, key); ok {
			c.hits.Add(1)
			return current, true
		}
	}

	record.Timestamp = now
	c.enqueue(writeRequest{op: opPut, record: record})

	c.hits.Add(1)
	c.persistentHits.Add(1)
	c.metrics.RecordCacheRequest(c.name, "persistent_hit")
	return value, true
}

// Put writes memory synchronously and queues the persistent write. It never fails.
func (c *TieredCache[V]) Put(ctx context.Context, key string, value V, priority int) {
	if priority < 0 {
		priority = 0
	}
	c.memory.Put(ctx, key, value, priority)

	if c.fallback.Load() || c.closed.Load() {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("value cannot be persisted", "key", key, "error", err)
		return
	}

	c.enqueue(writeRequest{op: opPut, record: storage.Record{
		ID:        key,
		Type:      c.classify(key),
		Priority:  priority,
		Timestamp: c.now(),
		Payload:   payload,
	}})
}

// EvictExpired sweeps memory by priority-weighted TTL and deletes persistent
// records older than MaxAge. Persistent failures are logged and counted only.
func (c *TieredCache[V]) EvictExpired(ctx context.Context) {
	c.memory.EvictExpired(ctx)

	if c.fallback.Load() {
		return
	}

	cutoff := c.now().Add(-c.config.Memory.MaxAge)
	removed, err := c.store.DeleteOlderThan(ctx, c.config.Partition, cutoff)
	if err != nil {
		c.persistentErrors.Add(1)
		c.logger.Warn("persistent expiry sweep failed", "error", err)
		return
	}
	if removed > 0 {
		c.logger.Debug("deleted expired records", "count", removed)
		c.metrics.RecordEviction(c.name+"_persistent", "expired", removed)
	}
}

// Warm loads the most recent live records of the partition into memory and
// returns how many were loaded. Keys already in memory are left alone.
func (c *TieredCache[V]) Warm(ctx context.Context) int {
	if c.fallback.Load() {
		return 0
	}

	records, err := c.store.GetAll(ctx, c.config.Partition)
	if err != nil {
		c.storeFailed(ctx, "warm", err)
		return 0
	}

	live := records[:0]
	for _, r := range records {
		if !c.expired(r) {
			live = append(live, r)
		}
	}
	// newest last so that it ends up most recent in memory
	sort.Slice(live, func(i, j int) bool { return live[i].Timestamp.Before(live[j].Timestamp) })
	if len(live) > c.config.WarmLimit {
		live = live[len(live)-c.config.WarmLimit:]
	}

	loaded := 0
	for _, r := range live {
		var value V
		if err := json.Unmarshal(r.Payload, &value); err != nil {
			continue
		}
		if c.memory.add(r.ID, value, r.Priority, r.Timestamp) {
			loaded++
		}
	}

	c.logger.Debug("warmed memory tier", "records", len(records), "loaded", loaded)
	return loaded
}

// Sync waits until every persistent write queued before the call has been applied.
func (c *TieredCache[V]) Sync(ctx context.Context) error {
	return c.writer.barrier(ctx)
}

// Purge empties memory and queues a clear of the partition.
func (c *TieredCache[V]) Purge(ctx context.Context) {
	c.memory.Purge(ctx)
	if c.fallback.Load() || c.closed.Load() {
		return
	}
	c.enqueue(writeRequest{op: opClear})
}

// FallbackMode reports whether the cache runs memory-only.
func (c *TieredCache[V]) FallbackMode() bool {
	return c.fallback.Load()
}

// ResetFallback leaves fallback mode so the next access tries the store again.
// A store with a Reset method (storage.Adapter) is reset too.
func (c *TieredCache[V]) ResetFallback() {
	if resetter, ok := c.store.(interface{ Reset() }); ok {
		resetter.Reset()
	}
	if c.fallback.CompareAndSwap(true, false) {
		c.logger.Info("persistent tier re-enabled")
		c.metrics.SetFallback(c.name, false)
	}
}

// Len returns the number of entries in the memory tier.
func (c *TieredCache[V]) Len() int {
	return c.memory.Len()
}

// Stats returns memory tier statistics with lookups counted across both tiers.
func (c *TieredCache[V]) Stats() types.CacheStats {
	stats := c.memory.Stats()
	stats.Hits = c.hits.Load()
	stats.Misses = c.misses.Load()
	stats.HitRate = 0
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	stats.PersistentHits = c.persistentHits.Load()
	stats.PersistentErrors = c.persistentErrors.Load()
	stats.DroppedWrites = c.droppedWrites.Load()
	stats.FallbackMode = c.fallback.Load()
	return stats
}

// Close stops the periodic sync and drains queued writes. It is safe to call more than once.
func (c *TieredCache[V]) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.syncTask.Stop()
		c.writer.close()
		_ = c.memory.Close()
	})
	return nil
}

func (c *TieredCache[V]) expired(r storage.Record) bool {
	return c.now().Sub(r.Timestamp) > EffectiveTTL(c.config.Memory.MaxAge, r.Priority)
}

func (c *TieredCache[V]) classify(key string) string {
	if c.config.Classify == nil {
		return ""
	}
	return c.config.Classify(key)
}

func (c *TieredCache[V]) enqueue(req writeRequest) {
	if c.closed.Load() {
		return
	}
	if !c.writer.enqueue(req) {
		c.droppedWrites.Add(1)
		c.metrics.RecordDroppedWrite(c.name)
		c.logger.Debug("write-back queue full, dropping persistent write", "key", req.record.ID)
	}
}

// storeFailed enters fallback mode unless the failure came from the caller's
// context ending, which says nothing about the store.
func (c *TieredCache[V]) storeFailed(ctx context.Context, operation string, err error) {
	if ctx.Err() != nil {
		c.logger.Debug("persistent read abandoned", "operation", operation, "error", err)
		return
	}
	c.enterFallback(operation, err)
}

func (c *TieredCache[V]) enterFallback(operation string, err error) {
	c.persistentErrors.Add(1)
	if c.fallback.CompareAndSwap(false, true) {
		c.logger.Warn("persistent tier unavailable, continuing memory-only",
			"operation", operation,
			"error", err)
		c.metrics.SetFallback(c.name, true)
	}
}
