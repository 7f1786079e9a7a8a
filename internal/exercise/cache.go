package exercise

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tutoapp/practicecache/internal/metrics"
	"github.com/tutoapp/practicecache/pkg/errors"
	"github.com/tutoapp/practicecache/pkg/types"
)

// Config represents exercise cache configuration
type Config struct {
	// DefaultCount is the batch size used by PreloadInitialExercises.
	DefaultCount int `yaml:"default_count"`

	// IdleDelay postpones background preloads so they do not compete with the
	// request that scheduled them.
	IdleDelay time.Duration `yaml:"idle_delay"`

	// Priorities gives each exercise type its cache priority. Missing types use 0.
	Priorities map[types.ExerciseType]int `yaml:"priorities"`
}

// DefaultConfig returns batches of 20 items and a 200ms idle delay.
func DefaultConfig() Config {
	return Config{
		DefaultCount: 20,
		IdleDelay:    200 * time.Millisecond,
		Priorities: map[types.ExerciseType]int{
			types.ExerciseLetters: 0,
			types.ExerciseSymbols: 0,
			types.ExerciseWords:   1,
			types.ExercisePhrases: 2,
		},
	}
}

// Key derives the cache key of a (type, count) request.
func Key(kind types.ExerciseType, count int) string {
	return fmt.Sprintf("exercise-%s-%d", kind, count)
}

// WindowKey derives the cache key of the preloaded batch following currentIndex.
func WindowKey(kind types.ExerciseType, currentIndex, count int) string {
	return fmt.Sprintf("%s@%d", Key(kind, count), currentIndex+1)
}

// Classify recovers the exercise type from a cache key, for the persistent type index.
func Classify(key string) string {
	for _, kind := range types.ExerciseTypes() {
		if strings.HasPrefix(key, "exercise-"+string(kind)+"-") {
			return string(kind)
		}
	}
	return ""
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(c *Cache) { c.metrics = collector }
}

// Cache serves generated exercise content from a cache and preloads upcoming
// batches in the background.
type Cache struct {
	store    types.Cache[[]types.Item]
	registry *Registry
	config   Config
	logger   *slog.Logger
	metrics  *metrics.Collector

	group singleflight.Group

	// preloads scheduled but not finished, by window key
	mu      sync.Mutex
	pending map[string]struct{}
	stopped bool

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	cleanupOnce sync.Once

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates an exercise cache over store. The cache owns store and closes it on Cleanup.
func New(store types.Cache[[]types.Item], registry *Registry, config Config, opts ...Option) *Cache {
	def := DefaultConfig()
	if config.DefaultCount <= 0 {
		config.DefaultCount = def.DefaultCount
	}
	if config.IdleDelay < 0 {
		config.IdleDelay = 0
	}
	if config.Priorities == nil {
		config.Priorities = def.Priorities
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		store:    store,
		registry: registry,
		config:   config,
		logger:   slog.Default(),
		pending:  make(map[string]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "exercise")

	return c
}

// GetItems returns count items of the given type. A cached batch of exactly
// count items is returned as a copy; otherwise, or when forceRefresh is set,
// a new batch is generated and cached with the type's priority.
func (c *Cache) GetItems(ctx context.Context, kind types.ExerciseType, count int, forceRefresh bool) ([]types.Item, error) {
	return c.fetch(ctx, kind, count, Key(kind, count), forceRefresh)
}

// RefreshCache regenerates the batch for (kind, count).
func (c *Cache) RefreshCache(ctx context.Context, kind types.ExerciseType, count int) ([]types.Item, error) {
	return c.GetItems(ctx, kind, count, true)
}

// NextItems returns the batch following currentIndex, served from a preload
// when one has completed.
func (c *Cache) NextItems(ctx context.Context, kind types.ExerciseType, currentIndex, count int) ([]types.Item, error) {
	return c.fetch(ctx, kind, count, WindowKey(kind, currentIndex, count), false)
}

func (c *Cache) fetch(ctx context.Context, kind types.ExerciseType, count int, key string, forceRefresh bool) ([]types.Item, error) {
	if count <= 0 {
		return nil, errors.NewError(errors.ErrCodeInvalidArgument, "count must be positive").
			WithComponent("exercise").
			WithDetail("count", count)
	}
	if _, err := c.registry.Lookup(kind); err != nil {
		return nil, err
	}

	if !forceRefresh {
		if cached, ok := c.store.Get(ctx, key); ok && len(cached) == count {
			c.hits.Add(1)
			return types.CloneItems(cached), nil
		}
	}
	c.misses.Add(1)

	items, err := c.generate(ctx, kind, count, key)
	if err != nil {
		return nil, err
	}
	return types.CloneItems(items), nil
}

// generate runs the generator and caches a complete batch under key.
func (c *Cache) generate(ctx context.Context, kind types.ExerciseType, count int, key string) ([]types.Item, error) {
	g, err := c.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}

	items, err := g.Generate(count)
	if err == nil && len(items) < count {
		err = errors.NewError(errors.ErrCodeGenerationFailed,
			fmt.Sprintf("generator returned %d of %d items", len(items), count)).
			WithComponent("exercise").
			WithDetail("type", string(kind))
	}
	c.metrics.RecordGeneration(string(kind), err)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeGenerationFailed) {
			return nil, err
		}
		return nil, errors.NewError(errors.ErrCodeGenerationFailed, "generator failed").
			WithComponent("exercise").
			WithOperation("generate").
			WithDetail("type", string(kind)).
			WithCause(err)
	}

	if len(items) > count {
		items = items[:count]
	}
	c.store.Put(ctx, key, types.CloneItems(items), c.config.Priorities[kind])
	return items, nil
}

// PreloadNextExercises schedules generation of the batch following currentIndex
// after the idle delay. It returns immediately, never fails, and skips batches
// already cached or in flight.
func (c *Cache) PreloadNextExercises(kind types.ExerciseType, currentIndex, count int) {
	if count <= 0 {
		return
	}
	if _, err := c.registry.Lookup(kind); err != nil {
		c.logger.Debug("preload skipped", "type", kind, "error", err)
		return
	}

	key := WindowKey(kind, currentIndex, count)

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	if _, inFlight := c.pending[key]; inFlight {
		c.mu.Unlock()
		c.metrics.RecordPreload(string(kind), "deduplicated")
		return
	}
	c.pending[key] = struct{}{}
	c.wg.Add(1)
	c.mu.Unlock()

	go c.preload(kind, count, key)
}

func (c *Cache) preload(kind types.ExerciseType, count int, key string) {
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		delete(c.pending, key)
		c.mu.Unlock()
	}()

	if c.config.IdleDelay > 0 {
		timer := time.NewTimer(c.config.IdleDelay)
		select {
		case <-c.ctx.Done():
			timer.Stop()
			c.metrics.RecordPreload(string(kind), "canceled")
			return
		case <-timer.C:
		}
	}
	if c.ctx.Err() != nil {
		return
	}

	if cached, ok := c.store.Get(c.ctx, key); ok && len(cached) == count {
		c.metrics.RecordPreload(string(kind), "cached")
		return
	}

	_, err, shared := c.group.Do(key, func() (interface{}, error) {
		return c.generate(c.ctx, kind, count, key)
	})
	switch {
	case err != nil:
		c.logger.Debug("preload failed", "type", kind, "key", key, "error", err)
		c.metrics.RecordPreload(string(kind), "failed")
	case shared:
		c.metrics.RecordPreload(string(kind), "deduplicated")
	default:
		c.metrics.RecordPreload(string(kind), "loaded")
	}
}

// PreloadInitialExercises regenerates a default-size batch for each kind
// concurrently. Every kind is attempted; the first failure is returned.
func (c *Cache) PreloadInitialExercises(ctx context.Context, kinds []types.ExerciseType) error {
	var g errgroup.Group
	for _, kind := range kinds {
		g.Go(func() error {
			if _, err := c.GetItems(ctx, kind, c.config.DefaultCount, true); err != nil {
				c.logger.Warn("initial preload failed", "type", kind, "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// Cleanup cancels pending preloads, evicts expired entries and closes the
// underlying cache. It is safe to call more than once.
func (c *Cache) Cleanup(ctx context.Context) {
	c.cleanupOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		c.mu.Unlock()

		c.cancel()
		c.wg.Wait()

		c.store.EvictExpired(ctx)
		if err := c.store.Close(); err != nil {
			c.logger.Warn("failed to close exercise store", "error", err)
		}
	})
}

// Stats returns the underlying cache statistics with hits and misses counted
// per exercise request.
func (c *Cache) Stats() types.CacheStats {
	stats := c.store.Stats()
	stats.Hits = c.hits.Load()
	stats.Misses = c.misses.Load()
	stats.HitRate = 0
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// Kinds lists the exercise types this cache can serve.
func (c *Cache) Kinds() []types.ExerciseType {
	return c.registry.Kinds()
}
