package types

import (
	"context"
)

// Cache is the contract shared by the memory-only cache and the two-tier cache.
// Consumers depend on it so the backing strategy can be swapped by configuration.
type Cache[V any] interface {
	// Get returns the cached value and refreshes its recency. A miss returns the zero value and false.
	Get(ctx context.Context, key string) (V, bool)

	// Put stores value under key with the given priority. It never fails.
	Put(ctx context.Context, key string, value V, priority int)

	// EvictExpired removes entries older than their priority-weighted TTL. Best effort.
	EvictExpired(ctx context.Context)

	// Purge removes every entry and leaves the cache ready for reuse.
	Purge(ctx context.Context)

	// Len returns the number of entries held in memory.
	Len() int

	// Stats returns a snapshot of cache statistics.
	Stats() CacheStats

	// Close stops background work. It is safe to call more than once.
	Close() error
}

// Generator produces practice items for one exercise type. It is synchronous and
// may return fewer items than requested.
type Generator interface {
	Generate(count int) ([]Item, error)
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func(count int) ([]Item, error)

// Generate calls f(count).
func (f GeneratorFunc) Generate(count int) ([]Item, error) {
	return f(count)
}
