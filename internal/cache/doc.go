/*
Package cache provides the bounded memory cache and the two-tier (memory + persistent) cache.

Both implement types.Cache[V], so consumers such as the exercise cache and the validator
do not know whether results survive a restart.

# Memory tier

MemoryCache keeps at most MaxEntries entries. When a Put pushes it over capacity, entries
are ranked by priority descending, then by recency descending, and everything past
MaxEntries is evicted:

	maxEntries=3
	put A(p=5) B(p=0) C(p=0) D(p=0)  →  {A, C, D}
	put A(p=0) B(p=0) C(p=0) D(p=0)  →  {B, C, D}

Recency is a per-cache sequence number bumped on every Put and every hit, so two touches
inside the same clock tick still order deterministically.

Expiry is priority-weighted. An entry is removed by EvictOlderThan(maxAge) iff

	now - lastAccess > maxAge * (1 + priority*0.5)

A periodic sweep runs EvictExpired every CleanupInterval. Clear and Close stop it; Purge
empties the cache and leaves it running.

# Two-tier cache

	Get ──► memory ──hit──► value
	          │miss
	          ▼
	   fallback? ──yes──► miss
	          │no
	          ▼
	        store ──error──► fallback = true, miss
	          │found, live
	          ▼
	   promote into memory, queue timestamp refresh

Put writes memory synchronously and queues the persistent write on a bounded queue drained
by one worker, so writes apply in order and the last one wins. A full queue drops the
persistent write. Any persistent failure during Get, Put or Warm sets fallback mode; the
cache then serves memory only and never retries the store on its own. ResetFallback is the
only way back.

EvictExpired, run every SyncInterval, sweeps memory and deletes records older than MaxAge
from the partition. Sweep failures are logged and counted but do not change the mode.

# Periodic tasks

Task is the cancellable ticker used by both caches. Stop waits for a running tick to
finish; no tick starts after Stop returns.
*/
package cache
