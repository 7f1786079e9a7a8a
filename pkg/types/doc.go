/*
Package types provides the shared data structures and interfaces of the practice cache.

The package sits at the bottom of the dependency graph. Every other package may import it;
it imports nothing from this module.

# Architecture Overview

	┌─────────────────────────────────────────────┐
	│              UI layer (host app)            │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│          Composition root (pkg/practice)    │
	└─────────────────────────────────────────────┘
	          │             │              │
	┌─────────┴────┐ ┌──────┴─────┐ ┌──────┴─────┐
	│  Exercise    │ │ Validation │ │  Progress  │
	│  cache       │ │ cache      │ │  tracker   │
	└──────────────┘ └────────────┘ └────────────┘
	          │             │              │
	┌─────────┴─────────────┴──┐           │
	│  Cache[V] (memory or     │           │
	│  memory + persistent)    │           │
	└──────────────────────────┘           │
	               │                       │
	┌──────────────┴───────────────────────┴─────┐
	│      Persistent store adapter + backend     │
	└─────────────────────────────────────────────┘

# Core Interfaces

Cache[V] is implemented by the bounded memory cache and by the two-tier cache. Consumers
depend on the interface so configuration decides whether results survive a restart.

Generator produces practice items for one exercise type. Implementations are synchronous
and may return fewer items than requested; callers decide whether a short result is an error.

# Data Types

Item and KeyStroke describe practice content. ValidationResult is the outcome of comparing
input with expected text. CacheStats is the statistics snapshot returned by every cache.
*/
package types
