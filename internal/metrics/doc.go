/*
Package metrics provides Prometheus metrics for the practice cache.

# Overview

Collector owns a private prometheus.Registry so several caches can live in one process
without colliding on the default registry. Every recording method is safe on a nil or
disabled Collector, which lets components take an optional *Collector without nil checks.

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   true,
		Path:      "/metrics",
		Namespace: "practicecache",
	})
	if err != nil {
		return err
	}
	mux.Handle("/metrics", collector.Handler())

# Series

	cache_requests_total{cache,result}            lookups: hit, miss, persistent_hit
	cache_evictions_total{cache,reason}           capacity or expired
	cache_entries{cache}                          memory tier size
	cache_fallback_mode{cache}                    1 when memory-only
	cache_dropped_writes_total{cache}             write-back queue overflow
	storage_operations_total{operation,status,code}
	storage_operation_duration_seconds{operation}
	exercise_generations_total{type,code}
	exercise_preloads_total{type,result}
	validations_total{outcome,source}

When Config.Port is non-zero, Start serves the registry and a /debug/operations JSON
summary on that port. Otherwise the host application mounts Handler itself.
*/
package metrics
