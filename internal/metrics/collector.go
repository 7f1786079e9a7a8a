package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tutoapp/practicecache/pkg/errors"
)

// Collector records cache, storage, generation and validation metrics on a private registry.
// A nil or disabled Collector accepts every call and records nothing.
type Collector struct {
	mu       sync.RWMutex
	config   *Config
	registry *prometheus.Registry
	logger   *slog.Logger

	cacheRequests     *prometheus.CounterVec
	cacheEvictions    *prometheus.CounterVec
	cacheSize         *prometheus.GaugeVec
	fallbackMode      *prometheus.GaugeVec
	droppedWrites     *prometheus.CounterVec
	storageOperations *prometheus.CounterVec
	storageDuration   *prometheus.HistogramVec
	generations       *prometheus.CounterVec
	preloads          *prometheus.CounterVec
	validations       *prometheus.CounterVec

	// Internal tracking for the debug endpoint
	operations map[string]*OperationMetrics
	lastReset  time.Time

	server *http.Server
}

// Config represents metrics configuration
type Config struct {
	Enabled   bool              `yaml:"enabled"`
	Port      int               `yaml:"port"`
	Path      string            `yaml:"path"`
	Labels    map[string]string `yaml:"labels"`
	Namespace string            `yaml:"namespace"`
	Subsystem string            `yaml:"subsystem"`
}

// OperationMetrics tracks storage calls of one operation type
type OperationMetrics struct {
	Count         int64         `json:"count"`
	TotalDuration time.Duration `json:"total_duration"`
	Errors        int64         `json:"errors"`
	LastOperation time.Time     `json:"last_operation"`
	AvgDuration   time.Duration `json:"avg_duration"`
}

// DefaultConfig returns the collector configuration used when none is given.
func DefaultConfig() *Config {
	return &Config{
		Enabled:   true,
		Port:      0,
		Path:      "/metrics",
		Namespace: "practicecache",
		Labels:    make(map[string]string),
	}
}

// NewCollector creates a new metrics collector
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if !config.Enabled {
		return &Collector{config: config}, nil
	}

	collector := &Collector{
		config:     config,
		registry:   prometheus.NewRegistry(),
		logger:     slog.Default().With("component", "metrics"),
		operations: make(map[string]*OperationMetrics),
		lastReset:  time.Now(),
	}

	collector.initMetrics()

	if err := collector.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return collector, nil
}

func (c *Collector) enabled() bool {
	return c != nil && c.config != nil && c.config.Enabled && c.registry != nil
}

// Registry returns the private registry, or nil when disabled.
func (c *Collector) Registry() *prometheus.Registry {
	if !c.enabled() {
		return nil
	}
	return c.registry
}

// Handler returns an http.Handler exposing the registry. Disabled collectors serve 404.
func (c *Collector) Handler() http.Handler {
	if !c.enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Start serves the metrics endpoint on the configured port. A zero port leaves serving to the host application.
func (c *Collector) Start(ctx context.Context) error {
	if !c.enabled() || c.config.Port == 0 {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, c.Handler())
	mux.HandleFunc("/debug/operations", c.debugOperationsHandler)

	c.mu.Lock()
	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	server := c.server
	c.mu.Unlock()

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("metrics server stopped", "error", err)
		}
	}()

	return nil
}

// Stop shuts the metrics endpoint down
func (c *Collector) Stop(ctx context.Context) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	server := c.server
	c.server = nil
	c.mu.Unlock()

	if server != nil {
		return server.Shutdown(ctx)
	}
	return nil
}

// RecordCacheRequest counts a lookup. Result is "hit", "miss" or "persistent_hit".
func (c *Collector) RecordCacheRequest(cache, result string) {
	if !c.enabled() {
		return
	}
	c.cacheRequests.With(prometheus.Labels{"cache": cache, "result": result}).Inc()
}

// RecordEviction counts removed entries. Reason is "capacity" or "expired".
func (c *Collector) RecordEviction(cache, reason string, n int) {
	if !c.enabled() || n <= 0 {
		return
	}
	c.cacheEvictions.With(prometheus.Labels{"cache": cache, "reason": reason}).Add(float64(n))
}

// UpdateCacheSize sets the number of entries held by a tier
func (c *Collector) UpdateCacheSize(cache string, size int) {
	if !c.enabled() {
		return
	}
	c.cacheSize.With(prometheus.Labels{"cache": cache}).Set(float64(size))
}

// SetFallback reports whether a two-tier cache runs memory-only
func (c *Collector) SetFallback(cache string, on bool) {
	if !c.enabled() {
		return
	}
	value := 0.0
	if on {
		value = 1
	}
	c.fallbackMode.With(prometheus.Labels{"cache": cache}).Set(value)
}

// RecordDroppedWrite counts persistent writes discarded because the write-back queue was full
func (c *Collector) RecordDroppedWrite(cache string) {
	if !c.enabled() {
		return
	}
	c.droppedWrites.With(prometheus.Labels{"cache": cache}).Inc()
}

// RecordStorageOperation records one backend call
func (c *Collector) RecordStorageOperation(operation string, duration time.Duration, err error) {
	if !c.enabled() {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	c.mu.Lock()
	metrics, exists := c.operations[operation]
	if !exists {
		metrics = &OperationMetrics{}
		c.operations[operation] = metrics
	}
	metrics.Count++
	metrics.TotalDuration += duration
	if err != nil {
		metrics.Errors++
	}
	metrics.LastOperation = time.Now()
	metrics.AvgDuration = time.Duration(int64(metrics.TotalDuration) / metrics.Count)
	c.mu.Unlock()

	c.storageOperations.With(prometheus.Labels{
		"operation": operation,
		"status":    status,
		"code":      classifyError(err),
	}).Inc()
	c.storageDuration.With(prometheus.Labels{"operation": operation}).Observe(duration.Seconds())
}

// RecordGeneration counts a generator invocation
func (c *Collector) RecordGeneration(exerciseType string, err error) {
	if !c.enabled() {
		return
	}
	c.generations.With(prometheus.Labels{"type": exerciseType, "code": classifyError(err)}).Inc()
}

// RecordPreload counts background preloads. Result is "loaded", "skipped" or "failed".
func (c *Collector) RecordPreload(exerciseType, result string) {
	if !c.enabled() {
		return
	}
	c.preloads.With(prometheus.Labels{"type": exerciseType, "result": result}).Inc()
}

// RecordValidation counts a validation. Outcome is "correct", "partial" or "incorrect".
func (c *Collector) RecordValidation(outcome string, cached bool) {
	if !c.enabled() {
		return
	}
	source := "computed"
	if cached {
		source = "cache"
	}
	c.validations.With(prometheus.Labels{"outcome": outcome, "source": source}).Inc()
}

// GetOperations returns a copy of the per-operation storage tracking
func (c *Collector) GetOperations() map[string]OperationMetrics {
	out := make(map[string]OperationMetrics)
	if !c.enabled() {
		return out
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.operations {
		out[k] = *v
	}
	return out
}

// ResetOperations clears the per-operation tracking. Prometheus series are untouched.
func (c *Collector) ResetOperations() {
	if !c.enabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.operations = make(map[string]*OperationMetrics)
	c.lastReset = time.Now()
}

// Helper methods

func (c *Collector) initMetrics() {
	ns, sub, labels := c.config.Namespace, c.config.Subsystem, prometheus.Labels(c.config.Labels)

	c.cacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: sub, ConstLabels: labels,
		Name: "cache_requests_total",
		Help: "Total number of cache lookups by result",
	}, []string{"cache", "result"})

	c.cacheEvictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: sub, ConstLabels: labels,
		Name: "cache_evictions_total",
		Help: "Total number of evicted cache entries by reason",
	}, []string{"cache", "reason"})

	c.cacheSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ns, Subsystem: sub, ConstLabels: labels,
		Name: "cache_entries",
		Help: "Current number of entries in the memory tier",
	}, []string{"cache"})

	c.fallbackMode = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ns, Subsystem: sub, ConstLabels: labels,
		Name: "cache_fallback_mode",
		Help: "1 when the cache serves from memory only",
	}, []string{"cache"})

	c.droppedWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: sub, ConstLabels: labels,
		Name: "cache_dropped_writes_total",
		Help: "Persistent writes dropped because the write-back queue was full",
	}, []string{"cache"})

	c.storageOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: sub, ConstLabels: labels,
		Name: "storage_operations_total",
		Help: "Total number of persistent storage operations",
	}, []string{"operation", "status", "code"})

	c.storageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: sub, ConstLabels: labels,
		Name:    "storage_operation_duration_seconds",
		Help:    "Duration of persistent storage operations in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"operation"})

	c.generations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: sub, ConstLabels: labels,
		Name: "exercise_generations_total",
		Help: "Total number of generator invocations",
	}, []string{"type", "code"})

	c.preloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: sub, ConstLabels: labels,
		Name: "exercise_preloads_total",
		Help: "Total number of background preloads by result",
	}, []string{"type", "result"})

	c.validations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: sub, ConstLabels: labels,
		Name: "validations_total",
		Help: "Total number of input validations",
	}, []string{"outcome", "source"})
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c.cacheRequests,
		c.cacheEvictions,
		c.cacheSize,
		c.fallbackMode,
		c.droppedWrites,
		c.storageOperations,
		c.storageDuration,
		c.generations,
		c.preloads,
		c.validations,
	}

	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}

func (c *Collector) debugOperationsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(c.GetOperations()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// classifyError maps an error to a low-cardinality label
func classifyError(err error) string {
	if err == nil {
		return "none"
	}
	if code := errors.CodeOf(err); code != "" {
		return string(code)
	}
	return "other"
}
