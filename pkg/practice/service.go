package practice

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/tutoapp/practicecache/internal/cache"
	"github.com/tutoapp/practicecache/internal/config"
	"github.com/tutoapp/practicecache/internal/exercise"
	"github.com/tutoapp/practicecache/internal/generator"
	"github.com/tutoapp/practicecache/internal/metrics"
	"github.com/tutoapp/practicecache/internal/progress"
	"github.com/tutoapp/practicecache/internal/storage"
	"github.com/tutoapp/practicecache/internal/storage/s3"
	"github.com/tutoapp/practicecache/internal/validation"
	"github.com/tutoapp/practicecache/pkg/errors"
	"github.com/tutoapp/practicecache/pkg/health"
	"github.com/tutoapp/practicecache/pkg/retry"
	"github.com/tutoapp/practicecache/pkg/types"
)

// Health component names.
const (
	ComponentStorage    = "storage"
	ComponentExercise   = "exercise"
	ComponentValidation = "validation"
)

// tier is the part of a two-tier cache the service drives directly.
type tier interface {
	Warm(ctx context.Context) int
	Sync(ctx context.Context) error
	FallbackMode() bool
	ResetFallback()
}

// Option configures a Service
type Option func(*options)

type options struct {
	logger       *slog.Logger
	backend      storage.Backend
	s3Client     s3.API
	generatorOps []generator.Option
}

// WithLogger replaces the logger built from the global settings.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithBackend uses backend instead of the one named by storage.backend.
func WithBackend(backend storage.Backend) Option {
	return func(o *options) { o.backend = backend }
}

// WithS3Client hands the S3 backend a ready client instead of the AWS configuration chain.
func WithS3Client(client s3.API) Option {
	return func(o *options) { o.s3Client = client }
}

// WithGeneratorOptions passes options to the built-in content generators.
func WithGeneratorOptions(opts ...generator.Option) Option {
	return func(o *options) { o.generatorOps = append(o.generatorOps, opts...) }
}

// Service wires the caches, the validator and the progress tracker to one
// shared storage connection.
type Service struct {
	config  *config.Configuration
	logger  *slog.Logger
	metrics *metrics.Collector
	health  *health.Tracker

	// adapter backs the caches; nil when storage.backend is "none".
	adapter *storage.Adapter
	// store backs progress; the adapter, or a volatile one without persistence.
	store *storage.Adapter
	tiers map[string]tier

	exercises *exercise.Cache
	validator *validation.Validator
	progress  *progress.Tracker

	mu           sync.Mutex
	started      bool
	closed       bool
	cancelHealth context.CancelFunc
	healthDone   chan struct{}
}

// New builds a Service from cfg. A nil cfg uses the defaults. Nothing is
// connected until the first storage access or Start.
func New(cfg *config.Configuration, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = NewLogger(cfg.Global, os.Stderr)
	}

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   cfg.Monitoring.Metrics.Enabled,
		Port:      cfg.Monitoring.Metrics.Port,
		Path:      cfg.Monitoring.Metrics.Path,
		Namespace: cfg.Monitoring.Metrics.Namespace,
		Labels:    cfg.Monitoring.Metrics.CustomLabels,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics collector: %w", err)
	}

	s := &Service{
		config:  cfg,
		logger:  logger.With("component", "practice"),
		metrics: collector,
		health: health.NewTracker(health.Config{
			ErrorThreshold:       cfg.Monitoring.Health.ErrorThreshold,
			UnavailableThreshold: cfg.Monitoring.Health.UnavailableThreshold,
			CheckInterval:        cfg.Monitoring.Health.CheckInterval,
		}),
		tiers: make(map[string]tier),
	}

	backend := o.backend
	if backend == nil {
		backend, err = newBackend(cfg, o.s3Client, logger)
		if err != nil {
			return nil, err
		}
	}
	if backend != nil {
		s.adapter = storage.NewAdapter(backend, adapterOptions(cfg, logger, collector)...)
		s.store = s.adapter
	} else {
		s.store = storage.NewAdapter(storage.NewMemoryBackend(), adapterOptions(cfg, logger, collector)...)
	}

	registry, err := exercise.DefaultRegistry(generator.Difficulty(cfg.Exercise.Difficulty), o.generatorOps...)
	if err != nil {
		return nil, err
	}

	exerciseStore := newStore[[]types.Item](s, ComponentExercise, storage.PartitionExerciseCache,
		cfg.Exercise.MaxEntries, exercise.Classify, logger)
	s.exercises = exercise.New(exerciseStore, registry, exercise.Config{
		DefaultCount: cfg.Exercise.DefaultCount,
		IdleDelay:    cfg.Exercise.IdleDelay,
		Priorities:   priorities(cfg.Exercise.Priorities, s.logger),
	}, exercise.WithLogger(logger), exercise.WithMetrics(collector))

	validationStore := newStore[types.ValidationResult](s, ComponentValidation, storage.PartitionValidationCache,
		cfg.Validation.MaxEntries, nil, logger)
	s.validator = validation.New(validationStore, validation.Config{
		MaxMessageLength: cfg.Validation.MaxMessageLength,
		BatchSize:        cfg.Validation.BatchSize,
		PreloadDepth:     cfg.Validation.PreloadDepth,
	}, validation.WithLogger(logger), validation.WithMetrics(collector))

	s.progress = progress.NewTracker(s.store, progress.WithLogger(logger))

	for _, component := range []string{ComponentStorage, ComponentExercise, ComponentValidation} {
		s.health.RegisterComponent(component)
	}
	s.health.OnStateChange(health.StateDegraded, func(component string, _, _ health.State, err error) {
		s.logger.Warn("component degraded", "name", component, "error", err)
	})

	return s, nil
}

// newStore returns a two-tier cache over the adapter, or a memory cache when
// persistence is disabled.
func newStore[V any](s *Service, name, partition string, maxEntries int, classify func(string) string, logger *slog.Logger) types.Cache[V] {
	memory := cache.Config{
		MaxEntries:      maxEntries,
		MaxAge:          s.config.Cache.MaxAge,
		CleanupInterval: s.config.Cache.CleanupInterval,
	}
	opts := []cache.Option{
		cache.WithName(name),
		cache.WithLogger(logger),
		cache.WithMetrics(s.metrics),
	}

	if s.adapter == nil {
		return cache.NewMemoryCache[V](memory, opts...)
	}

	tiered := cache.NewTieredCache[V](s.adapter, cache.TieredConfig{
		Memory:       memory,
		Partition:    partition,
		SyncInterval: s.config.Cache.SyncInterval,
		QueueSize:    s.config.Cache.QueueSize,
		Classify:     classify,
	}, opts...)
	s.tiers[name] = tiered
	return tiered
}

func newBackend(cfg *config.Configuration, client s3.API, logger *slog.Logger) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendMemory:
		return storage.NewMemoryBackend(), nil
	case config.BackendFile:
		return storage.NewFileBackend(storage.FileConfig{
			Directory:   cfg.Storage.File.Directory,
			Compression: cfg.Storage.File.Compression,
		})
	case config.BackendS3:
		s3cfg := s3.NewDefaultConfig()
		s3cfg.Bucket = cfg.Storage.S3.Bucket
		s3cfg.Endpoint = cfg.Storage.S3.Endpoint
		s3cfg.AccessKeyID = cfg.Storage.S3.AccessKeyID
		s3cfg.SecretAccessKey = cfg.Storage.S3.SecretAccessKey
		s3cfg.ForcePathStyle = cfg.Storage.S3.ForcePathStyle
		if cfg.Storage.S3.Prefix != "" {
			s3cfg.Prefix = cfg.Storage.S3.Prefix
		}
		if cfg.Storage.S3.Region != "" {
			s3cfg.Region = cfg.Storage.S3.Region
		}
		if cfg.Storage.S3.RequestTimeout > 0 {
			s3cfg.RequestTimeout = cfg.Storage.S3.RequestTimeout
		}

		opts := []s3.Option{s3.WithLogger(logger)}
		if client != nil {
			opts = append(opts, s3.WithClient(client))
		}
		return s3.NewBackend(s3cfg, opts...)
	}
	return nil, errors.NewError(errors.ErrCodeInvalidConfig, "unknown storage backend").
		WithComponent("practice").
		WithDetail("backend", cfg.Storage.Backend)
}

func adapterOptions(cfg *config.Configuration, logger *slog.Logger, collector *metrics.Collector) []storage.Option {
	schema := storage.DefaultSchema()
	schema.Version = cfg.Storage.SchemaVersion

	policy := retry.DefaultConfig()
	if cfg.Storage.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.Storage.Retry.MaxAttempts
	}
	if cfg.Storage.Retry.BaseDelay > 0 {
		policy.InitialDelay = cfg.Storage.Retry.BaseDelay
	}
	if cfg.Storage.Retry.MaxDelay > 0 {
		policy.MaxDelay = cfg.Storage.Retry.MaxDelay
	}

	return []storage.Option{
		storage.WithSchema(schema),
		storage.WithRetry(policy),
		storage.WithConnectTimeout(cfg.Storage.ConnectTimeout),
		storage.WithLogger(logger),
		storage.WithMetrics(collector),
	}
}

func priorities(configured map[string]int, logger *slog.Logger) map[types.ExerciseType]int {
	out := exercise.DefaultConfig().Priorities
	for name, priority := range configured {
		kind := types.ExerciseType(name)
		if !kind.Valid() {
			logger.Warn("ignoring priority of unknown exercise type", "type", name)
			continue
		}
		out[kind] = priority
	}
	return out
}

// Start serves metrics, warms the memory tiers from storage when configured,
// preloads a default batch of every exercise type and starts health checks.
// Preload failures are logged; the affected types are generated on demand.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.NewError(errors.ErrCodeComponentStopped, "service is closed").
			WithComponent("practice").WithOperation("start")
	}
	if s.started {
		return nil
	}

	if err := s.metrics.Start(ctx); err != nil {
		return fmt.Errorf("failed to start metrics: %w", err)
	}

	if s.config.Cache.WarmOnStart {
		for name, t := range s.tiers {
			loaded := t.Warm(ctx)
			s.logger.Debug("memory tier warmed", "cache", name, "loaded", loaded)
		}
	}

	if err := s.exercises.PreloadInitialExercises(ctx, s.exercises.Kinds()); err != nil {
		s.logger.Warn("initial preload incomplete", "error", err)
	}

	s.health.Check(ctx, s.check)

	healthCtx, cancel := context.WithCancel(context.Background())
	s.cancelHealth = cancel
	s.healthDone = make(chan struct{})
	go func() {
		defer close(s.healthDone)
		s.health.Run(healthCtx, s.check)
	}()

	s.started = true
	s.logger.Info("practice service started",
		"backend", s.config.Storage.Backend,
		"health", s.health.Overall().String())
	return nil
}

// Close stops background work, flushes queued writes and closes storage.
// It is safe to call more than once.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel, done := s.cancelHealth, s.healthDone
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	s.exercises.Cleanup(ctx)

	var firstErr error
	if err := s.validator.Close(); err != nil {
		firstErr = err
	}
	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.metrics.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	s.logger.Info("practice service closed")
	return firstErr
}

// Exercises returns the exercise content cache.
func (s *Service) Exercises() *exercise.Cache { return s.exercises }

// Validator returns the input validator.
func (s *Service) Validator() *validation.Validator { return s.validator }

// Progress returns the progress tracker. Without a storage backend progress
// is kept in memory for the life of the service.
func (s *Service) Progress() *progress.Tracker { return s.progress }

// Metrics returns the metrics collector, whose Handler the host may mount.
func (s *Service) Metrics() *metrics.Collector { return s.metrics }

// Health returns the component health tracker.
func (s *Service) Health() *health.Tracker { return s.health }

// Storage returns the storage adapter shared by the caches, or nil when
// persistence is disabled.
func (s *Service) Storage() *storage.Adapter { return s.adapter }

// CheckHealth probes every component once and returns the overall state.
func (s *Service) CheckHealth(ctx context.Context) health.State {
	s.health.Check(ctx, s.check)
	return s.health.Overall()
}

// Stats returns the statistics of the exercise and validation caches.
func (s *Service) Stats() map[string]types.CacheStats {
	return map[string]types.CacheStats{
		ComponentExercise:   s.exercises.Stats(),
		ComponentValidation: s.validator.Stats(),
	}
}

// ResetFallback lets every two-tier cache try storage again.
func (s *Service) ResetFallback() {
	for _, t := range s.tiers {
		t.ResetFallback()
	}
}

// Sync waits until writes queued by every two-tier cache have reached storage.
func (s *Service) Sync(ctx context.Context) error {
	for name, t := range s.tiers {
		if err := t.Sync(ctx); err != nil {
			return fmt.Errorf("failed to sync %s cache: %w", name, err)
		}
	}
	return nil
}

func (s *Service) check(ctx context.Context, component string) error {
	switch component {
	case ComponentStorage:
		if s.adapter != nil && s.adapter.State() == storage.StateFailed {
			// returns the recorded failure without reconnecting
			return s.adapter.Connect(ctx)
		}
	case ComponentExercise, ComponentValidation:
		if t, ok := s.tiers[component]; ok && t.FallbackMode() {
			return errors.NewError(errors.ErrCodeStorageUnavailable, "serving from memory only").
				WithComponent(component)
		}
	}
	return nil
}
