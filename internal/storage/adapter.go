package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tutoapp/practicecache/internal/metrics"
	"github.com/tutoapp/practicecache/pkg/errors"
	"github.com/tutoapp/practicecache/pkg/retry"
)

// State is the connection state of an Adapter.
type State int32

const (
	StateUninitialized State = iota
	StateConnecting
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Adapter owns the single connection to a Backend and exposes partitioned
// record operations. Every backend failure is returned as STORAGE_UNAVAILABLE.
//
// The first operation connects lazily. A failed connection is terminal: later
// calls return the recorded error without touching the backend until Reset.
// An attempt abandoned because the caller's context ended is not a failure and
// leaves the adapter uninitialized.
type Adapter struct {
	backend        Backend
	schema         Schema
	retryer        *retry.Retryer
	connectTimeout time.Duration
	logger         *slog.Logger
	metrics        *metrics.Collector

	group singleflight.Group

	mu      sync.RWMutex
	state   State
	failure error
}

// Option configures an Adapter
type Option func(*Adapter)

// WithSchema sets the schema migrated to on connect.
func WithSchema(schema Schema) Option {
	return func(a *Adapter) { a.schema = schema }
}

// WithRetry sets the retry policy for opening the backend.
func WithRetry(config retry.Config) Option {
	return func(a *Adapter) { a.retryer = retry.New(config) }
}

// WithConnectTimeout bounds one connection attempt, retries included.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(a *Adapter) { a.connectTimeout = timeout }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) { a.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(a *Adapter) { a.metrics = collector }
}

// NewAdapter wraps backend. Nothing is opened until the first operation or Connect.
func NewAdapter(backend Backend, opts ...Option) *Adapter {
	a := &Adapter{
		backend: backend,
		schema:  DefaultSchema(),
		retryer: retry.New(retry.DefaultConfig()),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With("component", "storage")
	return a
}

// State returns the current connection state.
func (a *Adapter) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Connect opens the backend and migrates the schema. It is idempotent and
// concurrent callers share one in-flight attempt.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.RLock()
	state, failure := a.state, a.failure
	a.mu.RUnlock()

	switch state {
	case StateReady:
		return nil
	case StateFailed:
		return failure
	}

	_, err, _ := a.group.Do("connect", func() (interface{}, error) {
		return nil, a.connect(ctx)
	})
	return err
}

func (a *Adapter) connect(ctx context.Context) error {
	a.mu.Lock()
	switch a.state {
	case StateReady:
		a.mu.Unlock()
		return nil
	case StateFailed:
		failure := a.failure
		a.mu.Unlock()
		return failure
	}
	a.state = StateConnecting
	a.mu.Unlock()

	caller := ctx
	if a.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.connectTimeout)
		defer cancel()
	}

	start := time.Now()
	err := a.retryer.Do(ctx, func(ctx context.Context) error {
		return a.backend.Open(ctx)
	})
	if err == nil {
		err = a.migrate(ctx)
		if err != nil {
			_ = a.backend.Close()
		}
	}
	a.metrics.RecordStorageOperation("connect", time.Since(start), err)

	a.mu.Lock()
	defer a.mu.Unlock()

	if err != nil && caller.Err() != nil {
		a.state = StateUninitialized
		a.logger.Debug("connect abandoned by caller", "error", caller.Err())
		return fmt.Errorf("storage connect abandoned: %w", caller.Err())
	}
	if err != nil {
		a.state = StateFailed
		a.failure = errors.StorageUnavailable("connect", err)
		a.logger.Warn("persistent storage unavailable", "error", err)
		return a.failure
	}

	a.state = StateReady
	a.failure = nil
	a.logger.Debug("persistent storage connected", "schema_version", a.schema.Version)
	return nil
}

// migrate creates missing partitions and indexes when the requested schema is newer.
func (a *Adapter) migrate(ctx context.Context) error {
	stored, err := a.backend.Schema(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}

	switch {
	case stored.Version > a.schema.Version:
		return errors.NewError(errors.ErrCodeStorageBlocked, "stored schema is newer than requested").
			WithComponent("storage").
			WithDetail("stored_version", stored.Version).
			WithDetail("requested_version", a.schema.Version)
	case stored.Version == a.schema.Version:
		return nil
	}

	if err := a.backend.Migrate(ctx, a.schema); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	a.logger.Info("schema migrated", "from", stored.Version, "to", a.schema.Version)
	return nil
}

// Reset clears a failed connection so the next operation tries again.
func (a *Adapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateFailed {
		a.state = StateUninitialized
		a.failure = nil
	}
}

// Close closes the backend. A later operation reconnects.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateReady {
		return nil
	}
	a.state = StateUninitialized
	if err := a.backend.Close(); err != nil {
		return errors.StorageUnavailable("close", err)
	}
	return nil
}

// do connects if needed and runs fn, recording metrics and wrapping failures.
func (a *Adapter) do(ctx context.Context, operation string, fn func() error) error {
	if err := a.Connect(ctx); err != nil {
		return err
	}

	start := time.Now()
	err := fn()
	a.metrics.RecordStorageOperation(operation, time.Since(start), err)
	if err != nil {
		return errors.StorageUnavailable(operation, err)
	}
	return nil
}

// Get returns the record with id, or false when absent.
func (a *Adapter) Get(ctx context.Context, partition, id string) (Record, bool, error) {
	var (
		record Record
		found  bool
	)
	err := a.do(ctx, "get", func() error {
		var err error
		record, found, err = a.backend.Get(ctx, partition, id)
		return err
	})
	return record, found, err
}

// Put inserts or replaces record.
func (a *Adapter) Put(ctx context.Context, partition string, record Record) error {
	if record.ID == "" {
		return errors.NewError(errors.ErrCodeInvalidArgument, "record id cannot be empty").
			WithComponent("storage").
			WithOperation("put")
	}
	return a.do(ctx, "put", func() error {
		return a.backend.Put(ctx, partition, record)
	})
}

// Delete removes the record with id. Deleting an absent record succeeds.
func (a *Adapter) Delete(ctx context.Context, partition, id string) error {
	return a.do(ctx, "delete", func() error {
		return a.backend.Delete(ctx, partition, id)
	})
}

// GetAll returns every record of a partition ordered by ID.
func (a *Adapter) GetAll(ctx context.Context, partition string) ([]Record, error) {
	var records []Record
	err := a.do(ctx, "get_all", func() error {
		var err error
		records, err = a.backend.GetAll(ctx, partition)
		return err
	})
	return records, err
}

// GetByIndex returns the records whose index key equals value.
func (a *Adapter) GetByIndex(ctx context.Context, partition, index, value string) ([]Record, error) {
	var records []Record
	err := a.do(ctx, "get_by_index", func() error {
		var err error
		records, err = a.backend.GetByIndex(ctx, partition, index, value)
		return err
	})
	return records, err
}

// DeleteOlderThan removes records whose timestamp is before cutoff and returns how many.
func (a *Adapter) DeleteOlderThan(ctx context.Context, partition string, cutoff time.Time) (int, error) {
	var removed int
	err := a.do(ctx, "delete_range", func() error {
		var err error
		removed, err = a.backend.DeleteRange(ctx, partition, IndexTimestamp, UpperBound(TimestampKey(cutoff), true))
		return err
	})
	return removed, err
}

// Clear removes every record of a partition.
func (a *Adapter) Clear(ctx context.Context, partition string) error {
	return a.do(ctx, "clear", func() error {
		return a.backend.Clear(ctx, partition)
	})
}

// ClearAll removes every record of every partition.
func (a *Adapter) ClearAll(ctx context.Context) error {
	for _, p := range a.schema.Partitions {
		if err := a.Clear(ctx, p.Name); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of records per partition.
func (a *Adapter) Count(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(a.schema.Partitions))
	for _, p := range a.schema.Partitions {
		records, err := a.GetAll(ctx, p.Name)
		if err != nil {
			return nil, err
		}
		counts[p.Name] = len(records)
	}
	return counts, nil
}
