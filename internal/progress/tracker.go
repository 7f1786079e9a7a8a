// Package progress persists per-exercise progress, session statistics and
// user settings in the persistent store.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tutoapp/practicecache/internal/storage"
	"github.com/tutoapp/practicecache/pkg/errors"
	"github.com/tutoapp/practicecache/pkg/types"
)

// Store is the subset of *storage.Adapter used by the tracker.
type Store interface {
	Get(ctx context.Context, partition, id string) (storage.Record, bool, error)
	Put(ctx context.Context, partition string, record storage.Record) error
	GetByIndex(ctx context.Context, partition, index, value string) ([]storage.Record, error)
	DeleteOlderThan(ctx context.Context, partition string, cutoff time.Time) (int, error)
}

var _ Store = (*storage.Adapter)(nil)

// Progress is where the user stands in one exercise type.
type Progress struct {
	ExerciseType   types.ExerciseType `json:"exercise_type"`
	CompletionRate float64            `json:"completion_rate"`
	CurrentIndex   int                `json:"current_index"`
	LastAccess     time.Time          `json:"last_access"`
}

// Stats summarizes one finished exercise session.
type Stats struct {
	ID             string             `json:"id"`
	ExerciseType   types.ExerciseType `json:"exercise_type"`
	WordsPerMinute float64            `json:"words_per_minute"`
	Accuracy       float64            `json:"accuracy"`
	Errors         int                `json:"errors"`
	Duration       time.Duration      `json:"duration"`
	RecordedAt     time.Time          `json:"recorded_at"`
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// Tracker reads and writes progress records. Storage failures are returned
// to the caller so the UI can report them.
type Tracker struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker creates a tracker over store.
func NewTracker(store Store, opts ...Option) *Tracker {
	t := &Tracker{store: store, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("component", "progress")
	return t
}

// SaveProgress stores p as the current progress of its exercise type.
func (t *Tracker) SaveProgress(ctx context.Context, p Progress) error {
	if !p.ExerciseType.Valid() {
		return unsupported("save_progress", p.ExerciseType)
	}
	if p.LastAccess.IsZero() {
		p.LastAccess = t.now()
	}
	return t.put(ctx, storage.PartitionUserProgress, string(p.ExerciseType), string(p.ExerciseType), p.LastAccess, p)
}

// Progress returns the stored progress of kind.
func (t *Tracker) Progress(ctx context.Context, kind types.ExerciseType) (Progress, bool, error) {
	var p Progress
	found, err := t.get(ctx, storage.PartitionUserProgress, string(kind), &p)
	return p, found, err
}

// SaveStats appends a session summary and returns it with its ID and timestamp set.
func (t *Tracker) SaveStats(ctx context.Context, s Stats) (Stats, error) {
	if !s.ExerciseType.Valid() {
		return Stats{}, unsupported("save_stats", s.ExerciseType)
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.RecordedAt.IsZero() {
		s.RecordedAt = t.now()
	}
	if err := t.put(ctx, storage.PartitionExerciseStats, s.ID, string(s.ExerciseType), s.RecordedAt, s); err != nil {
		return Stats{}, err
	}
	return s, nil
}

// StatsByType returns every session summary of kind, oldest first.
func (t *Tracker) StatsByType(ctx context.Context, kind types.ExerciseType) ([]Stats, error) {
	records, err := t.store.GetByIndex(ctx, storage.PartitionExerciseStats, storage.IndexType, string(kind))
	if err != nil {
		return nil, err
	}

	stats := make([]Stats, 0, len(records))
	for _, r := range records {
		var s Stats
		if err := json.Unmarshal(r.Payload, &s); err != nil {
			t.logger.Warn("skipping undecodable stats record", "id", r.ID, "error", err)
			continue
		}
		stats = append(stats, s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].RecordedAt.Before(stats[j].RecordedAt) })
	return stats, nil
}

// SaveSetting stores value, encoded as JSON, under name.
func (t *Tracker) SaveSetting(ctx context.Context, name string, value any) error {
	if name == "" {
		return errors.NewError(errors.ErrCodeInvalidArgument, "setting name is empty").
			WithComponent("progress").
			WithOperation("save_setting")
	}
	return t.put(ctx, storage.PartitionSettings, name, "", t.now(), value)
}

// Setting decodes the setting stored under name into out.
func (t *Tracker) Setting(ctx context.Context, name string, out any) (bool, error) {
	return t.get(ctx, storage.PartitionSettings, name, out)
}

// ClearOlderThan deletes progress and stats last written more than maxAge ago
// and returns how many records were removed. Settings never expire.
func (t *Tracker) ClearOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := t.now().Add(-maxAge)

	total := 0
	for _, partition := range []string{
		storage.PartitionUserProgress,
		storage.PartitionExerciseStats,
	} {
		n, err := t.store.DeleteOlderThan(ctx, partition, cutoff)
		if err != nil {
			return total, err
		}
		total += n
	}

	if total > 0 {
		t.logger.Info("cleared old progress data", "records", total, "cutoff", cutoff)
	}
	return total, nil
}

func (t *Tracker) put(ctx context.Context, partition, id, kind string, ts time.Time, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return errors.NewError(errors.ErrCodeInvalidArgument, "value cannot be encoded").
			WithComponent("progress").
			WithDetail("id", id).
			WithCause(err)
	}
	return t.store.Put(ctx, partition, storage.Record{
		ID:        id,
		Type:      kind,
		Timestamp: ts,
		Payload:   payload,
	})
}

func (t *Tracker) get(ctx context.Context, partition, id string, out any) (bool, error) {
	record, found, err := t.store.Get(ctx, partition, id)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(record.Payload, out); err != nil {
		return false, errors.NewError(errors.ErrCodeStorageCorrupted, "stored value cannot be decoded").
			WithComponent("progress").
			WithDetail("partition", partition).
			WithDetail("id", id).
			WithCause(fmt.Errorf("decode: %w", err))
	}
	return true, nil
}

func unsupported(operation string, kind types.ExerciseType) *errors.PracticeError {
	return errors.NewError(errors.ErrCodeUnsupportedExerciseType,
		fmt.Sprintf("unsupported exercise type: %q", kind)).
		WithComponent("progress").
		WithOperation(operation)
}
