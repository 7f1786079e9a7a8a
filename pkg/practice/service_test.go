package practice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutoapp/practicecache/internal/config"
	"github.com/tutoapp/practicecache/internal/generator"
	"github.com/tutoapp/practicecache/internal/progress"
	"github.com/tutoapp/practicecache/internal/storage"
	"github.com/tutoapp/practicecache/internal/storage/s3"
	"github.com/tutoapp/practicecache/internal/storage/storagetest"
	"github.com/tutoapp/practicecache/internal/validation"
	"github.com/tutoapp/practicecache/pkg/errors"
	"github.com/tutoapp/practicecache/pkg/health"
	"github.com/tutoapp/practicecache/pkg/types"
)

func testConfig(backend string) *config.Configuration {
	cfg := config.NewDefault()
	cfg.Storage.Backend = backend
	cfg.Cache.SyncInterval = 0
	cfg.Cache.CleanupInterval = 0
	cfg.Exercise.IdleDelay = 0
	cfg.Monitoring.Health.CheckInterval = 0
	return cfg
}

func newTestService(t *testing.T, cfg *config.Configuration, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithGeneratorOptions(generator.WithSeed(7)),
	}, opts...)
	svc, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return svc
}

func texts(items []types.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Text
	}
	return out
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Storage.Backend = "indexeddb"

	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigValidation))
}

func TestService_MemoryOnly(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, testConfig(config.BackendNone))
	require.NoError(t, svc.Start(ctx))

	assert.Nil(t, svc.Storage())

	items, err := svc.Exercises().GetItems(ctx, types.ExerciseWords, 5, false)
	require.NoError(t, err)
	require.Len(t, items, 5)

	again, err := svc.Exercises().GetItems(ctx, types.ExerciseWords, 5, false)
	require.NoError(t, err)
	assert.Equal(t, texts(items), texts(again))

	result := svc.Validator().Validate(ctx, items[0].Text, items[0].Text, validation.DefaultOptions())
	assert.True(t, result.IsCorrect)

	require.NoError(t, svc.Progress().SaveProgress(ctx, progress.Progress{
		ExerciseType:   types.ExerciseWords,
		CompletionRate: 0.5,
		CurrentIndex:   10,
	}))
	p, found, err := svc.Progress().Progress(ctx, types.ExerciseWords)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 10, p.CurrentIndex)

	assert.Equal(t, health.StateHealthy, svc.CheckHealth(ctx))
	assert.NoError(t, svc.Sync(ctx), "no two-tier caches to sync")

	stats := svc.Stats()
	assert.Equal(t, uint64(1), stats[ComponentExercise].Hits)
	assert.False(t, stats[ComponentExercise].FallbackMode)
}

func TestService_PersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(config.BackendFile)
	cfg.Storage.File.Directory = t.TempDir()
	cfg.Storage.File.Compression = true

	first, err := New(cfg,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithGeneratorOptions(generator.WithSeed(1)))
	require.NoError(t, err)
	require.NoError(t, first.Start(ctx))

	items, err := first.Exercises().GetItems(ctx, types.ExerciseWords, 5, false)
	require.NoError(t, err)
	require.NoError(t, first.Progress().SaveProgress(ctx, progress.Progress{
		ExerciseType: types.ExercisePhrases,
		CurrentIndex: 3,
	}))
	require.NoError(t, first.Sync(ctx))
	require.NoError(t, first.Close(ctx))

	second := newTestService(t, cfg)
	require.NoError(t, second.Start(ctx))

	again, err := second.Exercises().GetItems(ctx, types.ExerciseWords, 5, false)
	require.NoError(t, err)
	assert.Equal(t, texts(items), texts(again), "batch served from the warmed memory tier")

	p, found, err := second.Progress().Progress(ctx, types.ExercisePhrases)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 3, p.CurrentIndex)
	assert.Equal(t, storage.StateReady, second.Storage().State())
}

func TestService_StorageFailureDegrades(t *testing.T) {
	ctx := context.Background()
	backend := storagetest.New()
	backend.FailOpen(fmt.Errorf("quota exceeded"))

	svc := newTestService(t, testConfig(config.BackendMemory), WithBackend(backend))

	items, err := svc.Exercises().GetItems(ctx, types.ExerciseLetters, 4, false)
	require.NoError(t, err, "storage failures never reach content requests")
	assert.Len(t, items, 4)

	assert.True(t, svc.Stats()[ComponentExercise].FallbackMode)
	assert.Equal(t, storage.StateFailed, svc.Storage().State())

	assert.Equal(t, health.StateDegraded, svc.CheckHealth(ctx))
	assert.Equal(t, health.StateDegraded, svc.Health().State(ComponentStorage))
	assert.Equal(t, health.StateDegraded, svc.Health().State(ComponentExercise))
	assert.Equal(t, health.StateHealthy, svc.Health().State(ComponentValidation))

	backend.FailOpen(nil)
	svc.ResetFallback()

	assert.Equal(t, health.StateHealthy, svc.CheckHealth(ctx))
	assert.False(t, svc.Stats()[ComponentExercise].FallbackMode)

	_, err = svc.Exercises().GetItems(ctx, types.ExerciseLetters, 4, true)
	require.NoError(t, err)
	require.NoError(t, svc.Sync(ctx))
	assert.Equal(t, storage.StateReady, svc.Storage().State())
}

func TestService_RepeatedFailuresBecomeUnavailable(t *testing.T) {
	ctx := context.Background()
	backend := storagetest.New()
	backend.FailOpen(fmt.Errorf("blocked"))

	svc := newTestService(t, testConfig(config.BackendMemory), WithBackend(backend))
	_, _ = svc.Exercises().GetItems(ctx, types.ExerciseSymbols, 2, false)

	for i := 0; i < 3; i++ {
		svc.CheckHealth(ctx)
	}
	assert.Equal(t, health.StateUnavailable, svc.Health().State(ComponentStorage))
	assert.Equal(t, int64(1), backend.Opens.Load(), "health checks do not reconnect")
}

func TestService_StartAndCloseLifecycle(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(config.BackendMemory)
	cfg.Monitoring.Health.CheckInterval = time.Hour

	svc := newTestService(t, cfg)
	require.NoError(t, svc.Start(ctx))
	require.NoError(t, svc.Start(ctx), "second start is a no-op")

	for _, kind := range types.ExerciseTypes() {
		items, err := svc.Exercises().GetItems(ctx, kind, cfg.Exercise.DefaultCount, false)
		require.NoError(t, err)
		assert.Len(t, items, cfg.Exercise.DefaultCount, "preloaded %s", kind)
	}

	require.NoError(t, svc.Close(ctx))
	require.NoError(t, svc.Close(ctx))

	err := svc.Start(ctx)
	assert.True(t, errors.HasCode(err, errors.ErrCodeComponentStopped))
}

func TestService_ConfiguredPriorities(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(config.BackendMemory)
	cfg.Exercise.Priorities = map[string]int{"lettres": 3, "chiffres": 9}

	svc := newTestService(t, cfg)
	_, err := svc.Exercises().GetItems(ctx, types.ExerciseLetters, 3, false)
	require.NoError(t, err)
	require.NoError(t, svc.Sync(ctx))

	record, found, err := svc.Storage().Get(ctx, storage.PartitionExerciseCache, "exercise-lettres-3")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 3, record.Priority)
	assert.Equal(t, "lettres", record.Type)
}

func TestNewBackend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		modify  func(*config.Configuration)
		check   func(*testing.T, storage.Backend)
		wantErr bool
	}{
		{
			name:   "none",
			modify: func(c *config.Configuration) { c.Storage.Backend = config.BackendNone },
			check:  func(t *testing.T, b storage.Backend) { assert.Nil(t, b) },
		},
		{
			name:   "memory",
			modify: func(c *config.Configuration) { c.Storage.Backend = config.BackendMemory },
			check: func(t *testing.T, b storage.Backend) {
				assert.IsType(t, &storage.MemoryBackend{}, b)
			},
		},
		{
			name: "file",
			modify: func(c *config.Configuration) {
				c.Storage.Backend = config.BackendFile
				c.Storage.File.Directory = t.TempDir()
			},
			check: func(t *testing.T, b storage.Backend) {
				assert.IsType(t, &storage.FileBackend{}, b)
			},
		},
		{
			name: "s3",
			modify: func(c *config.Configuration) {
				c.Storage.Backend = config.BackendS3
				c.Storage.S3.Bucket = "practice-progress"
				c.Storage.S3.Endpoint = "http://localhost:9000"
			},
			check: func(t *testing.T, b storage.Backend) {
				assert.IsType(t, &s3.Backend{}, b)
			},
		},
		{
			name:    "unknown",
			modify:  func(c *config.Configuration) { c.Storage.Backend = "indexeddb" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewDefault()
			tt.modify(cfg)

			backend, err := newBackend(cfg, nil, logger)
			if tt.wantErr {
				assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfig))
				return
			}
			require.NoError(t, err)
			tt.check(t, backend)
		})
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		global    config.GlobalConfig
		wantDebug bool
		wantInfo  bool
		contains  string
	}{
		{"debug text", config.GlobalConfig{LogLevel: "DEBUG", LogFormat: "text"}, true, true, "level=DEBUG"},
		{"info json", config.GlobalConfig{LogLevel: "info", LogFormat: "json"}, false, true, `"level":"INFO"`},
		{"warn", config.GlobalConfig{LogLevel: "WARN", LogFormat: "text"}, false, false, ""},
		{"unknown level", config.GlobalConfig{LogLevel: "verbose"}, false, true, "level=INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.global, &buf)

			logger.Debug("debug line")
			logger.Info("info line")

			out := buf.String()
			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("debug line")))
			assert.Equal(t, tt.wantInfo, bytes.Contains(buf.Bytes(), []byte("info line")))
			assert.Contains(t, out, tt.contains)
		})
	}
}
