package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tutoapp/practicecache/pkg/errors"
)

// Test Constants
const (
	TestDebugLevel = "DEBUG"
	TestBucket     = "practice-progress"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	if cfg.Global.LogLevel != "INFO" {
		t.Errorf("Expected LogLevel to be INFO, got %s", cfg.Global.LogLevel)
	}
	if cfg.Cache.MaxAge != 5*time.Minute {
		t.Errorf("Expected MaxAge to be 5 minutes, got %v", cfg.Cache.MaxAge)
	}
	if cfg.Cache.SyncInterval != 5*time.Second {
		t.Errorf("Expected SyncInterval to be 5 seconds, got %v", cfg.Cache.SyncInterval)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Errorf("Expected memory backend, got %s", cfg.Storage.Backend)
	}
	if cfg.Exercise.DefaultCount != 20 {
		t.Errorf("Expected DefaultCount to be 20, got %d", cfg.Exercise.DefaultCount)
	}
	if cfg.Exercise.Priorities["phrases"] != 2 {
		t.Errorf("Expected phrases priority 2, got %d", cfg.Exercise.Priorities["phrases"])
	}
	if cfg.Validation.MaxEntries != 50 || cfg.Validation.MaxMessageLength != 100 {
		t.Errorf("Unexpected validation defaults: %+v", cfg.Validation)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default configuration should be valid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Configuration)
		field  string
	}{
		{"invalid log level", func(c *Configuration) { c.Global.LogLevel = "TRACE" }, "global.log_level"},
		{"invalid log format", func(c *Configuration) { c.Global.LogFormat = "xml" }, "global.log_format"},
		{"zero max age", func(c *Configuration) { c.Cache.MaxAge = 0 }, "cache.max_age"},
		{"zero queue", func(c *Configuration) { c.Cache.QueueSize = 0 }, "cache.queue_size"},
		{"unknown backend", func(c *Configuration) { c.Storage.Backend = "indexeddb" }, "storage.backend"},
		{"file without directory", func(c *Configuration) {
			c.Storage.Backend = BackendFile
			c.Storage.File.Directory = ""
		}, "storage.file.directory"},
		{"s3 without bucket", func(c *Configuration) { c.Storage.Backend = BackendS3 }, "storage.s3.bucket"},
		{"unknown difficulty", func(c *Configuration) { c.Exercise.Difficulty = "expert" }, "exercise.difficulty"},
		{"negative priority", func(c *Configuration) { c.Exercise.Priorities["mots"] = -1 }, "exercise.priorities"},
		{"zero batch size", func(c *Configuration) { c.Validation.BatchSize = 0 }, "validation.batch_size"},
		{"negative preload depth", func(c *Configuration) { c.Validation.PreloadDepth = -1 }, "validation.preload_depth"},
		{"port out of range", func(c *Configuration) { c.Monitoring.Metrics.Port = 70000 }, "monitoring.metrics.port"},
		{"health thresholds inverted", func(c *Configuration) {
			c.Monitoring.Health.ErrorThreshold = 5
			c.Monitoring.Health.UnavailableThreshold = 2
		}, "monitoring.health.error_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefault()
			tt.modify(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected an error")
			}
			if !errors.HasCode(err, errors.ErrCodeConfigValidation) {
				t.Errorf("Validate() error code = %s, want CONFIG_VALIDATION", errors.CodeOf(err))
			}
			if pe, ok := err.(*errors.PracticeError); !ok || pe.Details["field"] != tt.field {
				t.Errorf("Validate() field = %v, want %s", err, tt.field)
			}
		})
	}
}

func TestValidateLowercaseLogLevel(t *testing.T) {
	cfg := NewDefault()
	cfg.Global.LogLevel = "debug"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Lowercase log level should be accepted: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
global:
  log_level: DEBUG
  log_format: json

cache:
  max_age: 10m
  sync_interval: 2s

storage:
  backend: s3
  s3:
    bucket: practice-progress
    endpoint: http://localhost:9000
    force_path_style: true

exercise:
  difficulty: hard
  priorities:
    mots: 3
`

	if err := os.WriteFile(configFile, []byte(configContent), 0600); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	cfg := NewDefault()
	if err := cfg.LoadFromFile(configFile); err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Global.LogLevel != TestDebugLevel {
		t.Errorf("Expected LogLevel to be DEBUG, got %s", cfg.Global.LogLevel)
	}
	if cfg.Cache.MaxAge != 10*time.Minute {
		t.Errorf("Expected MaxAge to be 10m, got %v", cfg.Cache.MaxAge)
	}
	if cfg.Cache.SyncInterval != 2*time.Second {
		t.Errorf("Expected SyncInterval to be 2s, got %v", cfg.Cache.SyncInterval)
	}
	if cfg.Storage.Backend != BackendS3 || cfg.Storage.S3.Bucket != TestBucket {
		t.Errorf("Unexpected storage config: %+v", cfg.Storage)
	}
	if !cfg.Storage.S3.ForcePathStyle {
		t.Error("Expected ForcePathStyle to be true")
	}
	if cfg.Storage.S3.Region != "us-east-1" {
		t.Errorf("Defaults not covered by the file should be kept, got region %q", cfg.Storage.S3.Region)
	}
	if cfg.Exercise.Difficulty != "hard" || cfg.Exercise.Priorities["mots"] != 3 {
		t.Errorf("Unexpected exercise config: %+v", cfg.Exercise)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Loaded configuration should be valid: %v", err)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := NewDefault()
	err := cfg.LoadFromFile("/nonexistent/config.yaml")
	if !errors.HasCode(err, errors.ErrCodeConfigLoad) {
		t.Errorf("Expected CONFIG_LOAD for a missing file, got %v", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("cache: [unterminated"), 0600); err != nil {
		t.Fatal(err)
	}
	err = cfg.LoadFromFile(bad)
	if !errors.HasCode(err, errors.ErrCodeConfigLoad) {
		t.Errorf("Expected CONFIG_LOAD for malformed YAML, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	testEnvVars := map[string]string{
		"PRACTICE_LOG_LEVEL":              "ERROR",
		"PRACTICE_CACHE_MAX_AGE":          "10m",
		"PRACTICE_CACHE_WARM_ON_START":    "false",
		"PRACTICE_STORAGE_BACKEND":        "file",
		"PRACTICE_STORAGE_DIR":            "/tmp/practice",
		"PRACTICE_STORAGE_COMPRESSION":    "true",
		"PRACTICE_S3_BUCKET":              TestBucket,
		"PRACTICE_EXERCISE_DEFAULT_COUNT": "30",
		"PRACTICE_METRICS_PORT":           "9090",
	}
	for key, value := range testEnvVars {
		t.Setenv(key, value)
	}

	cfg := NewDefault()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Global.LogLevel != "ERROR" {
		t.Errorf("Expected LogLevel to be ERROR, got %s", cfg.Global.LogLevel)
	}
	if cfg.Cache.MaxAge != 10*time.Minute {
		t.Errorf("Expected MaxAge to be 10 minutes, got %v", cfg.Cache.MaxAge)
	}
	if cfg.Cache.WarmOnStart {
		t.Error("Expected WarmOnStart to be false")
	}
	if cfg.Storage.Backend != BackendFile || cfg.Storage.File.Directory != "/tmp/practice" || !cfg.Storage.File.Compression {
		t.Errorf("Unexpected file storage config: %+v", cfg.Storage.File)
	}
	if cfg.Storage.S3.Bucket != TestBucket {
		t.Errorf("Expected bucket %s, got %s", TestBucket, cfg.Storage.S3.Bucket)
	}
	if cfg.Exercise.DefaultCount != 30 {
		t.Errorf("Expected DefaultCount to be 30, got %d", cfg.Exercise.DefaultCount)
	}
	if cfg.Monitoring.Metrics.Port != 9090 {
		t.Errorf("Expected metrics port 9090, got %d", cfg.Monitoring.Metrics.Port)
	}
}

func TestLoadFromEnvMalformed(t *testing.T) {
	t.Setenv("PRACTICE_CACHE_MAX_AGE", "five minutes")
	t.Setenv("PRACTICE_EXERCISE_DEFAULT_COUNT", "many")

	cfg := NewDefault()
	err := cfg.LoadFromEnv()
	if !errors.HasCode(err, errors.ErrCodeConfigLoad) {
		t.Fatalf("Expected CONFIG_LOAD, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid environment variable") {
		t.Errorf("Unexpected message: %v", err)
	}
	if cfg.Cache.MaxAge != 5*time.Minute || cfg.Exercise.DefaultCount != 20 {
		t.Error("Malformed values must not overwrite defaults")
	}
}

func TestSaveToFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "subdir", "saved_config.yaml")

	cfg := NewDefault()
	cfg.Global.LogLevel = TestDebugLevel
	cfg.Storage.S3.Bucket = TestBucket
	cfg.Cache.SyncInterval = 7 * time.Second

	if err := cfg.SaveToFile(configFile); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	newCfg := NewDefault()
	if err := newCfg.LoadFromFile(configFile); err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}

	if newCfg.Global.LogLevel != TestDebugLevel {
		t.Errorf("Expected LogLevel to be DEBUG, got %s", newCfg.Global.LogLevel)
	}
	if newCfg.Storage.S3.Bucket != TestBucket {
		t.Errorf("Expected bucket %s, got %s", TestBucket, newCfg.Storage.S3.Bucket)
	}
	if newCfg.Cache.SyncInterval != 7*time.Second {
		t.Errorf("Expected SyncInterval to be 7s, got %v", newCfg.Cache.SyncInterval)
	}
}
