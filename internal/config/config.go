package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/tutoapp/practicecache/pkg/errors"
)

// Storage backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendS3     = "s3"
)

// Configuration represents the complete practice cache configuration
type Configuration struct {
	Global     GlobalConfig     `yaml:"global"`
	Cache      CacheConfig      `yaml:"cache"`
	Storage    StorageConfig    `yaml:"storage"`
	Exercise   ExerciseConfig   `yaml:"exercise"`
	Validation ValidationConfig `yaml:"validation"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// GlobalConfig represents global settings
type GlobalConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// CacheConfig represents settings shared by the exercise and validation caches
type CacheConfig struct {
	MaxAge          time.Duration `yaml:"max_age"`
	SyncInterval    time.Duration `yaml:"sync_interval"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	QueueSize       int           `yaml:"queue_size"`
	WarmOnStart     bool          `yaml:"warm_on_start"`
}

// StorageConfig represents persistent storage settings
type StorageConfig struct {
	Backend        string        `yaml:"backend"`
	SchemaVersion  int           `yaml:"schema_version"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	Retry          RetryConfig   `yaml:"retry"`
	File           FileConfig    `yaml:"file"`
	S3             S3Config      `yaml:"s3"`
}

// RetryConfig represents retry settings for opening storage
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// FileConfig represents file backend settings
type FileConfig struct {
	Directory   string `yaml:"directory"`
	Compression bool   `yaml:"compression"`
}

// S3Config represents S3 backend settings
type S3Config struct {
	Bucket          string        `yaml:"bucket"`
	Prefix          string        `yaml:"prefix"`
	Region          string        `yaml:"region"`
	Endpoint        string        `yaml:"endpoint"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
	ForcePathStyle  bool          `yaml:"force_path_style"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
}

// ExerciseConfig represents exercise content cache settings
type ExerciseConfig struct {
	MaxEntries   int            `yaml:"max_entries"`
	DefaultCount int            `yaml:"default_count"`
	IdleDelay    time.Duration  `yaml:"idle_delay"`
	Difficulty   string         `yaml:"difficulty"`
	Priorities   map[string]int `yaml:"priorities"`
}

// ValidationConfig represents input validation cache settings
type ValidationConfig struct {
	MaxEntries       int `yaml:"max_entries"`
	MaxMessageLength int `yaml:"max_message_length"`
	BatchSize        int `yaml:"batch_size"`
	PreloadDepth     int `yaml:"preload_depth"`
}

// MonitoringConfig represents monitoring settings
type MonitoringConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Health  HealthConfig  `yaml:"health"`
}

// MetricsConfig represents metrics settings
type MetricsConfig struct {
	Enabled      bool              `yaml:"enabled"`
	Port         int               `yaml:"port"`
	Path         string            `yaml:"path"`
	Namespace    string            `yaml:"namespace"`
	CustomLabels map[string]string `yaml:"custom_labels"`
}

// HealthConfig represents component health tracking settings
type HealthConfig struct {
	CheckInterval        time.Duration `yaml:"check_interval"`
	ErrorThreshold       int           `yaml:"error_threshold"`
	UnavailableThreshold int           `yaml:"unavailable_threshold"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:  "INFO",
			LogFormat: "text",
		},
		Cache: CacheConfig{
			MaxAge:          5 * time.Minute,
			SyncInterval:    5 * time.Second,
			CleanupInterval: 5 * time.Minute,
			QueueSize:       256,
			WarmOnStart:     true,
		},
		Storage: StorageConfig{
			Backend:        BackendMemory,
			SchemaVersion:  1,
			ConnectTimeout: 5 * time.Second,
			Retry: RetryConfig{
				MaxAttempts: 3,
				BaseDelay:   50 * time.Millisecond,
				MaxDelay:    time.Second,
			},
			File: FileConfig{
				Directory: "practice-data",
			},
			S3: S3Config{
				Prefix:         "practice",
				Region:         "us-east-1",
				RequestTimeout: 10 * time.Second,
			},
		},
		Exercise: ExerciseConfig{
			MaxEntries:   200,
			DefaultCount: 20,
			IdleDelay:    200 * time.Millisecond,
			Difficulty:   "medium",
			Priorities: map[string]int{
				"lettres":  0,
				"symboles": 0,
				"mots":     1,
				"phrases":  2,
			},
		},
		Validation: ValidationConfig{
			MaxEntries:       50,
			MaxMessageLength: 100,
			BatchSize:        32,
			PreloadDepth:     3,
		},
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{
				Enabled:   true,
				Path:      "/metrics",
				Namespace: "practicecache",
				CustomLabels: map[string]string{
					"service": "tuto-app",
				},
			},
			Health: HealthConfig{
				CheckInterval:        30 * time.Second,
				ErrorThreshold:       1,
				UnavailableThreshold: 3,
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return loadError("failed to read config file", err).WithDetail("file", filename)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return loadError("failed to parse config file", err).WithDetail("file", filename)
	}

	return nil
}

// LoadFromEnv loads configuration from PRACTICE_* environment variables
func (c *Configuration) LoadFromEnv() error {
	env := envReader{}

	// Global settings
	env.str("PRACTICE_LOG_LEVEL", &c.Global.LogLevel)
	env.str("PRACTICE_LOG_FORMAT", &c.Global.LogFormat)

	// Cache settings
	env.duration("PRACTICE_CACHE_MAX_AGE", &c.Cache.MaxAge)
	env.duration("PRACTICE_CACHE_SYNC_INTERVAL", &c.Cache.SyncInterval)
	env.integer("PRACTICE_CACHE_QUEUE_SIZE", &c.Cache.QueueSize)
	env.boolean("PRACTICE_CACHE_WARM_ON_START", &c.Cache.WarmOnStart)

	// Storage settings
	env.str("PRACTICE_STORAGE_BACKEND", &c.Storage.Backend)
	env.duration("PRACTICE_STORAGE_CONNECT_TIMEOUT", &c.Storage.ConnectTimeout)
	env.str("PRACTICE_STORAGE_DIR", &c.Storage.File.Directory)
	env.boolean("PRACTICE_STORAGE_COMPRESSION", &c.Storage.File.Compression)
	env.str("PRACTICE_S3_BUCKET", &c.Storage.S3.Bucket)
	env.str("PRACTICE_S3_PREFIX", &c.Storage.S3.Prefix)
	env.str("PRACTICE_S3_REGION", &c.Storage.S3.Region)
	env.str("PRACTICE_S3_ENDPOINT", &c.Storage.S3.Endpoint)
	env.str("PRACTICE_S3_ACCESS_KEY_ID", &c.Storage.S3.AccessKeyID)
	env.str("PRACTICE_S3_SECRET_ACCESS_KEY", &c.Storage.S3.SecretAccessKey)
	env.boolean("PRACTICE_S3_FORCE_PATH_STYLE", &c.Storage.S3.ForcePathStyle)

	// Exercise and validation settings
	env.integer("PRACTICE_EXERCISE_DEFAULT_COUNT", &c.Exercise.DefaultCount)
	env.duration("PRACTICE_EXERCISE_IDLE_DELAY", &c.Exercise.IdleDelay)
	env.str("PRACTICE_EXERCISE_DIFFICULTY", &c.Exercise.Difficulty)
	env.integer("PRACTICE_VALIDATION_BATCH_SIZE", &c.Validation.BatchSize)
	env.integer("PRACTICE_VALIDATION_PRELOAD_DEPTH", &c.Validation.PreloadDepth)

	// Monitoring
	env.boolean("PRACTICE_METRICS_ENABLED", &c.Monitoring.Metrics.Enabled)
	env.integer("PRACTICE_METRICS_PORT", &c.Monitoring.Metrics.Port)
	env.duration("PRACTICE_HEALTH_CHECK_INTERVAL", &c.Monitoring.Health.CheckInterval)

	return env.err
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	if !slices.Contains(validLogLevels, strings.ToUpper(c.Global.LogLevel)) {
		return invalid("global.log_level",
			fmt.Sprintf("invalid log_level: %s (must be one of: %s)", c.Global.LogLevel, strings.Join(validLogLevels, ", ")))
	}
	if !slices.Contains([]string{"text", "json"}, c.Global.LogFormat) {
		return invalid("global.log_format", fmt.Sprintf("invalid log_format: %s (must be text or json)", c.Global.LogFormat))
	}

	if c.Cache.MaxAge <= 0 {
		return invalid("cache.max_age", "max_age must be greater than 0")
	}
	if c.Cache.SyncInterval < 0 || c.Cache.CleanupInterval < 0 {
		return invalid("cache.sync_interval", "intervals cannot be negative")
	}
	if c.Cache.QueueSize <= 0 {
		return invalid("cache.queue_size", "queue_size must be greater than 0")
	}

	backends := []string{BackendNone, BackendMemory, BackendFile, BackendS3}
	if !slices.Contains(backends, c.Storage.Backend) {
		return invalid("storage.backend",
			fmt.Sprintf("invalid backend: %s (must be one of: %s)", c.Storage.Backend, strings.Join(backends, ", ")))
	}
	if c.Storage.SchemaVersion <= 0 {
		return invalid("storage.schema_version", "schema_version must be greater than 0")
	}
	if c.Storage.Backend == BackendFile && c.Storage.File.Directory == "" {
		return invalid("storage.file.directory", "directory is required for the file backend")
	}
	if c.Storage.Backend == BackendS3 && c.Storage.S3.Bucket == "" {
		return invalid("storage.s3.bucket", "bucket is required for the s3 backend")
	}

	if c.Exercise.MaxEntries <= 0 {
		return invalid("exercise.max_entries", "max_entries must be greater than 0")
	}
	if c.Exercise.DefaultCount <= 0 {
		return invalid("exercise.default_count", "default_count must be greater than 0")
	}
	if !slices.Contains([]string{"easy", "medium", "hard"}, c.Exercise.Difficulty) {
		return invalid("exercise.difficulty", fmt.Sprintf("invalid difficulty: %s", c.Exercise.Difficulty))
	}
	for kind, priority := range c.Exercise.Priorities {
		if priority < 0 {
			return invalid("exercise.priorities", fmt.Sprintf("priority of %s cannot be negative", kind))
		}
	}

	if c.Validation.MaxEntries <= 0 {
		return invalid("validation.max_entries", "max_entries must be greater than 0")
	}
	if c.Validation.BatchSize <= 0 {
		return invalid("validation.batch_size", "batch_size must be greater than 0")
	}
	if c.Validation.PreloadDepth < 0 {
		return invalid("validation.preload_depth", "preload_depth cannot be negative")
	}

	if c.Monitoring.Metrics.Port < 0 || c.Monitoring.Metrics.Port > 65535 {
		return invalid("monitoring.metrics.port", fmt.Sprintf("invalid port: %d", c.Monitoring.Metrics.Port))
	}
	if c.Monitoring.Health.CheckInterval < 0 {
		return invalid("monitoring.health.check_interval", "check_interval cannot be negative")
	}
	if c.Monitoring.Health.ErrorThreshold <= 0 || c.Monitoring.Health.UnavailableThreshold < c.Monitoring.Health.ErrorThreshold {
		return invalid("monitoring.health.error_threshold",
			"error_threshold must be positive and not above unavailable_threshold")
	}

	return nil
}

// envReader applies environment overrides and keeps the first malformed value.
type envReader struct {
	err error
}

func (e *envReader) str(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func (e *envReader) integer(key string, dst *int) {
	val := os.Getenv(key)
	if val == "" {
		return
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = n
}

func (e *envReader) boolean(key string, dst *bool) {
	val := os.Getenv(key)
	if val == "" {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = b
}

func (e *envReader) duration(key string, dst *time.Duration) {
	val := os.Getenv(key)
	if val == "" {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = d
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = loadError("invalid environment variable", err).WithDetail("variable", key)
	}
}

func loadError(message string, cause error) *errors.PracticeError {
	return errors.NewError(errors.ErrCodeConfigLoad, message).
		WithComponent("config").
		WithCause(cause)
}

func invalid(field, message string) *errors.PracticeError {
	return errors.NewError(errors.ErrCodeConfigValidation, message).
		WithComponent("config").
		WithDetail("field", field)
}
