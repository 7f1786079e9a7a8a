package cache

import (
	"log/slog"
	"time"

	"github.com/tutoapp/practicecache/internal/metrics"
)

// Config represents memory tier configuration
type Config struct {
	MaxEntries      int           `yaml:"max_entries"`
	MaxAge          time.Duration `yaml:"max_age"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultConfig returns a memory tier with 100 entries, a 5 minute base TTL and a sweep every 5 minutes.
func DefaultConfig() Config {
	return Config{
		MaxEntries:      100,
		MaxAge:          5 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxEntries <= 0 {
		c.MaxEntries = def.MaxEntries
	}
	if c.MaxAge <= 0 {
		c.MaxAge = def.MaxAge
	}
	if c.CleanupInterval < 0 {
		c.CleanupInterval = 0
	}
	return c
}

// EffectiveTTL scales maxAge by the entry priority: maxAge * (1 + priority*0.5).
func EffectiveTTL(maxAge time.Duration, priority int) time.Duration {
	if priority < 0 {
		priority = 0
	}
	return time.Duration(float64(maxAge) * (1 + float64(priority)*0.5))
}

// Option configures a cache
type Option func(*options)

type options struct {
	name    string
	logger  *slog.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

func buildOptions(defaultName string, opts []Option) options {
	o := options{name: defaultName, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = o.logger.With("component", "cache", "cache", o.name)
	return o
}

// WithName labels logs and metrics emitted by the cache.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(o *options) { o.metrics = collector }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
