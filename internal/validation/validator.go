package validation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/tutoapp/practicecache/internal/cache"
	"github.com/tutoapp/practicecache/internal/metrics"
	"github.com/tutoapp/practicecache/pkg/types"
)

// Config represents validator configuration
type Config struct {
	// MaxMessageLength bounds, in runes, the input and expected text quoted in error messages.
	MaxMessageLength int `yaml:"max_message_length"`

	// BatchSize is the chunk size, in bytes, above which inputs are compared chunk by chunk.
	BatchSize int `yaml:"batch_size"`

	// PreloadDepth is how many next keystrokes are validated ahead of a partially correct input.
	PreloadDepth int `yaml:"preload_depth"`

	// ChunkMemoSize bounds the number of memoized chunk comparisons.
	ChunkMemoSize int `yaml:"chunk_memo_size"`
}

// DefaultConfig returns the validator defaults.
func DefaultConfig() Config {
	return Config{
		MaxMessageLength: 100,
		BatchSize:        32,
		PreloadDepth:     3,
		ChunkMemoSize:    500,
	}
}

// Options carries per-call context: whether the item is the last of the
// exercise and the message templates.
type Options struct {
	IsLastItem      bool
	SuccessMessage  string
	CompleteMessage string
	NextMessage     string
}

// DefaultOptions returns the French messages shown by the application.
func DefaultOptions() Options {
	return Options{
		SuccessMessage:  "Parfait !",
		CompleteMessage: "Parfait ! Vous avez terminé !",
		NextMessage:     "Appuyez sur Entrée pour continuer.",
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.SuccessMessage == "" {
		o.SuccessMessage = def.SuccessMessage
	}
	if o.CompleteMessage == "" {
		o.CompleteMessage = def.CompleteMessage
	}
	if o.NextMessage == "" {
		o.NextMessage = def.NextMessage
	}
	return o
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(v *Validator) { v.metrics = collector }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// Validator compares user input with the expected text and memoizes results
// by the exact (input, expected) pair.
type Validator struct {
	results types.Cache[types.ValidationResult]
	chunks  *cache.MemoryCache[bool]
	config  Config
	logger  *slog.Logger
	metrics *metrics.Collector
	now     func() time.Time

	mu        sync.Mutex
	lastInput string
	lookahead frontier
}

// frontier is the end of the longest precomputed prefix of expected.
type frontier struct {
	expected string
	end      int
}

// New creates a validator storing results in results. The validator owns results and closes it.
func New(results types.Cache[types.ValidationResult], config Config, opts ...Option) *Validator {
	def := DefaultConfig()
	if config.MaxMessageLength <= 0 {
		config.MaxMessageLength = def.MaxMessageLength
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.PreloadDepth < 0 {
		config.PreloadDepth = 0
	}
	if config.ChunkMemoSize <= 0 {
		config.ChunkMemoSize = def.ChunkMemoSize
	}

	v := &Validator{
		results: results,
		config:  config,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = v.logger.With("component", "validation")
	v.chunks = cache.NewMemoryCache[bool](
		cache.Config{MaxEntries: config.ChunkMemoSize},
		cache.WithName("validation_chunks"),
		cache.WithLogger(v.logger),
		cache.WithMetrics(v.metrics),
	)

	return v
}

// Key derives the cache key of an (input, expected) pair. The input length
// prefix keeps distinct pairs from sharing a key.
func Key(input, expected string) string {
	return fmt.Sprintf("validation-%d:%s%s", len(input), input, expected)
}

// Validate returns the validation result of input against expected. A pair
// validated before returns the stored result unchanged.
func (v *Validator) Validate(ctx context.Context, input, expected string, opts Options) types.ValidationResult {
	v.mu.Lock()
	v.lastInput = input
	v.mu.Unlock()

	key := Key(input, expected)
	opts = opts.withDefaults()
	if cached, ok := v.results.Get(ctx, key); ok {
		v.metrics.RecordValidation(outcome(cached), true)
		if cached.IsPartiallyCorrect && !cached.IsCorrect {
			v.precompute(ctx, input, expected, opts)
		}
		return cached
	}

	result := v.compute(input, expected, opts)
	v.results.Put(ctx, key, result, 0)
	v.metrics.RecordValidation(outcome(result), false)

	if result.IsPartiallyCorrect && !result.IsCorrect {
		v.precompute(ctx, input, expected, opts)
	}
	return result
}

// precompute stores the results of the next PreloadDepth keystrokes along
// expected. Prefixes up to the current frontier are already stored and skipped.
func (v *Validator) precompute(ctx context.Context, input, expected string, opts Options) {
	target := len(input)
	for d := 0; d < v.config.PreloadDepth && target < len(expected); d++ {
		_, size := utf8.DecodeRuneInString(expected[target:])
		target += size
	}

	v.mu.Lock()
	start := len(input)
	if v.lookahead.expected == expected && v.lookahead.end > start {
		start = v.lookahead.end
	}
	if target > start {
		v.lookahead = frontier{expected: expected, end: target}
	}
	v.mu.Unlock()

	for end := start; end < target; {
		_, size := utf8.DecodeRuneInString(expected[end:])
		end += size
		next := expected[:end]
		v.results.Put(ctx, Key(next, expected), v.compute(next, expected, opts), 0)
	}
}

func (v *Validator) compute(input, expected string, opts Options) types.ValidationResult {
	partial := v.hasPrefix(expected, input)
	result := types.ValidationResult{
		IsCorrect:          partial && len(input) == len(expected),
		IsPartiallyCorrect: partial,
		Timestamp:          v.now(),
	}

	switch {
	case result.IsCorrect && opts.IsLastItem:
		result.Message = opts.CompleteMessage
		result.IsComplete = true
	case result.IsCorrect:
		result.Message = opts.SuccessMessage + " " + opts.NextMessage
	case !partial:
		result.IsIncorrect = true
		if input != "" {
			limit := v.config.MaxMessageLength
			result.Message = fmt.Sprintf("Vous avez écrit : \"%s\"\nAttendu : \"%s\"",
				truncate(input, limit),
				truncate(expected, min(utf8.RuneCountInString(input), limit)))
		}
	}
	return result
}

// hasPrefix reports strings.HasPrefix(s, prefix). Prefixes longer than
// BatchSize are compared chunk by chunk with memoized chunk comparisons,
// stopping at the first mismatching chunk.
func (v *Validator) hasPrefix(s, prefix string) bool {
	if len(prefix) > len(s) {
		return false
	}
	size := v.config.BatchSize
	if len(prefix) <= size {
		return strings.HasPrefix(s, prefix)
	}

	for start := 0; start < len(prefix); start += size {
		end := min(start+size, len(prefix))
		if !v.chunkEqual(prefix[start:end], s[start:end]) {
			return false
		}
	}
	return true
}

func (v *Validator) chunkEqual(a, b string) bool {
	key := fmt.Sprintf("%d:%s%s", len(a), a, b)
	if equal, ok := v.chunks.Get(context.Background(), key); ok {
		return equal
	}
	equal := a == b
	v.chunks.Put(context.Background(), key, equal, 0)
	return equal
}

// Reset forgets every result, chunk comparison and the last input.
func (v *Validator) Reset(ctx context.Context) {
	v.results.Purge(ctx)
	v.chunks.Purge(ctx)

	v.mu.Lock()
	v.lastInput = ""
	v.lookahead = frontier{}
	v.mu.Unlock()
}

// LastInput returns the most recently validated input.
func (v *Validator) LastInput() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastInput
}

// Stats returns statistics of the result cache.
func (v *Validator) Stats() types.CacheStats {
	return v.results.Stats()
}

// EvictExpired sweeps the result cache.
func (v *Validator) EvictExpired(ctx context.Context) {
	v.results.EvictExpired(ctx)
}

// Close releases the result cache and the chunk memo.
func (v *Validator) Close() error {
	_ = v.chunks.Close()
	return v.results.Close()
}

func outcome(r types.ValidationResult) string {
	switch {
	case r.IsCorrect:
		return "correct"
	case r.IsPartiallyCorrect:
		return "partial"
	default:
		return "incorrect"
	}
}

// truncate returns the first n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
