// Package retry retries storage connection attempts with exponential backoff.
// Only PracticeErrors flagged retryable, or carrying one of the configured
// codes, are retried; any other error ends the attempt loop at once.
package retry

import (
	"context"
	stderr "errors"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"time"

	"github.com/tutoapp/practicecache/pkg/errors"
)

// Config defines retry behavior configuration
type Config struct {
	// MaxAttempts counts the first call.
	MaxAttempts int `yaml:"max_attempts"`

	// InitialDelay is the wait before the second attempt.
	InitialDelay time.Duration `yaml:"initial_delay"`

	// MaxDelay caps every wait.
	MaxDelay time.Duration `yaml:"max_delay"`

	// Multiplier grows the wait after each failed attempt.
	Multiplier float64 `yaml:"multiplier"`

	// Jitter spreads each wait by up to 20% either way.
	Jitter bool `yaml:"jitter"`

	// RetryableErrors are codes retried even when the error itself is not flagged retryable.
	RetryableErrors []errors.ErrorCode `yaml:"retryable_errors"`

	// OnRetry runs before each wait.
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-"`
}

// DefaultConfig returns the retry configuration used when opening persistent storage.
// Storage open is on the startup path, so the budget is small.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		Jitter:       true,
		RetryableErrors: []errors.ErrorCode{
			errors.ErrCodeConnectionTimeout,
			errors.ErrCodeStorageBlocked,
		},
	}
}

// Retryer runs a function until it succeeds, fails permanently or runs out of attempts.
type Retryer struct {
	config Config
}

// New returns a Retryer. Unset fields take the DefaultConfig values.
func New(config Config) *Retryer {
	def := DefaultConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = def.InitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = def.MaxDelay
	}
	if config.Multiplier <= 0 {
		config.Multiplier = def.Multiplier
	}
	return &Retryer{config: config}
}

// Do calls fn until it returns nil or a permanent error. A canceled ctx stops
// the loop between attempts.
func (r *Retryer) Do(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("operation canceled: %w", err)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == r.config.MaxAttempts || !r.retryable(lastErr) {
			break
		}

		delay := r.calculateDelay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, lastErr, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("operation canceled after %d attempts: %w", attempt, ctx.Err())
		case <-timer.C:
		}
	}

	if r.config.MaxAttempts > 1 && r.retryable(lastErr) {
		return fmt.Errorf("max retry attempts (%d) exceeded: %w", r.config.MaxAttempts, lastErr)
	}
	return lastErr
}

func (r *Retryer) retryable(err error) bool {
	var practiceErr *errors.PracticeError
	if !stderr.As(err, &practiceErr) {
		return false
	}
	return practiceErr.Retryable || slices.Contains(r.config.RetryableErrors, practiceErr.Code)
}

// calculateDelay returns InitialDelay * Multiplier^(attempt-1), capped and jittered.
func (r *Retryer) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	delay = math.Min(delay, float64(r.config.MaxDelay))

	if r.config.Jitter {
		delay += delay * 0.2 * (rand.Float64()*2 - 1)
	}
	return time.Duration(delay)
}
