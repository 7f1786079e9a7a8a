package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutoapp/practicecache/pkg/errors"
)

func fastConfig(attempts int) Config {
	config := DefaultConfig()
	config.MaxAttempts = attempts
	config.InitialDelay = time.Millisecond
	config.MaxDelay = 5 * time.Millisecond
	config.Jitter = false
	return config
}

func TestRetryer_Success(t *testing.T) {
	retryer := New(fastConfig(3))

	attempts := 0
	err := retryer.Do(context.Background(), func(context.Context) error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryer_RetryableError(t *testing.T) {
	retryer := New(fastConfig(3))

	attempts := 0
	err := retryer.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.NewError(errors.ErrCodeStorageBlocked, "another connection holds the lock")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryer_NonRetryableError(t *testing.T) {
	retryer := New(fastConfig(3))

	attempts := 0
	err := retryer.Do(context.Background(), func(context.Context) error {
		attempts++
		return errors.NewError(errors.ErrCodeStorageUnavailable, "disabled")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.True(t, errors.HasCode(err, errors.ErrCodeStorageUnavailable))
}

func TestRetryer_PlainErrorIsNotRetried(t *testing.T) {
	retryer := New(fastConfig(3))

	attempts := 0
	err := retryer.Do(context.Background(), func(context.Context) error {
		attempts++
		return fmt.Errorf("boom")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryer_MaxAttemptsExceeded(t *testing.T) {
	retryer := New(fastConfig(2))

	attempts := 0
	err := retryer.Do(context.Background(), func(context.Context) error {
		attempts++
		return errors.NewError(errors.ErrCodeConnectionTimeout, "slow")
	})

	require.Error(t, err)
	assert.Equal(t, 2, attempts)
	assert.Contains(t, err.Error(), "max retry attempts (2) exceeded")
	assert.True(t, errors.HasCode(err, errors.ErrCodeConnectionTimeout))
}

func TestRetryer_ContextCancellation(t *testing.T) {
	config := fastConfig(5)
	config.InitialDelay = time.Second
	config.MaxDelay = time.Second
	retryer := New(config)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	attempts := 0
	err := retryer.Do(ctx, func(context.Context) error {
		attempts++
		return errors.NewError(errors.ErrCodeConnectionTimeout, "slow")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "canceled")
	assert.Equal(t, 1, attempts)
}

func TestRetryer_Backoff(t *testing.T) {
	retryer := New(Config{
		MaxAttempts:  5,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     30 * time.Millisecond,
		Multiplier:   2,
	})

	assert.Equal(t, 10*time.Millisecond, retryer.calculateDelay(1))
	assert.Equal(t, 20*time.Millisecond, retryer.calculateDelay(2))
	assert.Equal(t, 30*time.Millisecond, retryer.calculateDelay(3), "capped at MaxDelay")
}

func TestRetryer_OnRetryCallback(t *testing.T) {
	config := fastConfig(3)
	var seen []int
	config.OnRetry = func(attempt int, err error, delay time.Duration) {
		seen = append(seen, attempt)
	}
	retryer := New(config)

	_ = retryer.Do(context.Background(), func(context.Context) error {
		return errors.NewError(errors.ErrCodeConnectionTimeout, "slow")
	})

	assert.Equal(t, []int{1, 2}, seen)
}
