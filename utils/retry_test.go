package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	err := RetryPolicy{MaxAttempts: 3}.Do(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryRecoversWithinBudget(t *testing.T) {
	calls := 0
	err := RetryPolicy{MaxAttempts: 3}.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryReturnsLastError(t *testing.T) {
	calls := 0
	last := errors.New("still broken")
	err := RetryPolicy{MaxAttempts: 2}.Do(context.Background(), func() error {
		calls++
		return last
	})
	assert.ErrorIs(t, err, last)
	assert.Equal(t, 2, calls)
}

func TestRetryStopShortCircuits(t *testing.T) {
	calls := 0
	fatal := errors.New("fatal")
	policy := RetryPolicy{
		MaxAttempts: 5,
		Stop:        func(err error) bool { return errors.Is(err, fatal) },
	}
	err := policy.Do(context.Background(), func() error {
		calls++
		return fatal
	})
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestRetryZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := RetryPolicy{}.Do(context.Background(), func() error {
		calls++
		return errors.New("nope")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryHonorsContextDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryPolicy{MaxAttempts: 3, Backoff: time.Hour}.Do(ctx, func() error {
		calls++
		return errors.New("flaky")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
