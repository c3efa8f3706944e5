package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollSucceedsAfterActions(t *testing.T) {
	actions := 0
	ok, err := Poll(context.Background(), PollOptions{Attempts: 10, Interval: time.Millisecond},
		func(ctx context.Context) error {
			actions++
			return nil
		},
		func(ctx context.Context) (bool, error) {
			return actions >= 3, nil
		})

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, actions)
}

func TestPollExhaustionIsNotAnError(t *testing.T) {
	checks := 0
	ok, err := WaitUntil(context.Background(), PollOptions{Attempts: 4, Interval: time.Millisecond},
		func(ctx context.Context) (bool, error) {
			checks++
			return false, nil
		})

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 4, checks)
}

func TestPollTreatsCheckErrorsAsNotYet(t *testing.T) {
	calls := 0
	ok, err := WaitUntil(context.Background(), PollOptions{Attempts: 5, Interval: time.Millisecond},
		func(ctx context.Context) (bool, error) {
			calls++
			if calls < 3 {
				return false, errors.New("node not found")
			}
			return true, nil
		})

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, calls)
}

func TestPollTimeoutBound(t *testing.T) {
	start := time.Now()
	ok, err := WaitUntil(context.Background(), PollOptions{Timeout: 30 * time.Millisecond, Interval: 5 * time.Millisecond},
		func(ctx context.Context) (bool, error) { return false, nil })

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPollWithoutBudgetChecksOnce(t *testing.T) {
	calls := 0
	ok, err := WaitUntil(context.Background(), PollOptions{}, func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, calls)
}

func TestPollReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := WaitUntil(ctx, PollOptions{Attempts: 3}, func(ctx context.Context) (bool, error) { return true, nil })
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithBackoffStopsOnSuccess(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), 3, func(ctx context.Context) error {
		calls++
		return nil
	}, NewDiscardLogger())

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestKeySet(t *testing.T) {
	s := NewKeySet()
	assert.True(t, s.Add("a", "b"))
	assert.False(t, s.Add("a", "b"))
	assert.True(t, s.Add("ab", ""))
	assert.Equal(t, 2, s.Count())
}
