package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(recorded *[]time.Duration) func(ctx context.Context, d time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*recorded = append(*recorded, d)
		return nil
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	}, Options{MaxAttempts: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	var delays []time.Duration
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, Options{
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		Exponential:    true,
		Sleep:          noSleep(&delays),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, delays)
}

func TestDo_ExhaustsBudget(t *testing.T) {
	var delays []time.Duration
	calls := 0
	transient := errors.New("transient")
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return transient
	}, Options{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		Sleep:          noSleep(&delays),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBudgetExhausted))
	assert.True(t, errors.Is(err, transient))
	assert.Equal(t, 3, calls)
	assert.Len(t, delays, 2)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	fatal := errors.New("authentication failed")
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return fatal
	}, Options{
		MaxAttempts: 3,
		IsRetryable: func(err error) bool { return !errors.Is(err, fatal) },
	})
	require.Error(t, err)
	assert.Equal(t, fatal, err)
	assert.Equal(t, 1, calls)
	assert.False(t, errors.Is(err, ErrBudgetExhausted))
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Do(ctx, func(ctx context.Context) error {
		calls++
		return errors.New("transient")
	}, Options{MaxAttempts: 3, InitialBackoff: time.Minute})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
}
