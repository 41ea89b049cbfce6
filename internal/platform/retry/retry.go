package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrBudgetExhausted wraps the last attempt error once MaxAttempts is reached.
var ErrBudgetExhausted = errors.New("retry budget exhausted")

// Options controls a retry loop.
type Options struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// InitialBackoff is the delay after the first failed attempt. When
	// Exponential is set the delay doubles after each subsequent failure.
	InitialBackoff time.Duration
	Exponential    bool
	// IsRetryable classifies errors. A nil IsRetryable retries everything.
	// Non-retryable errors are returned immediately without consuming the
	// remaining attempts.
	IsRetryable func(error) bool
	// Sleep is overridable for tests; defaults to a context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do runs operation until it succeeds, a non-retryable error occurs, the
// context is done, or MaxAttempts is exhausted.
func Do(ctx context.Context, operation func(ctx context.Context) error, opts Options) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}

	backoff := opts.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		lastErr = operation(ctx)
		if lastErr == nil {
			return nil
		}
		if opts.IsRetryable != nil && !opts.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == opts.MaxAttempts {
			break
		}
		if backoff > 0 {
			if err := opts.Sleep(ctx, backoff); err != nil {
				return err
			}
			if opts.Exponential {
				backoff *= 2
			}
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrBudgetExhausted, opts.MaxAttempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
