package utils

import (
	"context"
	"fmt"
	"time"
)

// Check reports whether an observable condition currently holds.
type Check func(ctx context.Context) (bool, error)

// PollOptions bounds a poll loop. Attempts and Timeout may both be set; the
// loop stops at whichever is reached first. With neither set the check runs once.
type PollOptions struct {
	Attempts int
	Timeout  time.Duration
	Interval time.Duration
}

// Poll performs action (which may be nil) and then evaluates check, repeating
// both until check is satisfied or the budget in opts runs out.
//
// Exhausting the budget is not an error: Poll returns (false, nil) and the
// caller decides whether that is fatal. A check that returns an error is
// treated as "not yet". The only error Poll returns is a cancelled context.
func Poll(ctx context.Context, opts PollOptions, action func(ctx context.Context) error, check Check) (bool, error) {
	start := time.Now()
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if action != nil {
			// action failures surface through the check
			_ = action(ctx)
		}
		ok, err := check(ctx)
		if err == nil && ok {
			return true, nil
		}
		if opts.Attempts > 0 && attempt >= opts.Attempts {
			return false, nil
		}
		if opts.Timeout > 0 && time.Since(start)+opts.Interval > opts.Timeout {
			return false, nil
		}
		if opts.Attempts <= 0 && opts.Timeout <= 0 {
			return false, nil
		}
		if err := Sleep(ctx, opts.Interval); err != nil {
			return false, err
		}
	}
}

// WaitUntil is Poll without an action.
func WaitUntil(ctx context.Context, opts PollOptions, check Check) (bool, error) {
	return Poll(ctx, opts, nil, check)
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RetryWithBackoff retries a function up to maxRetries times with quadratic backoff
func RetryWithBackoff(ctx context.Context, maxRetries int, fn func(ctx context.Context) error, logger *Logger) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * time.Second
			logger.Warn("Retrying (attempt %d/%d) after %v...", attempt+1, maxRetries, backoff)
			if err := Sleep(ctx, backoff); err != nil {
				return err
			}
		}
		if err := fn(ctx); err != nil {
			lastErr = err
			logger.Error("Attempt %d failed: %v", attempt+1, err)
			continue
		}
		return nil
	}
	return fmt.Errorf("all %d attempts failed, last error: %w", maxRetries, lastErr)
}
