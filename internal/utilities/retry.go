package utilities

import (
	"context"
	"time"
)

// RetryWithBackoff calls fn until it succeeds, maxRetry attempts are used up,
// or ctx is done. The backoff doubles after each failure, capped at maxBackoff.
// It returns the last error from fn, or ctx.Err() if ctx ended first.
func RetryWithBackoff(ctx context.Context, fn func(ctx context.Context) error, maxRetry int, startBackoff, maxBackoff time.Duration) error {
	if maxRetry <= 0 {
		maxRetry = 1
	}
	backoff := startBackoff
	var err error
	for attempt := 0; attempt < maxRetry; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == maxRetry-1 {
			break
		}
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		if backoff < maxBackoff {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
	return err
}
