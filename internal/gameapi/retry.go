package gameapi

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy configures bounded local retries around a single operation.
type RetryPolicy struct {
	MaxAttempts int                                        // total attempts including the initial try
	Delay       time.Duration                              // fixed delay between retries (used if DelayFunc nil)
	ShouldRetry func(error) bool                           // predicate; if nil, all errors are retried
	DelayFunc   func(attempt int, err error) time.Duration // dynamic backoff; attempt is 1-based
}

// withRetry runs fn under the policy. Context cancellation always stops the
// loop immediately.
func withRetry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	if policy.MaxAttempts <= 1 {
		return fn(ctx)
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		// Don't delay after the last attempt.
		if attempt < policy.MaxAttempts {
			if policy.ShouldRetry != nil && !policy.ShouldRetry(lastErr) {
				return lastErr
			}
			var delay time.Duration
			if policy.DelayFunc != nil {
				delay = policy.DelayFunc(attempt, lastErr)
			} else {
				delay = policy.Delay
			}
			if delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				}
			}
		}
	}
	return lastErr
}

const (
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 5 * time.Second
)

// DefaultCreateRetryPolicy retries transport faults, rate limiting, and
// server errors with exponential backoff; client errors are not retried. A
// rate-limited attempt waits out the server-suggested cooldown instead.
func DefaultCreateRetryPolicy(retries int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: retries + 1,
		ShouldRetry: func(err error) bool {
			if err == nil {
				return false
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false
			}
			var apiErr *Error
			if errors.As(err, &apiErr) {
				switch apiErr.Kind {
				case KindTransport, KindRateLimited:
					return true
				case KindUnexpectedStatus:
					return apiErr.Status >= 500
				default:
					return false
				}
			}
			return true
		},
		DelayFunc: func(attempt int, err error) time.Duration {
			var apiErr *Error
			if errors.As(err, &apiErr) && apiErr.Kind == KindRateLimited && apiErr.RetryAfter > 0 {
				return apiErr.RetryAfter
			}
			delay := baseRetryDelay << (attempt - 1)
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			return delay
		},
	}
}
