// internal/worker/retry.go
package worker

import (
	"context"
	"time"

	stderrors "applyflow/internal/common/errors"
)

// RetryPolicy drives the generic Retry combinator. Delay is fixed between
// attempts; IsRetryable decides whether a failure is worth another attempt.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	IsRetryable func(error) bool
}

// DefaultRetryPolicy builds the per-job apply policy from worker config.
func DefaultRetryPolicy(maxAttempts int, delay time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		Delay:       delay,
		IsRetryable: stderrors.IsRetryable,
	}
}

// Retry runs op until it succeeds, the policy is exhausted, or the context is
// cancelled. The last error is returned unwrapped so callers can report it
// verbatim.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := op(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if policy.IsRetryable != nil && !policy.IsRetryable(err) {
			break
		}
		if attempt == attempts {
			break
		}

		select {
		case <-time.After(policy.Delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, lastErr
}
