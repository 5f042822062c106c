// internal/worker/retry_test.go
package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	stderrors "applyflow/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_SucceedsOnLaterAttempt(t *testing.T) {
	policy := DefaultRetryPolicy(3, time.Millisecond)

	attempts := 0
	result, err := Retry(context.Background(), policy, func(ctx context.Context, attempt int) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("transient")
		}
		return "done", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.Equal(t, 3, attempts)
}

func TestRetry_ExhaustsAttemptsReturnsLastError(t *testing.T) {
	policy := DefaultRetryPolicy(3, time.Millisecond)

	attempts := 0
	_, err := Retry(context.Background(), policy, func(ctx context.Context, attempt int) (string, error) {
		attempts++
		return "", errors.New("attempt " + string(rune('0'+attempts)) + " failed")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, "attempt 3 failed", err.Error())
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	policy := DefaultRetryPolicy(3, time.Millisecond)

	attempts := 0
	_, err := Retry(context.Background(), policy, func(ctx context.Context, attempt int) (string, error) {
		attempts++
		return "", stderrors.NewUnsupportedPlatformError("MONSTER")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_ContextCancelDuringDelay(t *testing.T) {
	policy := DefaultRetryPolicy(3, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Retry(ctx, policy, func(ctx context.Context, attempt int) (string, error) {
		return "", errors.New("transient")
	})

	require.ErrorIs(t, err, context.Canceled)
}
