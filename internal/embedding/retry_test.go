package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithRetryStopsOnTerminalError(t *testing.T) {
	var calls int
	err := withRetry(context.Background(), RetryConfig{BaseDelay: 0, MaxRetries: 3}, func(context.Context) error {
		calls++
		return ErrAuth
	})
	require.ErrorIs(t, err, ErrAuth)
	require.Equal(t, 1, calls)
}

func TestWithRetryRetriesTransientErrors(t *testing.T) {
	var calls int
	err := withRetry(context.Background(), RetryConfig{BaseDelay: 0, MaxRetries: 5}, func(context.Context) error {
		calls++
		if calls < 3 {
			return ErrTimeout
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestWithRetryExhaustsMaxRetries(t *testing.T) {
	var calls int
	err := withRetry(context.Background(), RetryConfig{BaseDelay: 0, MaxRetries: 2}, func(context.Context) error {
		calls++
		return ErrUnavailable
	})
	require.Error(t, err)
	require.Equal(t, 3, calls) // initial attempt + 2 retries
}

func TestLimiterWaitRespectsContextCancellation(t *testing.T) {
	l := NewLimiter(0.001) // effectively one token available immediately, then a long wait
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Wait(ctx)
	require.True(t, errors.Is(err, context.Canceled) || err == nil)
}

func TestNilLimiterWaitIsNoop(t *testing.T) {
	var l *Limiter
	require.NoError(t, l.Wait(context.Background()))
}
