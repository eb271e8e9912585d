package embedding

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// RetryConfig configures the shared backoff policy used by every
// remote provider implementation (spec §4.10): base 500ms, doubling,
// capped by MaxRetries.
type RetryConfig struct {
	BaseDelay  time.Duration
	MaxRetries int
}

// DefaultRetryConfig matches the spec's stated defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{BaseDelay: 500 * time.Millisecond, MaxRetries: 3}
}

func (c RetryConfig) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.BaseDelay
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0 // bounded by MaxRetries via WithMaxRetries below
	return backoff.WithMaxRetries(bo, uint64(c.MaxRetries))
}

// withRetry runs op under the shared backoff policy, honoring ctx
// cancellation. Terminal errors (auth, invalid model) stop retrying
// immediately; everything else is retried until MaxRetries is
// exhausted.
func withRetry(ctx context.Context, cfg RetryConfig, op func(ctx context.Context) error) error {
	return backoff.Retry(func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if isTerminal(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(cfg.newBackOff(), ctx))
}

// Limiter is a token-bucket throttle applied across every outbound
// call a provider makes, including retries (spec §4.10).
type Limiter struct {
	rl *rate.Limiter
}

// NewLimiter returns a Limiter allowing rps requests per second,
// bursting up to rps.
func NewLimiter(rps float64) *Limiter {
	if rps <= 0 {
		rps = 10
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Limiter{rl: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a token is available or ctx is canceled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.rl.Wait(ctx)
}
