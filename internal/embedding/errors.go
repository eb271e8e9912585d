package embedding

import (
	"errors"
	"fmt"
)

// ErrAuth reports an authentication failure (401 or equivalent);
// terminal, never retried.
var ErrAuth = errors.New("embedding: authentication failed")

// ErrInvalidModel reports that the configured model name was rejected
// by the provider; terminal, never retried.
var ErrInvalidModel = errors.New("embedding: invalid model")

// ErrUnavailable reports a provider-signaled unavailability (503 or
// equivalent); retryable.
var ErrUnavailable = errors.New("embedding: provider unavailable")

// ErrTimeout reports a request timeout (408/504 or transport
// deadline); retryable.
var ErrTimeout = errors.New("embedding: request timed out")

// RateLimitError reports a 429 response, carrying the server's
// requested backoff when present.
type RateLimitError struct {
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	if e.RetryAfterSeconds > 0 {
		return fmt.Sprintf("embedding: rate limited, retry after %ds", e.RetryAfterSeconds)
	}
	return "embedding: rate limited"
}

// isTerminal reports whether err should never be retried: auth and
// invalid-model failures are permanent (spec §4.10).
func isTerminal(err error) bool {
	return errors.Is(err, ErrAuth) || errors.Is(err, ErrInvalidModel)
}
