package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Backoff retries fn with exponential delay (base * 2^attempt) while it
// reports a rate-limit response. Attempts is the total call budget, not
// the retry count. Any other outcome is returned as-is.
type Backoff struct {
	Base     time.Duration
	Attempts int
}

// DefaultBackoff matches the upstream stream-parsing retry policy.
var DefaultBackoff = Backoff{Base: 500 * time.Millisecond, Attempts: 3}

// Do invokes fn until it succeeds, fails with a non-429 error, or the
// attempt budget runs out. fn must return the response status code it
// observed so rate limiting can be detected uniformly.
func (b Backoff) Do(ctx context.Context, fn func() (int, error)) error {
	attempts := b.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := b.Base * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		status, err := fn()
		if status == http.StatusTooManyRequests {
			lastErr = ErrRateLimited
			continue
		}
		return err
	}
	return errors.Wrapf(lastErr, "gave up after %d attempts", attempts)
}
