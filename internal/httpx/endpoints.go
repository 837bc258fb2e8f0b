package httpx

import (
	"context"

	"github.com/pkg/errors"
)

// TryEndpoints calls fn with each base URL in order until one succeeds.
// A failure on one candidate is non-fatal; the whole operation fails only
// when every candidate has failed. This is the same fallback pattern as
// provider selection, applied to network reachability.
func TryEndpoints[T any](ctx context.Context, bases []string, fn func(ctx context.Context, base string) (T, error)) (T, error) {
	var zero T
	if len(bases) == 0 {
		return zero, errors.Wrap(ErrAllEndpointsFailed, "no endpoints configured")
	}

	var lastErr error
	for _, base := range bases {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		out, err := fn(ctx, base)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return zero, errors.Wrapf(ErrAllEndpointsFailed, "last error: %v", lastErr)
}
