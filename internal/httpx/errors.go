// Package httpx provides the small HTTP building blocks shared by every
// upstream client: sentinel errors, 429 backoff, API-key rotation and
// ordered endpoint fallback.
package httpx

import "github.com/pkg/errors"

var (
	// ErrRateLimited is returned when an upstream kept answering 429
	// after the retry budget was exhausted.
	ErrRateLimited = errors.New("upstream rate limited")

	// ErrAuth is returned when every configured API key was rejected.
	ErrAuth = errors.New("upstream rejected all credentials")

	// ErrAllEndpointsFailed is returned by TryEndpoints when no
	// candidate endpoint produced a usable response.
	ErrAllEndpointsFailed = errors.New("all candidate endpoints failed")
)
