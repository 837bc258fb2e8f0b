package httpx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// GetJSON performs a GET with the given headers and decodes the body into
// out. Status codes >= 500 are transport failures; anything below is
// "got a response, inspect body" and only fails on a decode error. The
// observed status code is always returned for retry/rotation policies.
func GetJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create request")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "failed to make request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return resp.StatusCode, errors.Errorf("server returned: %s", resp.Status)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusTooManyRequests {
		// Drain so the connection can be reused by the retry.
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, errors.Errorf("server returned: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, errors.Wrap(err, "failed to read response")
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, errors.Wrap(err, "failed to parse response")
		}
	}
	return resp.StatusCode, nil
}
