// Package skiptimes fetches intro/outro intervals from an external
// skip-time service, keyed by MAL id and episode number. Lookups degrade
// gracefully: a failed or empty lookup returns nil, never an error the
// caller must branch on.
package skiptimes

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/viper"

	"github.com/kitsurai/anipipe/internal/config"
	"github.com/kitsurai/anipipe/internal/httpx"
	"github.com/kitsurai/anipipe/internal/models"
	"github.com/kitsurai/anipipe/internal/util"
)

// Synthetic fallback interval: a statistically typical opening placement
// used only when enabled via config. Callers must treat it as a
// low-confidence estimate.
const (
	syntheticIntroStart = 85.0
	syntheticIntroEnd   = 175.0
)

// Client queries the skip-time service.
type Client struct {
	client  *http.Client
	baseURL string
}

// New creates a skip-time client using the fast shared HTTP client.
func New() *Client {
	return &Client{
		client:  util.GetFastClient(),
		baseURL: viper.GetString(config.KeySkipTimesBase),
	}
}

// NewWithBase creates a client against a specific base URL.
func NewWithBase(client *http.Client, baseURL string) *Client {
	return &Client{client: client, baseURL: baseURL}
}

// apiResponse maps the skip-time service payload.
type apiResponse struct {
	Found   bool `json:"found"`
	Results []struct {
		Interval struct {
			StartTime float64 `json:"start_time"`
			EndTime   float64 `json:"end_time"`
		} `json:"interval"`
		SkipType string `json:"skip_type"`
	} `json:"results"`
}

// Get returns measured intro/outro timings for an episode, or nil when
// the service has none (or is unreachable).
func (c *Client) Get(ctx context.Context, malID, episode int) *models.VideoTimings {
	if malID <= 0 {
		return nil
	}

	lookupURL := fmt.Sprintf("%s/v1/skip-times/%d/%d?types=op&types=ed", c.baseURL, malID, episode)

	var resp apiResponse
	if _, err := httpx.GetJSON(ctx, c.client, lookupURL, nil, &resp); err != nil {
		util.Debug("skip-time lookup failed", "malID", malID, "episode", episode, "error", err)
		return nil
	}
	if !resp.Found || len(resp.Results) == 0 {
		return nil
	}

	timings := &models.VideoTimings{}
	for _, result := range resp.Results {
		interval := models.Interval{
			Start: result.Interval.StartTime,
			End:   result.Interval.EndTime,
		}
		if !interval.Valid() {
			continue
		}
		switch result.SkipType {
		case "op":
			timings.Intro = &interval
		case "ed":
			timings.Outro = &interval
		}
	}

	if timings.Intro == nil && timings.Outro == nil {
		return nil
	}
	return timings
}

// GetOrSynthetic returns measured timings when available and, if the
// synthetic fallback is enabled, a typical-episode estimate otherwise.
func (c *Client) GetOrSynthetic(ctx context.Context, malID, episode int) *models.VideoTimings {
	if timings := c.Get(ctx, malID, episode); timings != nil {
		return timings
	}
	if !viper.GetBool(config.KeySyntheticTimings) {
		return nil
	}
	return &models.VideoTimings{
		Intro:     &models.Interval{Start: syntheticIntroStart, End: syntheticIntroEnd},
		Synthetic: true,
	}
}
