package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/kitsurai/anipipe/internal/config"
	"github.com/kitsurai/anipipe/internal/httpx"
	"github.com/kitsurai/anipipe/internal/models"
	"github.com/kitsurai/anipipe/internal/util"
)

// AniWave adapts the newer JSON upstream. It is keyed directly by
// AniList id, so it needs no search round trip for watch data, but it
// cannot serve requests that carry only a title.
type AniWave struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

// NewAniWave creates the adapter with the shared HTTP client.
func NewAniWave() *AniWave {
	return &AniWave{
		client:    util.GetSharedClient(),
		baseURL:   viper.GetString(config.KeyAniWaveBase),
		userAgent: viper.GetString(config.KeyUserAgent),
	}
}

// NewAniWaveWithBase creates the adapter against a specific base URL.
func NewAniWaveWithBase(client *http.Client, baseURL string) *AniWave {
	return &AniWave{
		client:    client,
		baseURL:   baseURL,
		userAgent: viper.GetString(config.KeyUserAgent),
	}
}

func (w *AniWave) ID() models.ProviderID {
	return models.ProviderAniWave
}

func (w *AniWave) headers() map[string]string {
	return map[string]string{
		"Referer":    w.baseURL + "/",
		"Origin":     w.baseURL,
		"User-Agent": w.userAgent,
	}
}

// SearchAnime probes the search endpoint; empty list on any failure.
func (w *AniWave) SearchAnime(ctx context.Context, query string) []models.AnimeSummary {
	searchURL := fmt.Sprintf("%s/api/search?q=%s", w.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil
	}
	for k, v := range w.headers() {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		util.Debug("aniwave search failed", "query", query, "error", err)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}
	return ParseSummaryEnvelope(body)
}

// GetEpisodes: this upstream exposes no listing endpoint by design.
// The caller falls back to its external episode-metadata source.
func (w *AniWave) GetEpisodes(ctx context.Context, id string) ([]models.Episode, error) {
	return nil, nil
}

type waveSourcesEnvelope struct {
	Sources []struct {
		URL     string `json:"url"`
		Quality string `json:"quality"`
		DubType string `json:"dubType"`
		Server  string `json:"server"`
		HLS     bool   `json:"hls"`
	} `json:"sources"`
	Subtitles []struct {
		URL  string `json:"url"`
		Lang string `json:"lang"`
	} `json:"subtitles"`
}

// GetWatchData fetches the raw per-episode stream list and filters it by
// the dubType tag. Untagged entries are subbed; only explicit "DUB"
// entries serve dub requests.
func (w *AniWave) GetWatchData(ctx context.Context, ref models.EpisodeContext, track models.AudioTrack) (*models.WatchResponse, error) {
	if ref.AnilistID <= 0 {
		return nil, errors.Wrap(ErrUnsupported, "aniwave needs an anilist id")
	}

	sourcesURL := fmt.Sprintf("%s/api/source/%d/%d", w.baseURL, ref.AnilistID, ref.Episode)

	var env waveSourcesEnvelope
	if _, err := httpx.GetJSON(ctx, w.client, sourcesURL, w.headers(), &env); err != nil {
		return nil, errors.Wrap(err, "sources fetch failed")
	}

	var sources []models.Source
	for _, s := range env.Sources {
		isDub := strings.EqualFold(s.DubType, "dub")
		if (track == models.TrackDub) != isDub {
			continue
		}
		sources = append(sources, models.Source{
			URL:     s.URL,
			Quality: s.Quality,
			Type:    track,
			Headers: w.headers(),
			IsM3U8:  s.HLS || models.IsHLSURL(s.URL),
			Name:    s.Server,
		})
	}
	sources = models.NormalizeSources(sources)
	if len(sources) == 0 {
		return nil, errors.Wrapf(ErrNoSources, "no %s streams for anilist %d", track, ref.AnilistID)
	}

	var subtitles []models.Subtitle
	for _, s := range env.Subtitles {
		subtitles = append(subtitles, models.Subtitle{URL: s.URL, Lang: s.Lang})
	}

	return &models.WatchResponse{
		Sources:   sources,
		Subtitles: models.NormalizeSubtitles(subtitles),
		Headers:   w.headers(),
	}, nil
}

type waveAvailEnvelope struct {
	Sub bool `json:"sub"`
	Dub bool `json:"dub"`
}

// CheckEpisodeAvailability hits the lightweight availability endpoint.
// Fail-open on failure or missing precondition.
func (w *AniWave) CheckEpisodeAvailability(ctx context.Context, ref models.EpisodeContext) models.Availability {
	if ref.AnilistID <= 0 {
		return failOpen
	}

	availURL := fmt.Sprintf("%s/api/avail/%d/%d", w.baseURL, ref.AnilistID, ref.Episode)

	var env waveAvailEnvelope
	if _, err := httpx.GetJSON(ctx, w.client, availURL, w.headers(), &env); err != nil {
		return failOpen
	}
	return models.Availability{Sub: env.Sub, Dub: env.Dub}
}
