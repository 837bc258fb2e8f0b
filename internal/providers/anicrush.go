package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/kitsurai/anipipe/internal/config"
	"github.com/kitsurai/anipipe/internal/httpx"
	"github.com/kitsurai/anipipe/internal/models"
	"github.com/kitsurai/anipipe/internal/util"
)

// AniCrush adapts the API-key-gated upstream. It owns two retry
// policies: 401 rotates to the next configured key (each key tried at
// most once per request), 429 backs off exponentially before surfacing
// a distinct rate-limited failure.
type AniCrush struct {
	client    *http.Client
	baseURL   string
	ring      *httpx.KeyRing
	backoff   httpx.Backoff
	userAgent string
}

// NewAniCrush creates the adapter with the configured key ring.
func NewAniCrush() *AniCrush {
	return &AniCrush{
		client:    util.GetSharedClient(),
		baseURL:   viper.GetString(config.KeyAniCrushBase),
		ring:      httpx.NewKeyRing(viper.GetStringSlice(config.KeyAniCrushKeys)),
		backoff:   httpx.DefaultBackoff,
		userAgent: viper.GetString(config.KeyUserAgent),
	}
}

// NewAniCrushWithBase creates the adapter against a specific base URL
// and key set. Test hook.
func NewAniCrushWithBase(client *http.Client, baseURL string, keys []string, backoff httpx.Backoff) *AniCrush {
	return &AniCrush{
		client:    client,
		baseURL:   baseURL,
		ring:      httpx.NewKeyRing(keys),
		backoff:   backoff,
		userAgent: viper.GetString(config.KeyUserAgent),
	}
}

func (a *AniCrush) ID() models.ProviderID {
	return models.ProviderAniCrush
}

func (a *AniCrush) headers() map[string]string {
	h := map[string]string{
		"Referer":    a.baseURL + "/",
		"User-Agent": a.userAgent,
	}
	if key := a.ring.Current(); key != "" {
		h["x-api-key"] = key
	}
	return h
}

// getJSON performs a GET under both retry policies: within one key,
// 429s are retried with exponential backoff; a 401 rotates to the next
// key. Every configured key is tried at most once before failing.
func (a *AniCrush) getJSON(ctx context.Context, rawURL string, out any) error {
	attempts := a.ring.Len()
	if attempts == 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		var status int
		err := a.backoff.Do(ctx, func() (int, error) {
			var callErr error
			status, callErr = httpx.GetJSON(ctx, a.client, rawURL, a.headers(), out)
			return status, callErr
		})

		if status == http.StatusUnauthorized {
			util.Debug("anicrush key rejected, rotating", "attempt", i+1)
			a.ring.Advance()
			lastErr = httpx.ErrAuth
			continue
		}
		return err
	}
	return lastErr
}

type crushListEnvelope struct {
	Status bool `json:"status"`
	Result struct {
		Movies []struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			Poster string `json:"poster"`
		} `json:"movies"`
	} `json:"result"`
}

// SearchAnime probes the movie list endpoint. Failures yield an empty
// list, never a crash.
func (a *AniCrush) SearchAnime(ctx context.Context, query string) []models.AnimeSummary {
	searchURL := fmt.Sprintf("%s/shared/v2/movie/list?keyword=%s&page=1&limit=24", a.baseURL, url.QueryEscape(query))

	var env crushListEnvelope
	if err := a.getJSON(ctx, searchURL, &env); err != nil {
		util.Debug("anicrush search failed", "query", query, "error", err)
		return nil
	}

	summaries := make([]models.AnimeSummary, 0, len(env.Result.Movies))
	for _, m := range env.Result.Movies {
		if m.ID == "" || m.Name == "" {
			continue
		}
		summaries = append(summaries, models.AnimeSummary{
			ID:       m.ID,
			Title:    m.Name,
			ImageURL: m.Poster,
		})
	}
	return summaries
}

type crushEpisodeEnvelope struct {
	Status bool `json:"status"`
	Result map[string][]struct {
		ID       int    `json:"id"`
		Number   int    `json:"number"`
		Title    string `json:"name"`
		IsFiller bool   `json:"is_filler"`
	} `json:"result"`
}

// GetEpisodes lists episodes. The upstream groups them in range buckets
// ("1-100", "101-200"); all buckets are flattened.
func (a *AniCrush) GetEpisodes(ctx context.Context, id string) ([]models.Episode, error) {
	listURL := fmt.Sprintf("%s/shared/v2/episode/list?_movieId=%s", a.baseURL, url.QueryEscape(id))

	var env crushEpisodeEnvelope
	if err := a.getJSON(ctx, listURL, &env); err != nil {
		return nil, errors.Wrap(err, "episode list fetch failed")
	}

	var episodes []models.Episode
	for _, bucket := range env.Result {
		for _, e := range bucket {
			episodes = append(episodes, models.Episode{
				ID:       fmt.Sprintf("%d", e.ID),
				Number:   e.Number,
				Title:    e.Title,
				IsFiller: e.IsFiller,
			})
		}
	}
	return episodes, nil
}

type crushSourcesEnvelope struct {
	Status bool `json:"status"`
	Result struct {
		Sources []struct {
			File string `json:"file"`
			Type string `json:"type"`
		} `json:"sources"`
		Tracks []struct {
			File  string `json:"file"`
			Label string `json:"label"`
			Kind  string `json:"kind"`
		} `json:"tracks"`
		Intro *models.Interval `json:"intro"`
		Outro *models.Interval `json:"outro"`
	} `json:"result"`
}

// GetWatchData resolves the movie id by search and fetches sources for
// the requested track.
func (a *AniCrush) GetWatchData(ctx context.Context, ref models.EpisodeContext, track models.AudioTrack) (*models.WatchResponse, error) {
	if ref.Title == "" {
		return nil, errors.Wrap(ErrUnsupported, "anicrush needs a title")
	}

	results := a.SearchAnime(ctx, ref.Title)
	if len(results) == 0 {
		return nil, errors.Errorf("no match for %q", ref.Title)
	}
	movieID := results[0].ID

	sourcesURL := fmt.Sprintf("%s/shared/v2/episode/sources?_movieId=%s&ep=%d&sv=4&sc=%s",
		a.baseURL, url.QueryEscape(movieID), ref.Episode, track)

	var env crushSourcesEnvelope
	if err := a.getJSON(ctx, sourcesURL, &env); err != nil {
		return nil, errors.Wrap(err, "sources fetch failed")
	}

	var sources []models.Source
	for _, s := range env.Result.Sources {
		sources = append(sources, models.Source{
			URL:     s.File,
			Quality: "auto",
			Type:    track,
			Headers: a.streamHeaders(),
			IsM3U8:  s.Type == "hls" || models.IsHLSURL(s.File),
			Name:    string(models.ProviderAniCrush),
		})
	}
	sources = models.NormalizeSources(sources)
	if len(sources) == 0 {
		return nil, errors.Wrapf(ErrNoSources, "no %s streams", track)
	}

	var subtitles []models.Subtitle
	for _, t := range env.Result.Tracks {
		if t.Kind != "" && t.Kind != "captions" && t.Kind != "subtitles" {
			continue
		}
		subtitles = append(subtitles, models.Subtitle{URL: t.File, Lang: t.Label})
	}

	resp := &models.WatchResponse{
		Sources:   sources,
		Subtitles: models.NormalizeSubtitles(subtitles),
		Headers:   a.streamHeaders(),
	}
	if validInterval(env.Result.Intro) || validInterval(env.Result.Outro) {
		timings := &models.VideoTimings{}
		if validInterval(env.Result.Intro) {
			timings.Intro = env.Result.Intro
		}
		if validInterval(env.Result.Outro) {
			timings.Outro = env.Result.Outro
		}
		resp.Timings = timings
	}
	return resp, nil
}

// streamHeaders are the headers a player needs to fetch the stream.
// The API key must not leak into player requests.
func (a *AniCrush) streamHeaders() map[string]string {
	return map[string]string{
		"Referer":    a.baseURL + "/",
		"User-Agent": a.userAgent,
	}
}

type crushServersEnvelope struct {
	Status bool `json:"status"`
	Result []struct {
		Type string `json:"type"`
	} `json:"result"`
}

// CheckEpisodeAvailability asks the server-list endpoint which track
// types exist for the episode. Fail-open on any failure.
func (a *AniCrush) CheckEpisodeAvailability(ctx context.Context, ref models.EpisodeContext) models.Availability {
	if ref.Title == "" {
		return failOpen
	}

	results := a.SearchAnime(ctx, ref.Title)
	if len(results) == 0 {
		return failOpen
	}

	serversURL := fmt.Sprintf("%s/shared/v2/episode/servers?_movieId=%s&ep=%d",
		a.baseURL, url.QueryEscape(results[0].ID), ref.Episode)

	var env crushServersEnvelope
	if err := a.getJSON(ctx, serversURL, &env); err != nil {
		return failOpen
	}

	var avail models.Availability
	for _, s := range env.Result {
		switch models.AudioTrack(s.Type) {
		case models.TrackSub:
			avail.Sub = true
		case models.TrackDub:
			avail.Dub = true
		}
	}
	return avail
}
