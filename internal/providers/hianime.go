package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/kitsurai/anipipe/internal/config"
	"github.com/kitsurai/anipipe/internal/httpx"
	"github.com/kitsurai/anipipe/internal/models"
	"github.com/kitsurai/anipipe/internal/resolver"
	"github.com/kitsurai/anipipe/internal/util"
)

const (
	// maxServersPerRequest bounds latency and rate-limit exposure; the
	// first working server wins, the rest are never touched.
	maxServersPerRequest = 2

	// interServerDelay is inserted between sequential per-server
	// fetches. Omitting it measurably increases 429 failures upstream.
	interServerDelay = 1 * time.Second
)

// HiAnime adapts the HiAnime-style upstream: episode and server listings
// arrive as HTML fragments embedded in JSON envelopes, and each server
// resolves to an embed page that carries the actual manifest URL and
// subtitle tracks.
type HiAnime struct {
	client    *http.Client
	baseURL   string
	userAgent string
	resolver  *resolver.Client
	delay     time.Duration
}

// NewHiAnime creates the adapter with the shared HTTP client and the
// configured base URL.
func NewHiAnime(res *resolver.Client) *HiAnime {
	return &HiAnime{
		client:    util.GetSharedClient(),
		baseURL:   viper.GetString(config.KeyHiAnimeBase),
		userAgent: viper.GetString(config.KeyUserAgent),
		resolver:  res,
		delay:     interServerDelay,
	}
}

// NewHiAnimeWithBase creates the adapter against a specific base URL.
// Test hook; the inter-server delay can be shortened here too.
func NewHiAnimeWithBase(client *http.Client, baseURL string, res *resolver.Client, delay time.Duration) *HiAnime {
	return &HiAnime{
		client:    client,
		baseURL:   baseURL,
		userAgent: viper.GetString(config.KeyUserAgent),
		resolver:  res,
		delay:     delay,
	}
}

func (h *HiAnime) ID() models.ProviderID {
	return models.ProviderHiAnime
}

func (h *HiAnime) headers() map[string]string {
	return map[string]string{
		"Referer":    h.baseURL + "/",
		"User-Agent": h.userAgent,
	}
}

// SearchAnime performs a free-text search. Any failure yields an empty
// list so probing callers never crash.
func (h *HiAnime) SearchAnime(ctx context.Context, query string) []models.AnimeSummary {
	searchURL := fmt.Sprintf("%s/api/search?keyword=%s", h.baseURL, url.QueryEscape(query))

	body, err := h.getBody(ctx, searchURL)
	if err != nil {
		util.Debug("hianime search failed", "query", query, "error", err)
		return nil
	}
	return ParseSummaryEnvelope(body)
}

type fragmentEnvelope struct {
	Status bool   `json:"status"`
	HTML   string `json:"html"`
}

// GetEpisodes lists episodes from the ajax episode-list fragment.
func (h *HiAnime) GetEpisodes(ctx context.Context, id string) ([]models.Episode, error) {
	numericID := slugNumericID(id)
	if numericID == "" {
		return nil, errors.Wrap(ErrUnsupported, "hianime needs a canonical slug")
	}

	listURL := fmt.Sprintf("%s/ajax/v2/episode/list/%s", h.baseURL, numericID)

	var env fragmentEnvelope
	if _, err := httpx.GetJSON(ctx, h.client, listURL, h.headers(), &env); err != nil {
		return nil, errors.Wrap(err, "episode list fetch failed")
	}
	return parseEpisodeFragment(env.HTML)
}

// GetWatchData resolves the slug, finds the episode id, enumerates
// servers for the requested track and fetches per-server streams until
// one yields playable sources.
func (h *HiAnime) GetWatchData(ctx context.Context, ref models.EpisodeContext, track models.AudioTrack) (*models.WatchResponse, error) {
	slug, err := h.resolveSlug(ctx, ref)
	if err != nil {
		return nil, err
	}

	episodes, err := h.GetEpisodes(ctx, slug)
	if err != nil {
		return nil, err
	}

	var episodeID string
	for _, ep := range episodes {
		if ep.Number == ref.Episode {
			episodeID = ep.ID
			break
		}
	}
	if episodeID == "" {
		return nil, errors.Errorf("episode %d not found for %s", ref.Episode, slug)
	}

	servers, err := h.listServers(ctx, episodeID)
	if err != nil {
		return nil, err
	}

	candidates := filterServers(servers, track)
	if len(candidates) == 0 {
		return nil, errors.Wrapf(ErrNoSources, "no %s servers for episode %d", track, ref.Episode)
	}
	if len(candidates) > maxServersPerRequest {
		candidates = candidates[:maxServersPerRequest]
	}

	var lastErr error
	for i, srv := range candidates {
		if i > 0 {
			select {
			case <-time.After(h.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := h.fetchServerStreams(ctx, srv, track)
		if err != nil {
			util.Debug("hianime server failed", "server", srv.Name, "error", err)
			lastErr = err
			continue
		}
		if len(resp.Sources) > 0 {
			return resp, nil
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNoSources
}

// CheckEpisodeAvailability probes the server listing only. Fail-open:
// a broken probe must never block a playback attempt.
func (h *HiAnime) CheckEpisodeAvailability(ctx context.Context, ref models.EpisodeContext) models.Availability {
	slug, err := h.resolveSlug(ctx, ref)
	if err != nil {
		return failOpen
	}
	episodes, err := h.GetEpisodes(ctx, slug)
	if err != nil {
		return failOpen
	}

	var episodeID string
	for _, ep := range episodes {
		if ep.Number == ref.Episode {
			episodeID = ep.ID
			break
		}
	}
	if episodeID == "" {
		return models.Availability{}
	}

	servers, err := h.listServers(ctx, episodeID)
	if err != nil {
		return failOpen
	}

	var avail models.Availability
	for _, srv := range servers {
		switch srv.Track {
		case models.TrackSub:
			avail.Sub = true
		case models.TrackDub:
			avail.Dub = true
		}
	}
	return avail
}

func (h *HiAnime) resolveSlug(ctx context.Context, ref models.EpisodeContext) (string, error) {
	if ref.Title == "" && ref.AnilistID <= 0 {
		return "", errors.Wrap(ErrUnsupported, "hianime needs a title or anilist id")
	}

	if ref.AnilistID > 0 {
		slug, err := h.resolver.ResolveAnilist(ctx, ref.AnilistID)
		if err == nil && slug != "" {
			return slug, nil
		}
	}

	slug, err := h.resolver.Resolve(ctx, ref.Title)
	if err != nil {
		return "", errors.Wrap(err, "slug resolution failed")
	}
	if slug != "" {
		return slug, nil
	}

	// Resolver has no mapping: fall back to this adapter's own search.
	results := h.SearchAnime(ctx, ref.Title)
	if len(results) == 0 {
		return "", errors.Errorf("no match for %q", ref.Title)
	}
	return results[0].ID, nil
}

// server is one playable-server entry from the listing fragment.
type server struct {
	ID    string
	Name  string
	Track models.AudioTrack
}

func (h *HiAnime) listServers(ctx context.Context, episodeID string) ([]server, error) {
	serversURL := fmt.Sprintf("%s/ajax/v2/episode/servers?episodeId=%s", h.baseURL, url.QueryEscape(episodeID))

	var env fragmentEnvelope
	if _, err := httpx.GetJSON(ctx, h.client, serversURL, h.headers(), &env); err != nil {
		return nil, errors.Wrap(err, "server list fetch failed")
	}
	return parseServerFragment(env.HTML)
}

// filterServers keeps servers for the requested track, ordered by the
// numeric suffix of their display name (HD-1 before HD-2).
func filterServers(servers []server, track models.AudioTrack) []server {
	var out []server
	for _, s := range servers {
		if s.Track == track {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return serverRank(out[i].Name) < serverRank(out[j].Name)
	})
	return out
}

type sourceLinkEnvelope struct {
	Type string `json:"type"`
	Link string `json:"link"`
}

type embedSourcesEnvelope struct {
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
}

// fetchServerStreams fetches the playable link for one server, then
// parses the embed host's sources payload for the manifest URL, subtitle
// tracks and intro/outro timings.
func (h *HiAnime) fetchServerStreams(ctx context.Context, srv server, track models.AudioTrack) (*models.WatchResponse, error) {
	linkURL := fmt.Sprintf("%s/ajax/v2/episode/sources?id=%s", h.baseURL, url.QueryEscape(srv.ID))

	var link sourceLinkEnvelope
	if _, err := httpx.GetJSON(ctx, h.client, linkURL, h.headers(), &link); err != nil {
		return nil, errors.Wrap(err, "server link fetch failed")
	}
	if link.Link == "" {
		return nil, errors.Errorf("server %s returned no link", srv.Name)
	}

	sourcesURL, embedHeaders, err := embedSourcesURL(link.Link, h.userAgent)
	if err != nil {
		return nil, err
	}

	var embed embedSourcesEnvelope
	if _, err := httpx.GetJSON(ctx, h.client, sourcesURL, embedHeaders, &embed); err != nil {
		return nil, errors.Wrap(err, "embed sources fetch failed")
	}

	var sources []models.Source
	for _, s := range embed.Sources {
		sources = append(sources, models.Source{
			URL:     s.File,
			Quality: "auto",
			Type:    track,
			Headers: embedHeaders,
			IsM3U8:  s.Type == "hls" || models.IsHLSURL(s.File),
			Name:    srv.Name,
		})
	}
	sources = models.NormalizeSources(sources)
	if len(sources) == 0 {
		return nil, ErrNoSources
	}

	var subtitles []models.Subtitle
	for _, t := range embed.Tracks {
		if t.Kind != "" && t.Kind != "captions" && t.Kind != "subtitles" {
			continue
		}
		subtitles = append(subtitles, models.Subtitle{URL: t.File, Lang: t.Label})
	}

	resp := &models.WatchResponse{
		Sources:   sources,
		Subtitles: models.NormalizeSubtitles(subtitles),
		Headers:   embedHeaders,
	}
	if validInterval(embed.Intro) || validInterval(embed.Outro) {
		timings := &models.VideoTimings{}
		if validInterval(embed.Intro) {
			timings.Intro = embed.Intro
		}
		if validInterval(embed.Outro) {
			timings.Outro = embed.Outro
		}
		resp.Timings = timings
	}
	return resp, nil
}

func validInterval(i *models.Interval) bool {
	return i != nil && i.Valid()
}

// embedSourcesURL rewrites an embed page link like
// https://host/embed-2/e-1/<id>?k=1 into the host's getSources endpoint
// and returns the headers the embed host requires.
func embedSourcesURL(link, userAgent string) (string, map[string]string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", nil, errors.Wrap(err, "malformed embed link")
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 3 {
		return "", nil, errors.Errorf("unexpected embed path: %s", u.Path)
	}
	embedID := segments[len(segments)-1]

	sourcesURL := fmt.Sprintf("%s://%s/%s/ajax/%s/getSources?id=%s",
		u.Scheme, u.Host, segments[0], segments[1], url.QueryEscape(embedID))

	headers := map[string]string{
		"Referer":    link,
		"Origin":     fmt.Sprintf("%s://%s", u.Scheme, u.Host),
		"User-Agent": userAgent,
	}
	return sourcesURL, headers, nil
}

func (h *HiAnime) getBody(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	for k, v := range h.headers() {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to make request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("server returned: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}
	return body, nil
}

// slugNumericID extracts the trailing numeric id from a canonical slug
// ("one-piece-100" -> "100").
func slugNumericID(slug string) string {
	idx := strings.LastIndex(slug, "-")
	if idx < 0 || idx == len(slug)-1 {
		return ""
	}
	tail := slug[idx+1:]
	for _, r := range tail {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return tail
}
