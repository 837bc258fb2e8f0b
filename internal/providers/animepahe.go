package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/kitsurai/anipipe/internal/config"
	"github.com/kitsurai/anipipe/internal/httpx"
	"github.com/kitsurai/anipipe/internal/models"
	"github.com/kitsurai/anipipe/internal/util"
)

// AnimePahe adapts the Pahe-style upstream: session-keyed API endpoints
// plus a play page whose resolution menu carries the stream candidates.
type AnimePahe struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

// NewAnimePahe creates the adapter with the shared HTTP client.
func NewAnimePahe() *AnimePahe {
	return &AnimePahe{
		client:    util.GetSharedClient(),
		baseURL:   viper.GetString(config.KeyAnimePaheBase),
		userAgent: viper.GetString(config.KeyUserAgent),
	}
}

// NewAnimePaheWithBase creates the adapter against a specific base URL.
func NewAnimePaheWithBase(client *http.Client, baseURL string) *AnimePahe {
	return &AnimePahe{
		client:    client,
		baseURL:   baseURL,
		userAgent: viper.GetString(config.KeyUserAgent),
	}
}

func (p *AnimePahe) ID() models.ProviderID {
	return models.ProviderAnimePahe
}

func (p *AnimePahe) headers() map[string]string {
	return map[string]string{
		"Referer":    p.baseURL + "/",
		"User-Agent": p.userAgent,
		// DDoS-guard wants this cookie present even when empty.
		"Cookie": "__ddg1_=;",
	}
}

// SearchAnime probes the search endpoint. The envelope shape has changed
// before, so the shared shape-by-shape parser handles the body; any
// failure yields an empty list.
func (p *AnimePahe) SearchAnime(ctx context.Context, query string) []models.AnimeSummary {
	searchURL := fmt.Sprintf("%s/api?m=search&q=%s", p.baseURL, url.QueryEscape(query))

	body, err := p.getBody(ctx, searchURL)
	if err != nil {
		util.Debug("animepahe search failed", "query", query, "error", err)
		return nil
	}
	return ParseSummaryEnvelope(body)
}

type paheReleaseEnvelope struct {
	Data []struct {
		Session string  `json:"session"`
		Episode float64 `json:"episode"`
		Title   string  `json:"title"`
		Filler  int     `json:"filler"`
	} `json:"data"`
	LastPage int `json:"last_page"`
}

// GetEpisodes lists a release's episodes. The id is the series session.
func (p *AnimePahe) GetEpisodes(ctx context.Context, id string) ([]models.Episode, error) {
	releaseURL := fmt.Sprintf("%s/api?m=release&id=%s&sort=episode_asc&page=1", p.baseURL, url.QueryEscape(id))

	var env paheReleaseEnvelope
	if _, err := httpx.GetJSON(ctx, p.client, releaseURL, p.headers(), &env); err != nil {
		return nil, errors.Wrap(err, "release fetch failed")
	}

	episodes := make([]models.Episode, 0, len(env.Data))
	for _, e := range env.Data {
		if e.Session == "" {
			continue
		}
		episodes = append(episodes, models.Episode{
			ID:       e.Session,
			Number:   int(e.Episode),
			Title:    e.Title,
			IsFiller: e.Filler != 0,
		})
	}
	sort.SliceStable(episodes, func(i, j int) bool {
		return episodes[i].Number < episodes[j].Number
	})
	return episodes, nil
}

// GetWatchData locates the episode session and parses the play page's
// resolution menu into sources, tagged by the audio attribute.
func (p *AnimePahe) GetWatchData(ctx context.Context, ref models.EpisodeContext, track models.AudioTrack) (*models.WatchResponse, error) {
	if ref.Title == "" {
		return nil, errors.Wrap(ErrUnsupported, "animepahe needs a title")
	}

	results := p.SearchAnime(ctx, ref.Title)
	if len(results) == 0 {
		return nil, errors.Errorf("no match for %q", ref.Title)
	}
	session := results[0].ID

	episodes, err := p.GetEpisodes(ctx, session)
	if err != nil {
		return nil, err
	}

	var episodeSession string
	for _, ep := range episodes {
		if ep.Number == ref.Episode {
			episodeSession = ep.ID
			break
		}
	}
	if episodeSession == "" {
		return nil, errors.Errorf("episode %d not found for %q", ref.Episode, ref.Title)
	}

	playURL := fmt.Sprintf("%s/play/%s/%s", p.baseURL, url.PathEscape(session), url.PathEscape(episodeSession))
	body, err := p.getBody(ctx, playURL)
	if err != nil {
		return nil, errors.Wrap(err, "play page fetch failed")
	}

	sources, err := parseResolutionMenu(string(body), p.headers())
	if err != nil {
		return nil, err
	}

	filtered := make([]models.Source, 0, len(sources))
	for _, s := range sources {
		if s.Type == track {
			filtered = append(filtered, s)
		}
	}
	filtered = models.NormalizeSources(filtered)
	if len(filtered) == 0 {
		return nil, errors.Wrapf(ErrNoSources, "no %s streams on play page", track)
	}

	return &models.WatchResponse{
		Sources: filtered,
		Headers: p.headers(),
	}, nil
}

// CheckEpisodeAvailability inspects the play page's resolution menu.
// Fail-open on any upstream failure.
func (p *AnimePahe) CheckEpisodeAvailability(ctx context.Context, ref models.EpisodeContext) models.Availability {
	if ref.Title == "" {
		return failOpen
	}

	results := p.SearchAnime(ctx, ref.Title)
	if len(results) == 0 {
		return failOpen
	}

	episodes, err := p.GetEpisodes(ctx, results[0].ID)
	if err != nil {
		return failOpen
	}

	for _, ep := range episodes {
		if ep.Number == ref.Episode {
			// Pahe-style sources are overwhelmingly sub; dub presence
			// can only be confirmed from the play page, which is too
			// heavy for a probe.
			return models.Availability{Sub: true, Dub: false}
		}
	}
	return models.Availability{}
}

// parseResolutionMenu extracts stream candidates from the play page's
// resolution menu buttons. Buttons carry data-src, data-resolution and
// data-audio ("jpn" = sub, "eng" = dub).
func parseResolutionMenu(html string, headers map[string]string) ([]models.Source, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse play page")
	}

	var sources []models.Source
	doc.Find("#resolutionMenu button").Each(func(i int, s *goquery.Selection) {
		src := s.AttrOr("data-src", "")
		if src == "" {
			return
		}

		track := models.TrackSub
		if strings.EqualFold(s.AttrOr("data-audio", ""), "eng") {
			track = models.TrackDub
		}

		quality := s.AttrOr("data-resolution", "")
		if quality != "" && !strings.HasSuffix(quality, "p") {
			quality += "p"
		}

		sources = append(sources, models.Source{
			URL:     src,
			Quality: quality,
			Type:    track,
			Headers: headers,
			IsM3U8:  models.IsHLSURL(src),
			Name:    strings.TrimSpace(s.Text()),
		})
	})

	if len(sources) == 0 {
		return nil, errors.New("no streams in resolution menu")
	}
	return sources, nil
}

func (p *AnimePahe) getBody(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	for k, v := range p.headers() {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to make request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("server returned: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
