// Package vidcdn is the client for the supplementary CDN-style stream
// service. It sits outside the provider-adapter abstraction: callers
// query it directly by AniList id for raw per-episode playback records,
// then by access id for file-level stream details. Every call walks an
// ordered list of candidate endpoints (primary origin, then CDN
// mirrors) before giving up.
package vidcdn

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/kitsurai/anipipe/internal/cache"
	"github.com/kitsurai/anipipe/internal/config"
	"github.com/kitsurai/anipipe/internal/httpx"
	"github.com/kitsurai/anipipe/internal/models"
	"github.com/kitsurai/anipipe/internal/util"
)

// EpisodeRecord is one raw playback record, fetched in bulk per anime.
// It carries no token, so only the generic TTL governs its cache life.
type EpisodeRecord struct {
	AccessID  string `json:"access_id"`
	AnilistID int    `json:"anilist_id"`
	Audio     string `json:"audio"` // "sub", "dub", "dual" or free-form
	Episode   int    `json:"episode"`
	PlayerURL string `json:"player_url"`
}

// Chapter is a labeled time range inside a file.
type Chapter struct {
	Label string  `json:"label"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// FileDetail is the per-access-id stream description. The embedded
// token is a capability bound to an IP and expiry, so cache validity is
// the tighter of the generic TTL and the token expiry.
type FileDetail struct {
	FileCode     string            `json:"file_code"`
	M3U8URL      string            `json:"m3u8_url"`
	Token        string            `json:"token"`
	TokenExpires int64             `json:"token_expires"` // unix seconds
	Subtitles    []models.Subtitle `json:"subtitles"`
	Chapters     []Chapter         `json:"chapters"`
	Fonts        []string          `json:"fonts"`
}

// Client queries the stream service with endpoint fallback and caching.
type Client struct {
	client      *http.Client
	endpoints   []string
	episodes    *cache.Store[[]EpisodeRecord]
	details     *cache.Store[FileDetail]
	tokenBuffer time.Duration
	now         func() time.Time
}

// New creates a client from the configured endpoint list and TTLs.
func New() *Client {
	return NewWithEndpoints(
		util.GetSharedClient(),
		viper.GetStringSlice(config.KeyVidCDNEndpoints),
		viper.GetDuration(config.KeyCacheEpisodeTTL),
		viper.GetDuration(config.KeyCacheDetailTTL),
		viper.GetDuration(config.KeyCacheTokenBuf),
	)
}

// NewWithEndpoints creates a client against explicit endpoints. Test hook.
func NewWithEndpoints(client *http.Client, endpoints []string, episodeTTL, detailTTL, tokenBuffer time.Duration) *Client {
	return &Client{
		client:      client,
		endpoints:   endpoints,
		episodes:    cache.New[[]EpisodeRecord](episodeTTL, 100),
		details:     cache.New[FileDetail](detailTTL, 200),
		tokenBuffer: tokenBuffer,
		now:         time.Now,
	}
}

type episodesEnvelope struct {
	Episodes []EpisodeRecord `json:"episodes"`
}

// FetchRawByAnilistID returns the raw playback records for an anime,
// sorted ascending by episode. Results are cached per anilist id.
func (c *Client) FetchRawByAnilistID(ctx context.Context, anilistID int) ([]EpisodeRecord, error) {
	key := fmt.Sprintf("anilist:%d", anilistID)
	if cached, ok := c.episodes.Get(key); ok {
		return cached, nil
	}

	records, err := httpx.TryEndpoints(ctx, c.endpoints, func(ctx context.Context, base string) ([]EpisodeRecord, error) {
		listURL := fmt.Sprintf("%s/api/episodes?anilist=%d", base, anilistID)

		var env episodesEnvelope
		if _, err := httpx.GetJSON(ctx, c.client, listURL, nil, &env); err != nil {
			return nil, err
		}
		if len(env.Episodes) == 0 {
			return nil, errors.Errorf("no records at %s", base)
		}
		return env.Episodes, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "episode records for anilist %d", anilistID)
	}

	// Upstream order is not guaranteed.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Episode < records[j].Episode
	})

	c.episodes.Set(key, records)
	return records, nil
}

// FetchFileDetail returns the file-level stream details for an access
// id. The cached copy is invalidated early when the embedded token is
// within the buffer window of expiring.
func (c *Client) FetchFileDetail(ctx context.Context, accessID string) (FileDetail, error) {
	if cached, ok := c.details.Get(accessID); ok {
		return cached, nil
	}

	detail, err := httpx.TryEndpoints(ctx, c.endpoints, func(ctx context.Context, base string) (FileDetail, error) {
		detailURL := fmt.Sprintf("%s/api/file/%s", base, url.PathEscape(accessID))

		var d FileDetail
		if _, err := httpx.GetJSON(ctx, c.client, detailURL, nil, &d); err != nil {
			return FileDetail{}, err
		}
		if d.M3U8URL == "" {
			return FileDetail{}, errors.Errorf("no stream in detail at %s", base)
		}
		return d, nil
	})
	if err != nil {
		return FileDetail{}, errors.Wrapf(err, "file detail for %s", accessID)
	}

	detail.Subtitles = models.NormalizeSubtitles(detail.Subtitles)

	// Token freshness takes precedence over the generic TTL.
	var deadline time.Time
	if detail.TokenExpires > 0 {
		deadline = time.Unix(detail.TokenExpires, 0).Add(-c.tokenBuffer)
	}
	c.details.SetWithDeadline(accessID, detail, deadline)
	return detail, nil
}

// FindRecord returns the record for an episode and audio track, if the
// service has one. "dual" records satisfy either track.
func FindRecord(records []EpisodeRecord, episode int, track models.AudioTrack) (EpisodeRecord, bool) {
	for _, r := range records {
		if r.Episode != episode {
			continue
		}
		if r.Audio == string(track) || r.Audio == "dual" {
			return r, true
		}
	}
	return EpisodeRecord{}, false
}

// SetClocks overrides time sources on the internal caches. Test hook.
func (c *Client) SetClocks(now func() time.Time) {
	c.now = now
	c.episodes.SetClock(now)
	c.details.SetClock(now)
}
