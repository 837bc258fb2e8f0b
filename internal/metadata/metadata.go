// Package metadata looks up canonical titles and synonyms from the
// metadata graph API. The pipeline only needs it to derive search
// queries, so the mapped surface is deliberately small.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/kitsurai/anipipe/internal/cache"
	"github.com/kitsurai/anipipe/internal/config"
	"github.com/kitsurai/anipipe/internal/util"
)

const titleQuery = `query ($id: Int) { Media(id: $id, type: ANIME) { id idMal title { romaji english } synonyms } }`

// Title holds the lookup result for one series.
type Title struct {
	AnilistID int
	MalID     int
	Romaji    string
	English   string
	Synonyms  []string
}

// Preferred returns the best single search query for this title.
func (t Title) Preferred() string {
	if t.English != "" {
		return t.English
	}
	return t.Romaji
}

// Client queries the metadata graph API.
type Client struct {
	client  *http.Client
	baseURL string
	cache   *cache.Store[Title]
}

// New creates a metadata client with a short-lived response cache.
func New() *Client {
	return &Client{
		client:  util.GetFastClient(),
		baseURL: viper.GetString(config.KeyMetadataBase),
		cache:   cache.New[Title](5*time.Minute, 200),
	}
}

// NewWithBase creates a client against a specific base URL.
func NewWithBase(client *http.Client, baseURL string) *Client {
	return &Client{
		client:  client,
		baseURL: baseURL,
		cache:   cache.New[Title](5*time.Minute, 200),
	}
}

type graphResponse struct {
	Data struct {
		Media struct {
			ID    int `json:"id"`
			IDMal int `json:"idMal"`
			Title struct {
				Romaji  string `json:"romaji"`
				English string `json:"english"`
			} `json:"title"`
			Synonyms []string `json:"synonyms"`
		} `json:"Media"`
	} `json:"data"`
}

// Lookup returns the title record for an AniList id.
func (c *Client) Lookup(ctx context.Context, anilistID int) (Title, error) {
	key := fmt.Sprintf("anilist:%d", anilistID)
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}

	payload, err := json.Marshal(map[string]any{
		"query":     titleQuery,
		"variables": map[string]any{"id": anilistID},
	})
	if err != nil {
		return Title{}, errors.Wrap(err, "failed to encode query")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return Title{}, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Title{}, errors.Wrap(err, "failed to make request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Title{}, errors.Errorf("metadata API returned: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Title{}, errors.Wrap(err, "failed to read response")
	}

	var graph graphResponse
	if err := json.Unmarshal(body, &graph); err != nil {
		return Title{}, errors.Wrap(err, "failed to parse response")
	}

	title := Title{
		AnilistID: graph.Data.Media.ID,
		MalID:     graph.Data.Media.IDMal,
		Romaji:    graph.Data.Media.Title.Romaji,
		English:   graph.Data.Media.Title.English,
		Synonyms:  graph.Data.Media.Synonyms,
	}
	c.cache.Set(key, title)
	return title, nil
}
