// Package resolver maps user-facing titles to the canonical slugs the
// streaming endpoints expect, via a companion mapping service. Results
// save adapters a redundant search round trip.
package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/spf13/viper"

	"github.com/kitsurai/anipipe/internal/config"
	"github.com/kitsurai/anipipe/internal/httpx"
	"github.com/kitsurai/anipipe/internal/util"
)

// canonicalRe matches slugs like "one-piece-100": lowercase words joined
// by dashes with a trailing numeric id.
var canonicalRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*-\d+$`)

// Client queries the mapping service.
type Client struct {
	client  *http.Client
	baseURL string
}

// New creates a resolver client using the fast shared HTTP client.
func New() *Client {
	return &Client{
		client:  util.GetFastClient(),
		baseURL: viper.GetString(config.KeyResolverBase),
	}
}

// NewWithBase creates a resolver client against a specific base URL.
func NewWithBase(client *http.Client, baseURL string) *Client {
	return &Client{client: client, baseURL: baseURL}
}

// mappingResponse covers the two envelope shapes the mapper has been
// observed to return.
type mappingResponse struct {
	Slug string `json:"slug"`
	Data struct {
		Slug string `json:"slug"`
	} `json:"data"`
}

// Resolve returns the canonical slug for a title. Resolving an already
// canonical slug returns it unchanged without a network call. Not-found
// is ("", nil), never an error.
func (c *Client) Resolve(ctx context.Context, titleOrSlug string) (string, error) {
	if titleOrSlug == "" {
		return "", nil
	}
	if canonicalRe.MatchString(titleOrSlug) {
		return titleOrSlug, nil
	}

	lookupURL := fmt.Sprintf("%s/resolve?title=%s", c.baseURL, url.QueryEscape(titleOrSlug))

	var resp mappingResponse
	status, err := httpx.GetJSON(ctx, c.client, lookupURL, nil, &resp)
	if err != nil {
		if status == http.StatusNotFound {
			return "", nil
		}
		util.Debug("resolver lookup failed", "title", titleOrSlug, "error", err)
		return "", err
	}

	if resp.Slug != "" {
		return resp.Slug, nil
	}
	return resp.Data.Slug, nil
}

// ResolveAnilist returns the canonical slug for an AniList id, or ""
// when the mapper has no record.
func (c *Client) ResolveAnilist(ctx context.Context, anilistID int) (string, error) {
	if anilistID <= 0 {
		return "", nil
	}

	lookupURL := fmt.Sprintf("%s/anilist/%d", c.baseURL, anilistID)

	var resp mappingResponse
	status, err := httpx.GetJSON(ctx, c.client, lookupURL, nil, &resp)
	if err != nil {
		if status == http.StatusNotFound {
			return "", nil
		}
		return "", err
	}

	if resp.Slug != "" {
		return resp.Slug, nil
	}
	return resp.Data.Slug, nil
}
