// Package providers contains the upstream adapters. Each adapter
// translates one provider's idiosyncratic API into the common data model
// and owns every retry/auth quirk specific to that upstream.
package providers

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/kitsurai/anipipe/internal/models"
)

var (
	// ErrNoSources signals an otherwise-successful fetch that yielded
	// zero playable sources. The orchestrator treats it as failure.
	ErrNoSources = errors.New("no playable sources found")

	// ErrUnsupported signals a missing precondition (e.g. the adapter
	// needs an AniList id the caller did not supply). The orchestrator
	// skips to the next provider.
	ErrUnsupported = errors.New("provider cannot serve this request")
)

// Provider is the contract every upstream adapter satisfies.
type Provider interface {
	ID() models.ProviderID

	// SearchAnime is a free-text probe. Failures are swallowed: a
	// network or parse error yields an empty list, never a crash in a
	// caller that is merely probing.
	SearchAnime(ctx context.Context, query string) []models.AnimeSummary

	// GetEpisodes lists normalized episode metadata. Upstreams without
	// a listing endpoint return an empty list, not an error; the caller
	// falls back to an external episode-metadata source.
	GetEpisodes(ctx context.Context, id string) ([]models.Episode, error)

	// GetWatchData resolves the episode to playable sources for the
	// requested audio track. It fails loudly only when zero sources
	// survive filtering; it never returns success with no sources.
	GetWatchData(ctx context.Context, ref models.EpisodeContext, track models.AudioTrack) (*models.WatchResponse, error)

	// CheckEpisodeAvailability is a cheap existence probe. Policy is
	// fail-open: on upstream failure both tracks are presumed
	// available so a broken probe never blocks playback attempts.
	CheckEpisodeAvailability(ctx context.Context, ref models.EpisodeContext) models.Availability
}

// failOpen is the permissive availability default shared by adapters.
var failOpen = models.Availability{Sub: true, Dub: true}

// classifyTrack tags a raw stream entry whose upstream does not label
// tracks explicitly, using server-name heuristics.
func classifyTrack(name string) models.AudioTrack {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "dub") || strings.Contains(lower, "eng") {
		return models.TrackDub
	}
	return models.TrackSub
}

var serverSuffixRe = regexp.MustCompile(`(\d+)\s*$`)

// serverRank extracts the numeric suffix of a server display name
// ("HD-1" -> 1) for deterministic ordering. Names without a suffix sort
// last.
func serverRank(name string) int {
	m := serverSuffixRe.FindStringSubmatch(name)
	if m == nil {
		return 1 << 30
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 1 << 30
	}
	return n
}
