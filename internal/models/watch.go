// Package models contains the data structures shared across providers,
// the orchestrator and the stream service clients.
package models

import "strings"

// AudioTrack classifies a source by audio language track.
type AudioTrack string

const (
	TrackSub AudioTrack = "sub"
	TrackDub AudioTrack = "dub"
)

// ProviderID identifies an upstream provider adapter.
type ProviderID string

const (
	ProviderHiAnime   ProviderID = "hianime"
	ProviderAnimePahe ProviderID = "animepahe"
	ProviderAniCrush  ProviderID = "anicrush"
	ProviderAniWave   ProviderID = "aniwave"
)

// Source represents one concrete, playable stream candidate.
type Source struct {
	URL     string            `json:"url"`
	Quality string            `json:"quality"`
	Type    AudioTrack        `json:"type"`
	Headers map[string]string `json:"headers,omitempty"`
	IsM3U8  bool              `json:"isM3U8"`
	Name    string            `json:"name,omitempty"`
}

// Subtitle represents a subtitle track attached to a watch response.
type Subtitle struct {
	URL  string `json:"url"`
	Lang string `json:"lang"`
}

// Interval is a half-open time range in seconds, 0 <= Start < End.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Valid reports whether the interval satisfies 0 <= Start < End.
func (i Interval) Valid() bool {
	return i.Start >= 0 && i.Start < i.End
}

// VideoTimings holds optional intro/outro intervals for an episode.
// A nil interval means "unknown", not "none". Synthetic marks values
// substituted from typical-episode heuristics rather than measured data.
type VideoTimings struct {
	Intro     *Interval `json:"intro,omitempty"`
	Outro     *Interval `json:"outro,omitempty"`
	Synthetic bool      `json:"synthetic,omitempty"`
}

// WatchResponse is the normalized unit every provider adapter returns.
type WatchResponse struct {
	Sources   []Source          `json:"sources"`
	Subtitles []Subtitle        `json:"subtitles"`
	Timings   *VideoTimings     `json:"timings,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// WatchResult wraps a provider outcome at the orchestrator boundary.
// Exactly one of (Success with non-empty Data.Sources) or
// (Success=false with Error set) holds.
type WatchResult struct {
	Provider ProviderID     `json:"provider"`
	Success  bool           `json:"success"`
	Data     *WatchResponse `json:"data,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Availability reports whether sub/dub tracks are currently obtainable.
type Availability struct {
	Sub bool `json:"sub"`
	Dub bool `json:"dub"`
}

// NormalizeSources drops candidates with an empty URL and infers the HLS
// flag from the URL when the upstream did not label it.
func NormalizeSources(in []Source) []Source {
	out := make([]Source, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s.URL) == "" {
			continue
		}
		if !s.IsM3U8 && IsHLSURL(s.URL) {
			s.IsM3U8 = true
		}
		out = append(out, s)
	}
	return out
}

// NormalizeSubtitles drops entries missing a URL or language label.
func NormalizeSubtitles(in []Subtitle) []Subtitle {
	out := make([]Subtitle, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s.URL) == "" || strings.TrimSpace(s.Lang) == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// IsHLSURL reports whether a URL looks like an HLS manifest.
func IsHLSURL(u string) bool {
	trimmed := u
	if idx := strings.IndexAny(trimmed, "?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.HasSuffix(trimmed, ".m3u8") || strings.Contains(u, ".m3u8?")
}
