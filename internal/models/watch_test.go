package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSources(t *testing.T) {
	t.Parallel()

	in := []Source{
		{URL: "https://cdn.example/a.m3u8", Quality: "1080p", Type: TrackSub},
		{URL: "  ", Quality: "720p", Type: TrackSub},
		{URL: "", Quality: "480p", Type: TrackSub},
		{URL: "https://cdn.example/b.mp4", Quality: "720p", Type: TrackDub},
	}

	out := NormalizeSources(in)
	require.Len(t, out, 2)
	assert.True(t, out[0].IsM3U8, "HLS flag is inferred from the URL")
	assert.False(t, out[1].IsM3U8)
}

func TestNormalizeSources_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, NormalizeSources(nil))
	assert.Empty(t, NormalizeSources([]Source{{URL: ""}}))
}

func TestNormalizeSubtitles(t *testing.T) {
	t.Parallel()

	in := []Subtitle{
		{URL: "https://cdn.example/en.vtt", Lang: "English"},
		{URL: "", Lang: "German"},
		{URL: "https://cdn.example/x.vtt", Lang: " "},
	}

	out := NormalizeSubtitles(in)
	require.Len(t, out, 1)
	assert.Equal(t, "English", out[0].Lang)
}

func TestIsHLSURL(t *testing.T) {
	t.Parallel()

	assert.True(t, IsHLSURL("https://cdn.example/master.m3u8"))
	assert.True(t, IsHLSURL("https://cdn.example/master.m3u8?token=abc"))
	assert.True(t, IsHLSURL("https://cdn.example/master.m3u8#frag"))
	assert.False(t, IsHLSURL("https://cdn.example/video.mp4"))
	assert.False(t, IsHLSURL("https://cdn.example/m3u8-docs.html"))
}

func TestIntervalValid(t *testing.T) {
	t.Parallel()

	assert.True(t, Interval{Start: 0, End: 90}.Valid())
	assert.True(t, Interval{Start: 85, End: 175}.Valid())
	assert.False(t, Interval{Start: 90, End: 90}.Valid())
	assert.False(t, Interval{Start: 100, End: 90}.Valid())
	assert.False(t, Interval{Start: -1, End: 90}.Valid())
}
