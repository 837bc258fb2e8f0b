package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitsurai/anipipe/internal/models"
)

func TestAniWave_DubTypeFiltering(t *testing.T) {
	t.Parallel()

	// One entry tagged DUB, one untagged: an untagged entry is subbed.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sources":[
			{"url":"https://cdn.example/dub.m3u8","quality":"1080p","dubType":"DUB","server":"alpha","hls":true},
			{"url":"https://cdn.example/sub.m3u8","quality":"1080p","server":"alpha","hls":true}
		]}`)
	}))
	defer srv.Close()

	w := NewAniWaveWithBase(srv.Client(), srv.URL)
	ref := models.EpisodeContext{AnilistID: 21, Episode: 5}

	resp, err := w.GetWatchData(context.Background(), ref, models.TrackSub)
	require.NoError(t, err)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "https://cdn.example/sub.m3u8", resp.Sources[0].URL)
	assert.Equal(t, models.TrackSub, resp.Sources[0].Type)

	resp, err = w.GetWatchData(context.Background(), ref, models.TrackDub)
	require.NoError(t, err)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "https://cdn.example/dub.m3u8", resp.Sources[0].URL)
	assert.Equal(t, models.TrackDub, resp.Sources[0].Type)
}

func TestAniWave_RequiresAnilistID(t *testing.T) {
	t.Parallel()

	w := NewAniWaveWithBase(http.DefaultClient, "http://unused.invalid")

	_, err := w.GetWatchData(context.Background(), models.EpisodeContext{Title: "Naruto", Episode: 1}, models.TrackSub)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupported))

	// The availability probe is permissive instead of failing.
	avail := w.CheckEpisodeAvailability(context.Background(), models.EpisodeContext{Episode: 1})
	assert.Equal(t, models.Availability{Sub: true, Dub: true}, avail)
}

func TestAniWave_NoMatchingTrackIsFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sources":[{"url":"https://cdn.example/sub.m3u8","server":"alpha"}]}`)
	}))
	defer srv.Close()

	w := NewAniWaveWithBase(srv.Client(), srv.URL)
	ref := models.EpisodeContext{AnilistID: 21, Episode: 5}

	_, err := w.GetWatchData(context.Background(), ref, models.TrackDub)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSources))
}

func TestAniWave_EmptyURLsDropped(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sources":[{"url":"","server":"alpha"},{"url":"   ","server":"beta"}]}`)
	}))
	defer srv.Close()

	w := NewAniWaveWithBase(srv.Client(), srv.URL)
	ref := models.EpisodeContext{AnilistID: 21, Episode: 5}

	_, err := w.GetWatchData(context.Background(), ref, models.TrackSub)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSources))
}

func TestAniWave_Availability(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sub":true,"dub":false}`)
	}))
	defer srv.Close()

	w := NewAniWaveWithBase(srv.Client(), srv.URL)
	avail := w.CheckEpisodeAvailability(context.Background(), models.EpisodeContext{AnilistID: 21, Episode: 5})
	assert.Equal(t, models.Availability{Sub: true, Dub: false}, avail)
}

func TestAniWave_NoEpisodeListing(t *testing.T) {
	t.Parallel()

	w := NewAniWaveWithBase(http.DefaultClient, "http://unused.invalid")
	episodes, err := w.GetEpisodes(context.Background(), "21")
	require.NoError(t, err)
	assert.Empty(t, episodes)
}
