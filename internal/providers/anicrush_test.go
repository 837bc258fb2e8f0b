package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitsurai/anipipe/internal/httpx"
	"github.com/kitsurai/anipipe/internal/models"
)

func testBackoff() httpx.Backoff {
	return httpx.Backoff{Base: time.Millisecond, Attempts: 3}
}

func TestAniCrush_KeyRotationOn401(t *testing.T) {
	t.Parallel()

	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("x-api-key"))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	keys := []string{"key-a", "key-b", "key-c"}
	a := NewAniCrushWithBase(srv.Client(), srv.URL, keys, testBackoff())

	var out struct{}
	err := a.getJSON(context.Background(), srv.URL+"/shared/v2/movie/list", &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, httpx.ErrAuth))

	// Every key tried at most once, no infinite rotation.
	require.Len(t, seen, len(keys))
	assert.ElementsMatch(t, keys, seen)
}

func TestAniCrush_BackoffOn429ThenSuccess(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":true,"result":{"movies":[{"id":"m1","name":"Naruto"}]}}`))
	}))
	defer srv.Close()

	a := NewAniCrushWithBase(srv.Client(), srv.URL, []string{"key-a"}, testBackoff())

	start := time.Now()
	got := a.SearchAnime(context.Background(), "naruto")
	elapsed := time.Since(start)

	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].ID)
	assert.EqualValues(t, 3, calls.Load())
	// Waited base + 2*base between the three attempts.
	assert.GreaterOrEqual(t, elapsed, 3*time.Millisecond)
}

func TestAniCrush_RateLimitExhaustion(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := NewAniCrushWithBase(srv.Client(), srv.URL, []string{"key-a"}, testBackoff())

	var out struct{}
	err := a.getJSON(context.Background(), srv.URL+"/x", &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, httpx.ErrRateLimited))
}

func TestAniCrush_WatchDataRequiresTitle(t *testing.T) {
	t.Parallel()

	a := NewAniCrushWithBase(http.DefaultClient, "http://unused.invalid", nil, testBackoff())

	_, err := a.GetWatchData(context.Background(), models.EpisodeContext{Episode: 1}, models.TrackSub)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestAniCrush_AvailabilityFailOpen(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewAniCrushWithBase(srv.Client(), srv.URL, nil, testBackoff())

	avail := a.CheckEpisodeAvailability(context.Background(), models.EpisodeContext{Title: "Naruto", Episode: 1})
	assert.Equal(t, models.Availability{Sub: true, Dub: true}, avail)
}
