package skiptimes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitsurai/anipipe/internal/config"
)

func TestGet_IntroAndOutro(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/skip-times/20/12", r.URL.Path)
		fmt.Fprint(w, `{"found":true,"results":[
			{"interval":{"start_time":90,"end_time":180},"skip_type":"op"},
			{"interval":{"start_time":1320,"end_time":1410},"skip_type":"ed"}
		]}`)
	}))
	t.Cleanup(srv.Close)

	c := NewWithBase(srv.Client(), srv.URL)

	timings := c.Get(context.Background(), 20, 12)
	require.NotNil(t, timings)
	require.NotNil(t, timings.Intro)
	assert.Equal(t, 90.0, timings.Intro.Start)
	assert.Equal(t, 180.0, timings.Intro.End)
	require.NotNil(t, timings.Outro)
	assert.Equal(t, 1320.0, timings.Outro.Start)
	assert.False(t, timings.Synthetic)
}

func TestGet_NotFoundIsNil(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"found":false,"results":[]}`)
	}))
	t.Cleanup(srv.Close)

	c := NewWithBase(srv.Client(), srv.URL)
	assert.Nil(t, c.Get(context.Background(), 20, 9999))
}

func TestGet_ServiceFailureIsNil(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := NewWithBase(srv.Client(), srv.URL)
	assert.Nil(t, c.Get(context.Background(), 20, 12))
}

func TestGet_DropsInvalidIntervals(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"found":true,"results":[
			{"interval":{"start_time":200,"end_time":100},"skip_type":"op"}
		]}`)
	}))
	t.Cleanup(srv.Close)

	c := NewWithBase(srv.Client(), srv.URL)
	assert.Nil(t, c.Get(context.Background(), 20, 12))
}

func TestGet_InvalidMalID(t *testing.T) {
	t.Parallel()

	c := NewWithBase(http.DefaultClient, "http://unused.invalid")
	assert.Nil(t, c.Get(context.Background(), 0, 12))
}

func TestGetOrSynthetic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"found":false,"results":[]}`)
	}))
	t.Cleanup(srv.Close)

	c := NewWithBase(srv.Client(), srv.URL)

	viper.Set(config.KeySyntheticTimings, false)
	t.Cleanup(func() { viper.Set(config.KeySyntheticTimings, false) })
	assert.Nil(t, c.GetOrSynthetic(context.Background(), 20, 12))

	viper.Set(config.KeySyntheticTimings, true)
	timings := c.GetOrSynthetic(context.Background(), 20, 12)
	require.NotNil(t, timings)
	assert.True(t, timings.Synthetic)
	require.NotNil(t, timings.Intro)
	assert.True(t, timings.Intro.Valid())
	assert.Nil(t, timings.Outro)
}
