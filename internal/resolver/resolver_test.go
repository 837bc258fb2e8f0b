package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_CanonicalSlugIsIdempotent(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(srv.Close)

	c := NewWithBase(srv.Client(), srv.URL)

	for _, slug := range []string{"one-piece-100", "naruto-677", "86-eighty-six-13165"} {
		got, err := c.Resolve(context.Background(), slug)
		require.NoError(t, err)
		assert.Equal(t, slug, got)
	}
	assert.Zero(t, hits.Load(), "canonical slugs must not hit the network")
}

func TestResolve_TitleLookup(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/resolve", r.URL.Path)
		assert.Equal(t, "One Piece", r.URL.Query().Get("title"))
		fmt.Fprint(w, `{"slug":"one-piece-100"}`)
	}))
	t.Cleanup(srv.Close)

	c := NewWithBase(srv.Client(), srv.URL)

	got, err := c.Resolve(context.Background(), "One Piece")
	require.NoError(t, err)
	assert.Equal(t, "one-piece-100", got)
}

func TestResolve_NestedEnvelope(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"slug":"one-piece-100"}}`)
	}))
	t.Cleanup(srv.Close)

	c := NewWithBase(srv.Client(), srv.URL)

	got, err := c.Resolve(context.Background(), "One Piece")
	require.NoError(t, err)
	assert.Equal(t, "one-piece-100", got)
}

func TestResolve_NotFoundIsNotAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	c := NewWithBase(srv.Client(), srv.URL)

	got, err := c.Resolve(context.Background(), "Totally Unknown Show")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolve_EmptyInput(t *testing.T) {
	t.Parallel()

	c := NewWithBase(http.DefaultClient, "http://unused.invalid")

	got, err := c.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveAnilist(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/anilist/21", r.URL.Path)
		fmt.Fprint(w, `{"slug":"one-piece-100"}`)
	}))
	t.Cleanup(srv.Close)

	c := NewWithBase(srv.Client(), srv.URL)

	got, err := c.ResolveAnilist(context.Background(), 21)
	require.NoError(t, err)
	assert.Equal(t, "one-piece-100", got)

	got, err = c.ResolveAnilist(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
