package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.Equal(t, http.MethodPost, r.Method)

		var payload struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Contains(t, payload.Query, "Media(id: $id, type: ANIME)")
		assert.EqualValues(t, 21, payload.Variables["id"])

		fmt.Fprint(w, `{"data":{"Media":{
			"id":21,"idMal":21,
			"title":{"romaji":"One Piece","english":"ONE PIECE"},
			"synonyms":["OP"]
		}}}`)
	}))
	t.Cleanup(srv.Close)

	c := NewWithBase(srv.Client(), srv.URL)

	title, err := c.Lookup(context.Background(), 21)
	require.NoError(t, err)
	assert.Equal(t, 21, title.AnilistID)
	assert.Equal(t, 21, title.MalID)
	assert.Equal(t, "ONE PIECE", title.Preferred())
	assert.Equal(t, []string{"OP"}, title.Synonyms)

	_, err = c.Lookup(context.Background(), 21)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load(), "repeat lookups must come from cache")
}

func TestLookup_APIFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	c := NewWithBase(srv.Client(), srv.URL)
	_, err := c.Lookup(context.Background(), 21)
	assert.Error(t, err)
}

func TestPreferred_FallsBackToRomaji(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Shingeki no Kyojin", Title{Romaji: "Shingeki no Kyojin"}.Preferred())
	assert.Equal(t, "Attack on Titan", Title{Romaji: "Shingeki no Kyojin", English: "Attack on Titan"}.Preferred())
}
