package providers

import (
	"encoding/json"

	"github.com/samber/lo"
	"github.com/samber/mo"

	"github.com/kitsurai/anipipe/internal/models"
)

// flexID tolerates upstreams that serve ids as either strings or
// numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// rawSummary is the lowest common denominator of a search hit across
// the envelope shapes upstreams have been observed to use.
type rawSummary struct {
	ID       flexID `json:"id"`
	Title    string `json:"title"`
	Name     string `json:"name"`
	Session  string `json:"session"`
	Poster   string `json:"poster"`
	Image    string `json:"image"`
	SubCount int    `json:"sub"`
	DubCount int    `json:"dub"`
}

func (r rawSummary) toSummary() models.AnimeSummary {
	title := r.Title
	if title == "" {
		title = r.Name
	}
	id := string(r.ID)
	if id == "" || id == "0" {
		if r.Session != "" {
			id = r.Session
		}
	}
	image := r.Poster
	if image == "" {
		image = r.Image
	}
	return models.AnimeSummary{
		ID:       id,
		Title:    title,
		ImageURL: image,
		SubCount: r.SubCount,
		DubCount: r.DubCount,
	}
}

// ParseSummaryEnvelope probes the known response envelopes in order:
// a top-level array, {results:[...]}, {data:[...]}, {data:{results:[...]}}.
// Upstream formats are not contractually stable, so failing every shape
// is reported as "no data", never as a parse panic.
func ParseSummaryEnvelope(body []byte) []models.AnimeSummary {
	for _, probe := range []func([]byte) mo.Option[[]rawSummary]{
		probeArray,
		probeResults,
		probeData,
		probeDataResults,
	} {
		if raw, ok := probe(body).Get(); ok {
			summaries := lo.Map(raw, func(r rawSummary, _ int) models.AnimeSummary {
				return r.toSummary()
			})
			return lo.Filter(summaries, func(s models.AnimeSummary, _ int) bool {
				return s.ID != "" && s.Title != ""
			})
		}
	}
	return nil
}

func probeArray(body []byte) mo.Option[[]rawSummary] {
	var out []rawSummary
	if err := json.Unmarshal(body, &out); err != nil || len(out) == 0 {
		return mo.None[[]rawSummary]()
	}
	return mo.Some(out)
}

func probeResults(body []byte) mo.Option[[]rawSummary] {
	var out struct {
		Results []rawSummary `json:"results"`
	}
	if err := json.Unmarshal(body, &out); err != nil || len(out.Results) == 0 {
		return mo.None[[]rawSummary]()
	}
	return mo.Some(out.Results)
}

func probeData(body []byte) mo.Option[[]rawSummary] {
	var out struct {
		Data []rawSummary `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil || len(out.Data) == 0 {
		return mo.None[[]rawSummary]()
	}
	return mo.Some(out.Data)
}

func probeDataResults(body []byte) mo.Option[[]rawSummary] {
	var out struct {
		Data struct {
			Results []rawSummary `json:"results"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil || len(out.Data.Results) == 0 {
		return mo.None[[]rawSummary]()
	}
	return mo.Some(out.Data.Results)
}
