package providers

import (
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/kitsurai/anipipe/internal/models"
)

// The listing endpoints return JSON envelopes wrapping HTML fragments.
// Parsing lives here, isolated from the fetch flow, because it is the
// most brittle upstream-coupled logic in the pipeline.
//
// Assumed fragment structure (server list):
//
//	<div class="servers-sub">
//	  <div class="server-item" data-type="sub" data-id="1234">
//	    <a class="btn">HD-1</a>
//	  </div>
//	  ...
//	</div>
//	<div class="servers-dub"> ... data-type="dub" ... </div>
//
// and (episode list):
//
//	<a class="ssl-item ep-item" data-number="3" data-id="5678" title="...">

// parseServerFragment extracts the playable servers from the fragment.
// Entries without a data-id are skipped; entries without a data-type are
// classified by server-name heuristics.
func parseServerFragment(html string) ([]server, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse server fragment")
	}

	var servers []server
	doc.Find(".server-item").Each(func(i int, s *goquery.Selection) {
		id, ok := s.Attr("data-id")
		if !ok || id == "" {
			return
		}

		name := strings.TrimSpace(s.Text())
		track := models.AudioTrack(s.AttrOr("data-type", ""))
		if track != models.TrackSub && track != models.TrackDub {
			track = classifyTrack(name)
		}

		servers = append(servers, server{ID: id, Name: name, Track: track})
	})

	if len(servers) == 0 {
		return nil, errors.New("no servers in fragment")
	}
	return servers, nil
}

// parseEpisodeFragment extracts normalized episode entries. Items
// missing either attribute are dropped rather than failing the listing.
func parseEpisodeFragment(html string) ([]models.Episode, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse episode fragment")
	}

	var episodes []models.Episode
	doc.Find(".ep-item").Each(func(i int, s *goquery.Selection) {
		id, ok := s.Attr("data-id")
		if !ok || id == "" {
			return
		}
		num, err := strconv.Atoi(s.AttrOr("data-number", ""))
		if err != nil {
			return
		}

		episodes = append(episodes, models.Episode{
			ID:       id,
			Number:   num,
			Title:    strings.TrimSpace(s.AttrOr("title", "")),
			IsFiller: s.HasClass("ssl-item-filler"),
		})
	})

	sort.SliceStable(episodes, func(i, j int) bool {
		return episodes[i].Number < episodes[j].Number
	})
	return episodes, nil
}
