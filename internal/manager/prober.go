package manager

import (
	"context"
	"sync"

	"github.com/kitsurai/anipipe/internal/models"
	"github.com/kitsurai/anipipe/internal/providers"
	"github.com/kitsurai/anipipe/internal/util"
	"github.com/kitsurai/anipipe/internal/vidcdn"
)

// Prober answers "would sub/dub work" orders of magnitude cheaper than
// full resolution, at lower confidence. It tries the stream service's
// cached per-episode records first, then falls back to each adapter's
// own lightweight probe, all settled concurrently.
type Prober struct {
	cdn       *vidcdn.Client
	providers []providers.Provider
}

// NewProber builds a prober. cdn may be nil to skip the fast path.
func NewProber(cdn *vidcdn.Client, list []providers.Provider) *Prober {
	return &Prober{cdn: cdn, providers: list}
}

// Check never blocks on source resolution and always resolves; total
// failure yields the permissive default so a broken probe cannot
// disable a playback control.
func (p *Prober) Check(ctx context.Context, ref models.EpisodeContext) models.Availability {
	if avail, ok := p.fastPath(ctx, ref); ok {
		return avail
	}
	return p.probeProviders(ctx, ref)
}

// fastPath consults the stream service's bulk episode records, which
// carry audio labels and are cached per anime. Returns ok=false when
// the service fails or has no record for this episode (ambiguous shape
// falls through to the adapter probes).
func (p *Prober) fastPath(ctx context.Context, ref models.EpisodeContext) (models.Availability, bool) {
	if p.cdn == nil || ref.AnilistID <= 0 {
		return models.Availability{}, false
	}

	records, err := p.cdn.FetchRawByAnilistID(ctx, ref.AnilistID)
	if err != nil || len(records) == 0 {
		util.Debug("availability fast path unavailable", "anilistID", ref.AnilistID, "error", err)
		return models.Availability{}, false
	}

	var avail models.Availability
	found := false
	for _, r := range records {
		if r.Episode != ref.Episode {
			continue
		}
		found = true
		switch r.Audio {
		case "sub":
			avail.Sub = true
		case "dub":
			avail.Dub = true
		case "dual":
			avail.Sub = true
			avail.Dub = true
		}
	}
	if !found {
		return models.Availability{}, false
	}
	return avail, true
}

// probeProviders settles every adapter's probe concurrently and merges
// the outcomes. Individual failures are tolerated; if nothing answers,
// the permissive default wins.
func (p *Prober) probeProviders(ctx context.Context, ref models.EpisodeContext) models.Availability {
	if len(p.providers) == 0 {
		return models.Availability{Sub: true, Dub: true}
	}

	results := make(chan models.Availability, len(p.providers))
	var wg sync.WaitGroup
	for _, prov := range p.providers {
		wg.Add(1)
		go func(prov providers.Provider) {
			defer wg.Done()
			results <- safeAvailability(ctx, prov, ref)
		}(prov)
	}
	wg.Wait()
	close(results)

	var merged models.Availability
	for avail := range results {
		merged.Sub = merged.Sub || avail.Sub
		merged.Dub = merged.Dub || avail.Dub
	}
	return merged
}
