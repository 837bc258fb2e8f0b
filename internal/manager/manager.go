// Package manager is the fallback orchestrator: it tries providers in
// priority order until one yields playable sources, converting every
// provider outcome into a typed result. No exception from this
// subsystem ever reaches the caller.
package manager

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/kitsurai/anipipe/internal/config"
	"github.com/kitsurai/anipipe/internal/metadata"
	"github.com/kitsurai/anipipe/internal/models"
	"github.com/kitsurai/anipipe/internal/providers"
	"github.com/kitsurai/anipipe/internal/skiptimes"
	"github.com/kitsurai/anipipe/internal/util"
)

// Request is the single entry-point input from the UI layer.
type Request struct {
	Context models.EpisodeContext
	Track   models.AudioTrack

	// Override restricts resolution to one provider. An override is an
	// explicit user choice: its failure is final, never silently
	// retried elsewhere.
	Override models.ProviderID

	// AutoSelect enables fallback across the configured priority
	// order. When off (and no override), only the top-priority
	// provider for the track is tried.
	AutoSelect bool
}

// Manager owns the provider set and the per-track priority orders.
// Providers are injected explicitly; there is no hidden global state.
type Manager struct {
	providers map[models.ProviderID]providers.Provider
	orderSub  []models.ProviderID
	orderDub  []models.ProviderID
	metadata  *metadata.Client
	skips     *skiptimes.Client
	prober    *Prober
}

// Option configures a Manager.
type Option func(*Manager)

// WithOrder overrides the per-track priority orders.
func WithOrder(sub, dub []models.ProviderID) Option {
	return func(m *Manager) {
		m.orderSub = sub
		m.orderDub = dub
	}
}

// WithMetadata attaches a title-lookup client used to derive a search
// query when the request carries only an AniList id.
func WithMetadata(c *metadata.Client) Option {
	return func(m *Manager) { m.metadata = c }
}

// WithSkipTimes attaches a skip-time client used to enrich responses
// that lack intro/outro timings.
func WithSkipTimes(c *skiptimes.Client) Option {
	return func(m *Manager) { m.skips = c }
}

// WithProber attaches an availability prober; CheckAvailability
// delegates to it instead of walking the adapters sequentially.
func WithProber(p *Prober) Option {
	return func(m *Manager) { m.prober = p }
}

// New builds a Manager over the given providers, with priority orders
// taken from configuration unless overridden.
func New(list []providers.Provider, opts ...Option) *Manager {
	m := &Manager{
		providers: make(map[models.ProviderID]providers.Provider, len(list)),
		orderSub:  toProviderIDs(viper.GetStringSlice(config.KeyOrderSub)),
		orderDub:  toProviderIDs(viper.GetStringSlice(config.KeyOrderDub)),
	}
	for _, p := range list {
		m.providers[p.ID()] = p
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func toProviderIDs(names []string) []models.ProviderID {
	ids := make([]models.ProviderID, 0, len(names))
	for _, n := range names {
		ids = append(ids, models.ProviderID(n))
	}
	return ids
}

// ResolveWatchData is the single entry point the UI calls. It returns
// either a populated response with Success=true, or Success=false with
// one coherent error string. Per-provider diagnostics are logged only.
func (m *Manager) ResolveWatchData(ctx context.Context, req Request) models.WatchResult {
	m.fillTitle(ctx, &req.Context)

	if req.Override != "" {
		return m.resolveOverride(ctx, req)
	}
	return m.resolveFallback(ctx, req, true)
}

// CheckAvailability reports whether sub/dub are obtainable for the
// episode. It always resolves; total failure yields the permissive
// default.
func (m *Manager) CheckAvailability(ctx context.Context, ref models.EpisodeContext) models.Availability {
	m.fillTitle(ctx, &ref)

	if m.prober != nil {
		return m.prober.Check(ctx, ref)
	}

	order := m.orderSub
	var merged models.Availability
	checked := 0
	for _, id := range order {
		p, ok := m.providers[id]
		if !ok {
			continue
		}
		avail := safeAvailability(ctx, p, ref)
		merged.Sub = merged.Sub || avail.Sub
		merged.Dub = merged.Dub || avail.Dub
		checked++
		if merged.Sub && merged.Dub {
			break
		}
	}
	if checked == 0 {
		return models.Availability{Sub: true, Dub: true}
	}
	return merged
}

func (m *Manager) resolveOverride(ctx context.Context, req Request) models.WatchResult {
	p, ok := m.providers[req.Override]
	if !ok {
		return failure(req.Override, fmt.Sprintf("provider %q is not configured", req.Override))
	}

	resp, err := attempt(ctx, p, req.Context, req.Track)
	if err != nil {
		util.Debug("override provider failed", "provider", p.ID(), "error", err)
		return failure(p.ID(), fmt.Sprintf("provider %s could not supply %s sources", p.ID(), req.Track))
	}
	return m.success(ctx, p.ID(), req.Context, resp)
}

// resolveFallback walks the priority order for the requested track.
// allowDegrade guards the single dub-to-sub retry.
func (m *Manager) resolveFallback(ctx context.Context, req Request, allowDegrade bool) models.WatchResult {
	order := m.orderSub
	if req.Track == models.TrackDub {
		order = m.orderDub
	}
	if !req.AutoSelect && len(order) > 0 {
		order = order[:1]
	}

	for _, id := range order {
		p, ok := m.providers[id]
		if !ok {
			continue
		}

		resp, err := attempt(ctx, p, req.Context, req.Track)
		if err != nil {
			// An unsupported precondition or any failure moves to the
			// next provider; the distinction matters only for logs.
			if errors.Is(err, providers.ErrUnsupported) {
				util.Debug("provider skipped", "provider", id, "reason", err)
			} else {
				util.Debug("provider failed", "provider", id, "track", req.Track, "error", err)
			}
			continue
		}
		return m.success(ctx, id, req.Context, resp)
	}

	// Graceful degradation: one retry as sub when no provider can
	// supply dub. Not a second independent escalation.
	if req.Track == models.TrackDub && allowDegrade {
		util.Debug("dub exhausted, degrading to sub", "episode", req.Context.Episode)
		sub := req
		sub.Track = models.TrackSub
		return m.resolveFallback(ctx, sub, false)
	}

	return failure("", fmt.Sprintf("no provider could supply %s sources for episode %d", req.Track, req.Context.Episode))
}

// attempt invokes one provider, converting panics into errors so a
// misbehaving adapter can never abort the fallback chain.
func attempt(ctx context.Context, p providers.Provider, ref models.EpisodeContext, track models.AudioTrack) (resp *models.WatchResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = errors.Errorf("provider %s panicked: %v", p.ID(), r)
		}
	}()

	resp, err = p.GetWatchData(ctx, ref, track)
	if err != nil {
		return nil, err
	}
	// "Empty success" is not success.
	if resp == nil || len(resp.Sources) == 0 {
		return nil, providers.ErrNoSources
	}
	return resp, nil
}

// safeAvailability shields the prober loop from adapter panics.
func safeAvailability(ctx context.Context, p providers.Provider, ref models.EpisodeContext) (avail models.Availability) {
	defer func() {
		if r := recover(); r != nil {
			avail = models.Availability{Sub: true, Dub: true}
		}
	}()
	return p.CheckEpisodeAvailability(ctx, ref)
}

// success enriches and wraps a winning response.
func (m *Manager) success(ctx context.Context, id models.ProviderID, ref models.EpisodeContext, resp *models.WatchResponse) models.WatchResult {
	if resp.Timings == nil && m.skips != nil && ref.MalID > 0 {
		resp.Timings = m.skips.GetOrSynthetic(ctx, ref.MalID, ref.Episode)
	}
	util.Debug("watch data resolved", "provider", id, "sources", len(resp.Sources))
	return models.WatchResult{Provider: id, Success: true, Data: resp}
}

// fillTitle derives a search title from the metadata graph when the
// request carries only an AniList id. Best effort.
func (m *Manager) fillTitle(ctx context.Context, ref *models.EpisodeContext) {
	if ref.Title != "" || ref.AnilistID <= 0 || m.metadata == nil {
		return
	}
	title, err := m.metadata.Lookup(ctx, ref.AnilistID)
	if err != nil {
		util.Debug("title lookup failed", "anilistID", ref.AnilistID, "error", err)
		return
	}
	ref.Title = title.Preferred()
	if ref.MalID == 0 {
		ref.MalID = title.MalID
	}
}

func failure(id models.ProviderID, msg string) models.WatchResult {
	return models.WatchResult{Provider: id, Success: false, Error: msg, Data: &models.WatchResponse{}}
}
