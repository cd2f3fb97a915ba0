// Package engine reconciles the derived map layers against the basin
// selection. Every selection change triggers a synchronization pass that
// tears down overlays for deselected basins, fetches geometry for newly
// selected ones, and restores a deterministic draw order once all fetches
// settle.
package engine

import (
	"context"
	"sync"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hydrofabric/basinmap/layers"
	"github.com/hydrofabric/basinmap/selection"
)

// family tracks one derived layer family: the per-basin fetch state and the
// keyed overlay per sub-layer.
type family struct {
	sublayers []string
	overlays  map[string]*layers.Keyed
	entries   map[string]*familyEntry
}

// familyEntry is the per-basin fetch state within a family. A seeded entry
// with resolved=false is a pending fetch; handles fill in on resolution.
// inflight guards against duplicate issuance across overlapping passes while
// still letting a later pass retry an entry whose fetch failed.
type familyEntry struct {
	resolved bool
	inflight bool
	handles  map[string]layers.Handle
}

func newFamily(sublayers []string) *family {
	f := &family{
		sublayers: sublayers,
		overlays:  make(map[string]*layers.Keyed, len(sublayers)),
		entries:   make(map[string]*familyEntry),
	}
	for _, name := range sublayers {
		f.overlays[name] = layers.NewKeyed()
	}
	return f
}

// Draw order, lowest first. Enforced by re-raising after each pass settles,
// because insertion order is nondeterministic under concurrent fetches.
var raiseOrder = []string{
	layers.LayerNexusCircles,
	layers.LayerNexus,
	layers.LayerMergedGeometry,
	layers.LayerMergedTolines,
	layers.LayerMergedFromNexus,
	layers.LayerToWB,
	layers.LayerToNexus,
	layers.LayerSelected,
}

// Engine keeps the derived layer families consistent with the selection.
type Engine struct {
	mu      sync.Mutex
	sel     *selection.State
	reg     *layers.Registry
	surface layers.Surface
	fetcher Fetcher
	log     *zap.SugaredLogger
	limiter *rate.Limiter // nil = unlimited

	primary    *layers.Single
	primaryGen uint64 // claimed per pass with the snapshot; stale results discard

	upstream  *family
	flowlines *family
}

// New creates an engine and registers its overlays with the layer registry.
func New(sel *selection.State, reg *layers.Registry, fetcher Fetcher, log *zap.SugaredLogger) *Engine {
	e := &Engine{
		sel:       sel,
		reg:       reg,
		surface:   reg.Surface(),
		fetcher:   fetcher,
		log:       log,
		primary:   layers.NewSingle(nil),
		upstream:  newFamily(layers.UpstreamLayers),
		flowlines: newFamily(layers.FlowlineLayers),
	}

	reg.Register(layers.LayerSelected, e.primary)
	for name, ov := range e.upstream.overlays {
		reg.Register(name, ov)
	}
	for name, ov := range e.flowlines.overlays {
		reg.Register(name, ov)
	}

	return e
}

// SetRateLimit caps derived-geometry fetch issuance. Zero disables the cap.
func (e *Engine) SetRateLimit(perSecond float64, burst int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if perSecond <= 0 {
		e.limiter = nil
		return
	}
	if burst < 1 {
		burst = 1
	}
	e.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Sync runs one reconciliation pass against the current selection. Safe to
// run concurrently with a prior still-in-flight pass: seeding prevents
// duplicate fetches and every resolution re-checks membership before
// installing.
func (e *Engine) Sync(ctx context.Context) {
	e.mu.Lock()
	// Snapshot and generation are claimed under the same lock, so a pass
	// that observed a newer selection always carries a higher generation.
	snap := e.sel.Snapshot()
	e.primaryGen++
	gen := e.primaryGen

	// Teardown first, so stale overlays never outlive deselection even
	// while fetches for those keys are still in flight.
	e.teardownLocked(e.upstream, snap)
	e.teardownLocked(e.flowlines, snap)

	// Seed pending entries for new keys. A concurrent pass sees the entry
	// and does not re-issue the fetch.
	newUpstream := e.seedLocked(e.upstream, snap)
	newFlowlines := e.seedLocked(e.flowlines, snap)
	e.mu.Unlock()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.refreshPrimary(ctx, gen, snap)
	}()

	for _, id := range newUpstream {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.fetchUpstream(ctx, id)
		}()
	}
	for _, id := range newFlowlines {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.fetchFlowlines(ctx, id)
		}()
	}

	wg.Wait()

	e.mu.Lock()
	e.raiseLocked()
	e.mu.Unlock()
}

// teardownLocked removes overlays and tracking for keys no longer selected.
func (e *Engine) teardownLocked(f *family, snap map[string]selection.Coordinate) {
	for id, ent := range f.entries {
		if _, ok := snap[id]; ok {
			continue
		}
		for _, h := range ent.handles {
			if h != nil {
				e.surface.Remove(h)
			}
		}
		for _, name := range f.sublayers {
			f.overlays[name].Delete(id)
		}
		delete(f.entries, id)
	}
}

// seedLocked creates pending entries for selected keys not yet tracked and
// returns the keys needing a fetch this pass: new keys, plus pending keys
// whose previous fetch failed and is no longer in flight.
func (e *Engine) seedLocked(f *family, snap map[string]selection.Coordinate) []string {
	var fetch []string
	for id := range snap {
		ent, ok := f.entries[id]
		if !ok {
			ent = &familyEntry{handles: make(map[string]layers.Handle)}
			f.entries[id] = ent
			for _, name := range f.sublayers {
				f.overlays[name].Set(id, nil)
			}
		}
		if ent.resolved || ent.inflight {
			continue
		}
		ent.inflight = true
		fetch = append(fetch, id)
	}
	return fetch
}

// refreshPrimary replaces the combined primary geometry overlay, or removes
// it when the selection is empty. gen is the generation Sync claimed with
// the snapshot; only the result of the highest generation installs.
func (e *Engine) refreshPrimary(ctx context.Context, gen uint64, snap map[string]selection.Coordinate) {
	if len(snap) == 0 {
		e.mu.Lock()
		defer e.mu.Unlock()
		if gen != e.primaryGen {
			return
		}
		if h := e.primary.Handle(); h != nil {
			e.surface.Remove(h)
			e.primary.Set(nil)
		}
		return
	}

	fc, err := e.fetcher.SelectedGeometry(ctx, snap)
	if err != nil {
		e.log.Errorw("Primary geometry fetch failed",
			"basins", len(snap),
			"error", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.primaryGen {
		// A newer pass owns the primary overlay now.
		return
	}
	if old := e.primary.Handle(); old != nil {
		e.surface.Remove(old)
	}
	h := e.surface.Create(layers.LayerSelected, fc, e.reg.StyleFor(layers.LayerSelected))
	if e.reg.Visible(layers.LayerSelected) {
		e.surface.Add(h)
	}
	e.primary.Set(h)
}

// fetchUpstream resolves one basin's upstream geometry and installs it if
// the basin is still selected on arrival.
func (e *Engine) fetchUpstream(ctx context.Context, id string) {
	e.waitLimiter(ctx)

	fcs, err := e.fetcher.UpstreamGeometry(ctx, id)

	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.upstream.entries[id]
	if !ok || ent.resolved {
		// Torn down while in flight, or resolved by an earlier pass.
		return
	}
	ent.inflight = false
	if !e.sel.Contains(id) {
		// Deselected between teardown and arrival; discard silently.
		return
	}
	if err != nil {
		e.log.Errorw("Upstream geometry fetch failed", "wb_id", id, "error", err)
		return // entry stays pending; a later pass may retry
	}

	for _, name := range e.upstream.sublayers {
		fc := fcs[name]
		if fc == nil {
			continue
		}
		e.installLocked(e.upstream, ent, id, name, fc)
	}
	ent.resolved = true
}

// fetchFlowlines resolves one basin's downstream flowline geometry.
func (e *Engine) fetchFlowlines(ctx context.Context, id string) {
	e.waitLimiter(ctx)

	set, err := e.fetcher.Flowlines(ctx, id)

	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.flowlines.entries[id]
	if !ok || ent.resolved {
		return
	}
	ent.inflight = false
	if !e.sel.Contains(id) {
		return
	}
	if err != nil {
		e.log.Errorw("Flowline fetch failed", "wb_id", id, "error", err)
		return
	}

	if set.ToWB != nil {
		e.installLocked(e.flowlines, ent, id, layers.LayerToWB, set.ToWB)
	}
	if set.ToNexus != nil {
		e.installLocked(e.flowlines, ent, id, layers.LayerToNexus, set.ToNexus)
	}
	if set.Nexus != nil {
		e.installLocked(e.flowlines, ent, id, layers.LayerNexus, set.Nexus)
	}
	ent.resolved = true
}

// raiseLocked restores draw order after a pass settles: primary above
// flowlines, flowlines above merged upstream geometry, nexus markers lowest.
func (e *Engine) raiseLocked() {
	for _, name := range raiseOrder {
		ov, ok := e.reg.Overlay(name)
		if !ok {
			continue
		}
		for _, h := range ov.Handles() {
			e.surface.Raise(h)
		}
	}
}

func (e *Engine) waitLimiter(ctx context.Context) {
	e.mu.Lock()
	limiter := e.limiter
	e.mu.Unlock()
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			e.log.Debugw("Fetch limiter wait aborted", "error", err)
		}
	}
}

// PendingCount returns how many basin entries are still awaiting geometry,
// across both derived families. For status reporting.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, f := range []*family{e.upstream, e.flowlines} {
		for _, ent := range f.entries {
			if !ent.resolved {
				n++
			}
		}
	}
	return n
}

// TrackedKeys returns the basin ids tracked by the named family
// ("upstream" or "flowlines"), for tests and status endpoints.
func (e *Engine) TrackedKeys(familyName string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var f *family
	switch familyName {
	case "upstream":
		f = e.upstream
	case "flowlines":
		f = e.flowlines
	default:
		return nil
	}
	out := make([]string, 0, len(f.entries))
	for id := range f.entries {
		out = append(out, id)
	}
	return out
}

// PrimaryHandle exposes the current primary overlay handle for tests and
// status reporting. May be nil.
func (e *Engine) PrimaryHandle() layers.Handle {
	return e.primary.Handle()
}

// installLocked creates, styles, shows, and records one sub-layer overlay.
func (e *Engine) installLocked(f *family, ent *familyEntry, id, name string, fc *geojson.FeatureCollection) {
	h := e.surface.Create(name, fc, e.reg.StyleFor(name))
	if e.reg.Visible(name) {
		e.surface.Add(h)
	}
	f.overlays[name].Set(id, h)
	ent.handles[name] = h
}
