package layers

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/hydrofabric/basinmap/settings"
)

func testFC() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{-89.5, 40.1}))
	return fc
}

func newTestRegistry() (*Registry, *MemorySurface, *settings.Store) {
	surface := NewMemorySurface()
	store := settings.NewDefaultStore()
	reg := NewRegistry(surface, store, zap.NewNop().Sugar())
	return reg, surface, store
}

func TestStyleChangeUpdatesHandle(t *testing.T) {
	reg, surface, store := newTestRegistry()

	h := surface.Create(LayerSelected, testFC(), reg.StyleFor(LayerSelected))
	surface.Add(h)
	reg.Register(LayerSelected, NewSingle(h))

	store.Set(".geometries.selected_wb_layer.style.color", "#ff0000")

	st := surface.StyleOf(h)
	if st["color"] != "#ff0000" {
		t.Fatalf("expected color #ff0000, got %v", st["color"])
	}
	// The rest of the style block rides along on any sub-field change.
	if st["weight"] != 2.0 {
		t.Errorf("expected weight 2.0 preserved, got %v", st["weight"])
	}
}

func TestVisibilityToggle(t *testing.T) {
	reg, surface, store := newTestRegistry()

	h := surface.Create(LayerToWB, testFC(), nil)
	surface.Add(h)
	keyed := NewKeyed()
	keyed.Set("wb-1000", h)
	reg.Register(LayerToWB, keyed)

	store.Set(".flowlines.toggle", false)
	if surface.Shown(h) {
		t.Fatal("overlay should be hidden after toggle off")
	}

	store.Set(".flowlines.toggle", true)
	if !surface.Shown(h) {
		t.Fatal("overlay should be shown after toggle on")
	}

	// Idempotent: toggling on again must not error or duplicate.
	store.Set(".flowlines.toggle", true)
	if got := surface.ShownCount(); got != 1 {
		t.Fatalf("expected exactly 1 shown overlay, got %d", got)
	}
}

func TestNilEntriesSkipped(t *testing.T) {
	reg, surface, store := newTestRegistry()

	keyed := NewKeyed()
	keyed.Set("wb-1000", nil) // pending fetch
	h := surface.Create(LayerMergedGeometry, testFC(), nil)
	surface.Add(h)
	keyed.Set("wb-1001", h)
	reg.Register(LayerMergedGeometry, keyed)

	// Must not panic on the nil entry.
	store.Set(".geometries.upstream.merged_geometry.style.color", "#123456")
	store.Set(".geometries.upstream.toggle", false)

	if surface.Shown(h) {
		t.Fatal("resolved handle should be hidden")
	}
}

func TestReRegisterDoesNotRebindCallbacks(t *testing.T) {
	reg, surface, store := newTestRegistry()

	h1 := surface.Create(LayerSelected, testFC(), nil)
	surface.Add(h1)
	reg.Register(LayerSelected, NewSingle(h1))

	// Replace the overlay, as the engine does when new primary geometry
	// resolves.
	h2 := surface.Create(LayerSelected, testFC(), nil)
	surface.Add(h2)
	reg.Register(LayerSelected, NewSingle(h2))

	store.Set(".geometries.selected_wb_layer.style.color", "#00ff00")

	// Only the current handle is restyled; the stale one keeps its style,
	// proving the callback reads the registry rather than capturing h1.
	if st := surface.StyleOf(h2); st["color"] != "#00ff00" {
		t.Fatalf("current handle not restyled: %v", st)
	}
	if st := surface.StyleOf(h1); st != nil && st["color"] == "#00ff00" {
		t.Fatal("stale handle should not be restyled")
	}
}

func TestKeyedTracksPendingSeparately(t *testing.T) {
	keyed := NewKeyed()
	keyed.Set("wb-1", nil)

	if _, ok := keyed.Get("wb-1"); !ok {
		t.Fatal("pending entry should be tracked")
	}
	if _, ok := keyed.Get("wb-2"); ok {
		t.Fatal("unknown id should not be tracked")
	}
	if n := len(keyed.Handles()); n != 0 {
		t.Fatalf("pending entries should not appear in Handles, got %d", n)
	}

	keyed.Delete("wb-1")
	if _, ok := keyed.Get("wb-1"); ok {
		t.Fatal("deleted entry should be gone")
	}
}

func TestMemorySurfaceZOrder(t *testing.T) {
	surface := NewMemorySurface()
	a := surface.Create("a", testFC(), nil)
	b := surface.Create("b", testFC(), nil)
	surface.Add(a)
	surface.Add(b)

	if !surface.Above(b, a) {
		t.Fatal("later add should draw above")
	}

	surface.Raise(a)
	if !surface.Above(a, b) {
		t.Fatal("raise should move overlay to top")
	}

	surface.Remove(a)
	surface.Remove(a) // idempotent
	if surface.Shown(a) {
		t.Fatal("removed overlay should not be shown")
	}
	if surface.ShownCount() != 1 {
		t.Fatal("exactly one overlay should remain shown")
	}
}
