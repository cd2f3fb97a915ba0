// Package layers tracks the live overlay objects shown on the map surface
// and keeps their style and visibility in sync with the settings store.
package layers

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/hydrofabric/basinmap/settings"
)

// Style is a flat bag of rendering options (color, weight, opacity, ...)
// as assembled from the settings store.
type Style map[string]settings.Value

// Handle is an opaque reference to one overlay owned by a Surface. The layer
// map holding a handle is responsible for removing it from the surface before
// discarding or replacing it.
type Handle interface {
	ID() string
}

// Surface is the single shared mutable map resource. Every overlay
// add/remove is funneled through here.
type Surface interface {
	// Create builds an overlay for the given layer but does not show it.
	Create(layer string, fc *geojson.FeatureCollection, st Style) Handle
	// Add shows an overlay. Idempotent: adding a shown overlay is a no-op.
	Add(h Handle)
	// Remove hides an overlay. Idempotent: removing a hidden overlay is a
	// no-op. The handle stays valid and can be re-added.
	Remove(h Handle)
	// SetStyle restyles an overlay whether or not it is shown.
	SetStyle(h Handle, st Style)
	// Raise moves a shown overlay to the top of the draw order.
	Raise(h Handle)
	// Shown reports whether the overlay is currently on the map.
	Shown(h Handle) bool
}

// memHandle is MemorySurface's overlay record.
type memHandle struct {
	id    string
	layer string
	fc    *geojson.FeatureCollection
	style Style
	shown bool
}

func (h *memHandle) ID() string { return h.id }

// MemorySurface is an in-process Surface that records overlays and draw
// order. It backs the WebSocket surface (which mirrors mutations out to
// browsers) and stands alone in tests.
type MemorySurface struct {
	mu     sync.Mutex
	nextID int
	order  []*memHandle // bottom to top, shown overlays only
}

// NewMemorySurface creates an empty surface.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{}
}

func (m *MemorySurface) Create(layer string, fc *geojson.FeatureCollection, st Style) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return &memHandle{
		id:    fmt.Sprintf("ovl-%d", m.nextID),
		layer: layer,
		fc:    fc,
		style: st,
	}
}

func (m *MemorySurface) Add(h Handle) {
	mh, ok := h.(*memHandle)
	if !ok || mh == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if mh.shown {
		return
	}
	mh.shown = true
	m.order = append(m.order, mh)
}

func (m *MemorySurface) Remove(h Handle) {
	mh, ok := h.(*memHandle)
	if !ok || mh == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !mh.shown {
		return
	}
	mh.shown = false
	for i, o := range m.order {
		if o == mh {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *MemorySurface) SetStyle(h Handle, st Style) {
	mh, ok := h.(*memHandle)
	if !ok || mh == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	mh.style = st
}

func (m *MemorySurface) Raise(h Handle) {
	mh, ok := h.(*memHandle)
	if !ok || mh == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !mh.shown {
		return
	}
	for i, o := range m.order {
		if o == mh {
			m.order = append(m.order[:i], m.order[i+1:]...)
			m.order = append(m.order, mh)
			return
		}
	}
}

func (m *MemorySurface) Shown(h Handle) bool {
	mh, ok := h.(*memHandle)
	if !ok || mh == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return mh.shown
}

// ZOrder returns the ids of shown overlays from bottom to top.
func (m *MemorySurface) ZOrder() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	for i, o := range m.order {
		out[i] = o.id
	}
	return out
}

// Above reports whether overlay a draws strictly above overlay b.
func (m *MemorySurface) Above(a, b Handle) bool {
	if a == nil || b == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ai, bi := -1, -1
	for i, o := range m.order {
		if o.id == a.ID() {
			ai = i
		}
		if o.id == b.ID() {
			bi = i
		}
	}
	return ai > bi && bi >= 0
}

// LayerOf returns the layer name an overlay was created under.
func (m *MemorySurface) LayerOf(h Handle) string {
	if mh, ok := h.(*memHandle); ok && mh != nil {
		return mh.layer
	}
	return ""
}

// StyleOf returns the overlay's current style.
func (m *MemorySurface) StyleOf(h Handle) Style {
	mh, ok := h.(*memHandle)
	if !ok || mh == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return mh.style
}

// FeatureOf returns the overlay's feature collection.
func (m *MemorySurface) FeatureOf(h Handle) *geojson.FeatureCollection {
	if mh, ok := h.(*memHandle); ok && mh != nil {
		return mh.fc
	}
	return nil
}

// ShownCount returns the number of overlays currently on the map.
func (m *MemorySurface) ShownCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}
