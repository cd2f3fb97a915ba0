package layers

import (
	"sync"

	"go.uber.org/zap"

	"github.com/hydrofabric/basinmap/settings"
)

// Registry associates layer names with their live overlays and keeps each
// overlay's style and visibility in sync with the settings store.
//
// Style and visibility callbacks are bound exactly once per name, on first
// registration; re-registering a name replaces the stored overlay without
// duplicating handlers.
type Registry struct {
	mu       sync.Mutex
	surface  Surface
	store    *settings.Store
	overlays map[string]Overlay
	bound    map[string]bool
	log      *zap.SugaredLogger
}

// NewRegistry creates a registry applying changes to the given surface.
func NewRegistry(surface Surface, store *settings.Store, log *zap.SugaredLogger) *Registry {
	return &Registry{
		surface:  surface,
		store:    store,
		overlays: make(map[string]Overlay),
		bound:    make(map[string]bool),
		log:      log,
	}
}

// Register associates name with an overlay, replacing any previous one.
func (r *Registry) Register(name string, ov Overlay) {
	def, known := DefFor(name)

	r.mu.Lock()
	r.overlays[name] = ov
	alreadyBound := r.bound[name]
	r.bound[name] = true
	r.mu.Unlock()

	if alreadyBound {
		return
	}
	if !known {
		r.log.Warnw("Registering layer with no settings binding", "layer", name)
		return
	}

	r.store.OnGroupChange(def.Base+".style", func(string, settings.Value) {
		r.applyStyle(name)
	})
	r.store.OnChange(def.Toggle, func(string, settings.Value) {
		r.applyVisibility(name)
	})
}

// Overlay returns the overlay registered under name.
func (r *Registry) Overlay(name string) (Overlay, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ov, ok := r.overlays[name]
	return ov, ok
}

// Surface returns the map surface all registry mutations go through.
func (r *Registry) Surface() Surface {
	return r.surface
}

// StyleFor assembles the current style for a layer from the settings store.
func (r *Registry) StyleFor(name string) Style {
	def, ok := DefFor(name)
	if !ok {
		return Style{}
	}
	group := r.store.Group(def.Base + ".style")
	st := make(Style, len(group))
	for k, v := range group {
		st[k] = v
	}
	return st
}

// Visible reports the current toggle state for a layer.
func (r *Registry) Visible(name string) bool {
	def, ok := DefFor(name)
	if !ok {
		return true
	}
	return r.store.Bool(def.Toggle)
}

func (r *Registry) applyStyle(name string) {
	ov, ok := r.Overlay(name)
	if !ok {
		return
	}
	ov.ApplyStyle(r.surface, r.StyleFor(name))
}

func (r *Registry) applyVisibility(name string) {
	ov, ok := r.Overlay(name)
	if !ok {
		return
	}
	ov.SetVisible(r.surface, r.Visible(name))
}
