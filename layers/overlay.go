package layers

import (
	"sort"
	"sync"
)

// Overlay is what the registry tracks per layer name: either one handle
// (primary geometry, VPU boundaries) or a per-basin mapping of handles
// (derived layers). Style and visibility application are polymorphic over
// the two variants; nil handles are always skipped.
type Overlay interface {
	// ApplyStyle restyles every live handle.
	ApplyStyle(s Surface, st Style)
	// SetVisible shows or hides every live handle. Idempotent.
	SetVisible(s Surface, visible bool)
	// Handles returns the current non-nil handles.
	Handles() []Handle
}

// Single wraps one overlay handle, replaceable as new geometry resolves.
type Single struct {
	mu sync.Mutex
	h  Handle
}

// NewSingle creates a Single holding h (which may be nil).
func NewSingle(h Handle) *Single {
	return &Single{h: h}
}

// Set replaces the held handle. The caller removes the old handle from the
// surface first; Single only stores.
func (o *Single) Set(h Handle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.h = h
}

// Handle returns the held handle, which may be nil.
func (o *Single) Handle() Handle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.h
}

func (o *Single) ApplyStyle(s Surface, st Style) {
	if h := o.Handle(); h != nil {
		s.SetStyle(h, st)
	}
}

func (o *Single) SetVisible(s Surface, visible bool) {
	h := o.Handle()
	if h == nil {
		return
	}
	if visible {
		s.Add(h)
	} else {
		s.Remove(h)
	}
}

func (o *Single) Handles() []Handle {
	if h := o.Handle(); h != nil {
		return []Handle{h}
	}
	return nil
}

// Keyed maps basin ids to overlay handles for a derived layer. A nil handle
// value marks a pending fetch for that basin.
type Keyed struct {
	mu sync.Mutex
	m  map[string]Handle
}

// NewKeyed creates an empty keyed overlay.
func NewKeyed() *Keyed {
	return &Keyed{m: make(map[string]Handle)}
}

// Set records the handle for a basin id. h may be nil (pending).
func (o *Keyed) Set(id string, h Handle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.m[id] = h
}

// Delete forgets a basin id entirely.
func (o *Keyed) Delete(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.m, id)
}

// Get returns the handle for a basin id. ok is false when the id is not
// tracked at all; a tracked-but-pending id returns (nil, true).
func (o *Keyed) Get(id string) (Handle, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	h, ok := o.m[id]
	return h, ok
}

// Keys returns all tracked basin ids, sorted for determinism.
func (o *Keyed) Keys() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.m))
	for id := range o.m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (o *Keyed) ApplyStyle(s Surface, st Style) {
	for _, h := range o.Handles() {
		s.SetStyle(h, st)
	}
}

func (o *Keyed) SetVisible(s Surface, visible bool) {
	for _, h := range o.Handles() {
		if visible {
			s.Add(h)
		} else {
			s.Remove(h)
		}
	}
}

func (o *Keyed) Handles() []Handle {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.m))
	for id, h := range o.m {
		if h != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]Handle, 0, len(ids))
	for _, id := range ids {
		out = append(out, o.m[id])
	}
	return out
}
