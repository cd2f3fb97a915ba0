package server

import (
	"encoding/json"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/hydrofabric/basinmap/layers"
)

// overlayOp is one surface mutation on the wire. Browsers replay these to
// mirror the server's overlay state.
type overlayOp struct {
	Type     string                     `json:"type"`
	ID       string                     `json:"id"`
	Layer    string                     `json:"layer,omitempty"`
	Style    layers.Style               `json:"style,omitempty"`
	Features *geojson.FeatureCollection `json:"features,omitempty"`
}

// WSSurface is the production map surface: an in-memory surface holding the
// canonical overlay state, with every mutation broadcast to connected
// clients. New clients get a snapshot replay on connect.
type WSSurface struct {
	*layers.MemorySurface
	server *Server

	mu    sync.Mutex
	shown map[string]layers.Handle // shown overlay id -> handle
}

// NewWSSurface creates the broadcasting surface for a server.
func NewWSSurface(s *Server) *WSSurface {
	return &WSSurface{
		MemorySurface: layers.NewMemorySurface(),
		server:        s,
		shown:         make(map[string]layers.Handle),
	}
}

func (ws *WSSurface) emit(op overlayOp) {
	raw, err := json.Marshal(op)
	if err != nil {
		ws.server.log.Errorw("Encoding overlay op failed", "type", op.Type, "error", err)
		return
	}
	ws.server.broadcastMessage(raw)
}

func (ws *WSSurface) Add(h layers.Handle) {
	if h == nil || ws.Shown(h) {
		return
	}
	ws.MemorySurface.Add(h)

	ws.mu.Lock()
	ws.shown[h.ID()] = h
	ws.mu.Unlock()

	ws.emit(ws.addOp(h))
}

func (ws *WSSurface) Remove(h layers.Handle) {
	if h == nil || !ws.Shown(h) {
		return
	}
	ws.MemorySurface.Remove(h)

	ws.mu.Lock()
	delete(ws.shown, h.ID())
	ws.mu.Unlock()

	ws.emit(overlayOp{Type: "overlay_remove", ID: h.ID()})
}

func (ws *WSSurface) SetStyle(h layers.Handle, st layers.Style) {
	if h == nil {
		return
	}
	ws.MemorySurface.SetStyle(h, st)
	ws.emit(overlayOp{Type: "overlay_style", ID: h.ID(), Style: st})
}

func (ws *WSSurface) Raise(h layers.Handle) {
	if h == nil || !ws.Shown(h) {
		return
	}
	ws.MemorySurface.Raise(h)
	ws.emit(overlayOp{Type: "overlay_raise", ID: h.ID()})
}

func (ws *WSSurface) addOp(h layers.Handle) overlayOp {
	return overlayOp{
		Type:     "overlay_add",
		ID:       h.ID(),
		Layer:    ws.LayerOf(h),
		Style:    ws.StyleOf(h),
		Features: ws.FeatureOf(h),
	}
}

// snapshot returns add frames for every shown overlay, bottom to top, so a
// fresh client reconstructs the exact draw order.
func (ws *WSSurface) snapshot() [][]byte {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	var frames [][]byte
	for _, id := range ws.ZOrder() {
		h, ok := ws.shown[id]
		if !ok {
			continue
		}
		raw, err := json.Marshal(ws.addOp(h))
		if err != nil {
			continue
		}
		frames = append(frames, raw)
	}
	return frames
}

var _ layers.Surface = (*WSSurface)(nil)
