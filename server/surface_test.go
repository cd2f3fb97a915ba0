package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hydrofabric/basinmap/config"
	"github.com/hydrofabric/basinmap/layers"
	"github.com/hydrofabric/basinmap/selection"
)

// newFrameServer builds a server whose hub is NOT running, so every emitted
// overlay frame stays readable on the broadcast channel.
func newFrameServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.Output.Dir = t.TempDir()
	return New(cfg, hydroFixture(t), nil, zap.NewNop().Sugar())
}

func nextFrame(t *testing.T, s *Server) overlayOp {
	t.Helper()
	select {
	case raw := <-s.broadcast:
		var op overlayOp
		require.NoError(t, json.Unmarshal(raw, &op))
		return op
	case <-time.After(time.Second):
		t.Fatal("no overlay frame broadcast")
		return overlayOp{}
	}
}

func fcOf(t *testing.T, g orb.Geometry) *geojson.FeatureCollection {
	t.Helper()
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(g))
	return fc
}

func TestSurfaceBroadcastsMutations(t *testing.T) {
	s := newFrameServer(t)
	fc := fcOf(t, orb.Point{0, 0})

	h := s.surface.Create(layers.LayerSelected, fc, layers.Style{"color": "#000"})
	s.surface.Add(h)

	op := nextFrame(t, s)
	assert.Equal(t, "overlay_add", op.Type)
	assert.Equal(t, h.ID(), op.ID)
	assert.Equal(t, layers.LayerSelected, op.Layer)
	require.NotNil(t, op.Features)
	assert.Len(t, op.Features.Features, 1)

	s.surface.SetStyle(h, layers.Style{"color": "#fff"})
	op = nextFrame(t, s)
	assert.Equal(t, "overlay_style", op.Type)
	assert.Equal(t, "#fff", op.Style["color"])

	s.surface.Raise(h)
	op = nextFrame(t, s)
	assert.Equal(t, "overlay_raise", op.Type)

	s.surface.Remove(h)
	op = nextFrame(t, s)
	assert.Equal(t, "overlay_remove", op.Type)
	assert.Equal(t, h.ID(), op.ID)
}

func TestSurfaceIgnoresRedundantOps(t *testing.T) {
	s := newFrameServer(t)
	h := s.surface.Create(layers.LayerSelected, fcOf(t, orb.Point{0, 0}), nil)

	s.surface.Remove(h) // never shown
	s.surface.Raise(h)

	select {
	case raw := <-s.broadcast:
		t.Fatalf("unexpected frame: %s", raw)
	case <-time.After(50 * time.Millisecond):
	}

	s.surface.Add(h)
	s.surface.Add(h) // second add is a no-op

	op := nextFrame(t, s)
	assert.Equal(t, "overlay_add", op.Type)
	select {
	case raw := <-s.broadcast:
		t.Fatalf("duplicate add frame: %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSnapshotPreservesDrawOrder(t *testing.T) {
	s := newFrameServer(t)

	bottom := s.surface.Create(layers.LayerNexusCircles, fcOf(t, orb.Point{0, 0}), nil)
	top := s.surface.Create(layers.LayerSelected, fcOf(t, orb.Point{1, 1}), nil)
	s.surface.Add(bottom)
	s.surface.Add(top)

	frames := s.surface.snapshot()
	require.Len(t, frames, 2)

	var first, second overlayOp
	require.NoError(t, json.Unmarshal(frames[0], &first))
	require.NoError(t, json.Unmarshal(frames[1], &second))
	assert.Equal(t, bottom.ID(), first.ID)
	assert.Equal(t, top.ID(), second.ID)
	assert.Equal(t, "overlay_add", first.Type)
}

// readOp reads one frame off a live WebSocket connection.
func readOp(t *testing.T, conn *websocket.Conn) overlayOp {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var op overlayOp
	require.NoError(t, json.Unmarshal(raw, &op))
	return op
}

func TestWebSocketSnapshotAndLiveFrames(t *testing.T) {
	s, srv := newTestServer(t)

	// Select a basin before connecting; the snapshot must replay it.
	_, err := s.ctrl.HandleClick(context.Background(), selection.Coordinate{Lat: 0.5, Lng: 0.5})
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	op := readOp(t, conn)
	assert.Equal(t, "overlay_add", op.Type)

	// Deselect over the live connection and expect removal frames.
	click, err := json.Marshal(map[string]interface{}{
		"type":        "click",
		"coordinates": map[string]float64{"lat": 0.5, "lng": 0.5},
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, click))

	deadline := time.Now().Add(2 * time.Second)
	sawRemove := false
	for time.Now().Before(deadline) && !sawRemove {
		op := readOp(t, conn)
		if op.Type == "overlay_remove" {
			sawRemove = true
		}
	}
	assert.True(t, sawRemove, "deselection broadcast overlay_remove")
	assert.Equal(t, 0, s.sel.Len())
}

func TestWebSocketSetSetting(t *testing.T) {
	s, srv := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	msg, err := json.Marshal(map[string]interface{}{
		"type":  "set_setting",
		"path":  ".flowlines.toggle",
		"value": false,
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg))

	require.Eventually(t, func() bool {
		return !s.settings.Bool(".flowlines.toggle")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketRejectsBadOrigin(t *testing.T) {
	_, srv := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	if resp != nil {
		resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}
