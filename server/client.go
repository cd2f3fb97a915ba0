package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/paulmach/orb/geojson"

	"github.com/hydrofabric/basinmap/selection"
	"github.com/hydrofabric/basinmap/settings"
)

// WebSocket timeout constants following Gorilla best practices
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// Client is one connected browser.
type Client struct {
	server *Server
	conn   *websocket.Conn
	send   chan []byte
	id     string
}

// clientMessage is the incoming WebSocket frame shape. Type selects which
// fields matter.
type clientMessage struct {
	Type        string            `json:"type"`
	Coordinates coordinatePayload `json:"coordinates"`
	VPU         string            `json:"vpu"`
	Geometry    *geojson.Geometry `json:"geometry"`
	Path        string            `json:"path"`
	Value       settings.Value    `json:"value"`
}

// handleWebSocket upgrades the connection and starts the client pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  2048,
		WriteBufferSize: 2048,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("WebSocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		server: s,
		conn:   conn,
		send:   make(chan []byte, 256),
		id:     uuid.NewString(),
	}
	s.register <- client

	go client.writePump()
	go client.readPump()
}

// sendSnapshot queues the current overlay state for a fresh client.
func (c *Client) sendSnapshot() {
	for _, frame := range c.server.surface.snapshot() {
		select {
		case c.send <- frame:
		default:
			return // client already backed up; it will resync on reconnect
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.server.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			break
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.server.log.Warnw("Bad WebSocket message",
				"client_id", c.id,
				"error", err)
			continue
		}
		c.routeMessage(&msg)
	}
}

// handleReadError logs unexpected WebSocket read errors. Expected closure
// codes are silently ignored.
func (c *Client) handleReadError(err error) {
	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived,
	) {
		c.server.log.Warnw("WebSocket read error",
			"client_id", c.id,
			"error", err)
	}
}

// routeMessage dispatches incoming WebSocket messages.
func (c *Client) routeMessage(msg *clientMessage) {
	ctx := c.server.ctx
	switch msg.Type {
	case "click":
		if _, err := c.server.ctrl.HandleClick(ctx, selection.Coordinate{
			Lat: msg.Coordinates.Lat,
			Lng: msg.Coordinates.Lng,
		}); err != nil {
			c.server.log.Errorw("Click handling failed", "client_id", c.id, "error", err)
		}
	case "vpu_click":
		if _, _, err := c.server.ctrl.HandleVPUClick(ctx, msg.VPU, msg.Geometry); err != nil {
			c.server.log.Errorw("VPU click handling failed", "client_id", c.id, "error", err)
		}
	case "set_setting":
		if msg.Path != "" {
			c.server.settings.Set(msg.Path, msg.Value)
		}
	case "ping":
		// Deadline already refreshed by the pong handler.
	default:
		c.server.log.Debugw("Unknown message type",
			"type", msg.Type,
			"client_id", c.id)
	}
}

// writePump writes overlay frames to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
