// Package eventws broadcasts Event Bus events to WebSocket clients (the
// outbound half of the spec's client/UI surface). Adapted from the
// teacher's internal/fluidnc/websocket.go client pump pair: the same
// read/write goroutine split and ping-ticker keepalive, turned around to
// serve upgraded connections instead of dialing out to one.
package eventws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/fcurrie/ledcore/internal/eventbus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans every published Event Bus event out to every connected
// WebSocket client as JSON.
type Hub struct {
	bus *eventbus.Bus
	log zerolog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan eventbus.Event
	done chan struct{}
}

// NewHub builds a Hub wired to bus. Subscribe must be called separately
// (via Run) to start forwarding events to connected clients.
func NewHub(bus *eventbus.Bus, log zerolog.Logger) *Hub {
	return &Hub{
		bus:     bus,
		log:     log.With().Str("component", "event_ws_hub").Logger(),
		clients: make(map[*client]struct{}),
	}
}

// broadcastEventTypes enumerates every event type a UI client needs to
// observe. The bus has no wildcard subscription, so the hub subscribes to
// each by name; a new publisher elsewhere in the core must add its event
// type here to reach connected clients.
var broadcastEventTypes = []eventbus.EventType{
	"zone_state_changed",
	"zone_render_mode_changed",
	"zone_animation_changed",
	"animation_started",
	"animation_stopped",
	"animation_parameter_changed",
	"selected_zone_changed",
	"edit_mode_changed",
	"render_mode_changed",
	"lamp_white_mode_changed",
	"task:created",
	"task:completed",
	"task:failed",
	"task:cancelled",
}

// Run subscribes to every broadcastable event type and forwards each to
// all connected clients. Blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for _, t := range broadcastEventTypes {
		h.bus.Subscribe(t, func(e eventbus.Event) error {
			h.broadcast(e)
			return nil
		}, eventbus.Async())
	}
	<-ctx.Done()
}

func (h *Hub) broadcast(e eventbus.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- e:
		default:
			h.log.Warn().Msg("client send buffer full, dropping event")
		}
	}
}

// ServeHTTP upgrades the request to a WebSocket connection and registers it
// as an event sink until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan eventbus.Event, 32), done: make(chan struct{})}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer h.removeClient(c)

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case e := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(e); err != nil {
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

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(c.done)
	c.conn.Close()
}

// ClientCount reports how many WebSocket clients are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
