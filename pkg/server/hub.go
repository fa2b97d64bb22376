package server

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Change event types
const (
	EventSubscribed = "subscribed"
	EventInsert     = "insert"
	EventUpdate     = "update"
	EventDelete     = "delete"
)

const writeWait = 5 * time.Second

// Event is pushed to WebSocket subscribers after a table changes
type Event struct {
	Type      string `json:"type"`
	Table     string `json:"table"`
	ID        int64  `json:"id,omitempty"`
	Timestamp string `json:"timestamp"`
}

type client struct {
	conn  *websocket.Conn
	table string // empty subscribes to every table
	mu    sync.Mutex
}

func (c *client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Hub tracks WebSocket subscribers and fans change events out to them
type Hub struct {
	upgrader websocket.Upgrader
	clients  map[*client]bool
	mu       sync.RWMutex
	log      zerolog.Logger
}

// NewHub creates a hub that accepts same-origin connections only
func NewHub(logger zerolog.Logger) *Hub {
	h := &Hub{
		clients: make(map[*client]bool),
		log:     logger.With().Str("component", "hub").Logger(),
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// direct connections and tests send no origin
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err == nil && u.Host == r.Host {
		return true
	}
	h.log.Warn().Str("origin", origin).Msg("Rejected WebSocket connection from foreign origin")
	return false
}

// Subscribe upgrades the request and registers the connection for events of table
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, table string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to upgrade to WebSocket")
		return
	}

	c := &client{conn: conn, table: table}
	h.mu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()

	h.log.Info().Str("table", table).Int("total", total).Msg("WebSocket connected")

	if err := c.send(Event{Type: EventSubscribed, Table: table, Timestamp: now()}); err != nil {
		h.log.Warn().Err(err).Msg("Failed to send to WebSocket")
	}

	// Read until the peer goes away; clients never send anything we act on
	go func() {
		defer h.remove(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	remaining := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.conn.Close()
		h.log.Info().Int("remaining", remaining).Msg("WebSocket disconnected")
	}
}

// Broadcast sends ev to every client subscribed to ev.Table
func (h *Hub) Broadcast(ev Event) {
	if ev.Timestamp == "" {
		ev.Timestamp = now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		return
	}
	h.log.Debug().Str("table", ev.Table).Str("type", ev.Type).Int("clients", len(h.clients)).Msg("Broadcasting change")

	for c := range h.clients {
		if c.table != "" && c.table != ev.Table {
			continue
		}
		go func(c *client) {
			if err := c.send(ev); err != nil {
				h.log.Warn().Err(err).Msg("Failed to send to WebSocket")
				h.remove(c)
			}
		}(c)
	}
}

// ClientCount returns the number of connected subscribers
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]bool)
	h.mu.Unlock()

	for c := range clients {
		c.conn.Close()
	}
}

func now() string {
	return time.Now().Format(time.RFC3339)
}
