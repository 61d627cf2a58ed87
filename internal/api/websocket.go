package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// Event types pushed to dashboards.
const (
	EventSnapshot = "snapshot"
	EventCommand  = "command"
)

// WSEvent is the JSON frame sent to WebSocket clients.
type WSEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub fans events out to connected dashboards.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	registerCh   chan *Client
	unregisterCh chan *Client
	broadcastCh  chan []byte

	greeting func() any
}

// Client is one WebSocket connection.
type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithGreeting sends a snapshot event built by fn to every new client
// before any broadcast.
func WithGreeting(fn func() any) HubOption {
	return func(h *Hub) {
		h.greeting = fn
	}
}

// NewHub creates a hub. Call Run before accepting connections.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients:      make(map[*Client]bool),
		registerCh:   make(chan *Client, 16),
		unregisterCh: make(chan *Client, 16),
		broadcastCh:  make(chan []byte, 256),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Run serves registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.registerCh:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregisterCh:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()

		case data := <-h.broadcastCh:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					// slow client, drop
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues data for every client. It never blocks.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcastCh <- data:
	default:
	}
}

// BroadcastEvent wraps payload in a WSEvent and broadcasts it.
func (h *Hub) BroadcastEvent(eventType string, payload any) {
	data, err := encodeEvent(eventType, payload)
	if err != nil {
		log.Printf("websocket: failed to marshal %s event: %v", eventType, err)
		return
	}
	h.Broadcast(data)
}

func encodeEvent(eventType string, payload any) ([]byte, error) {
	return json.Marshal(WSEvent{Type: eventType, Payload: payload})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request and streams events until the peer
// goes away.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // dashboards are served from other origins on the LAN
	})
	if err != nil {
		log.Printf("websocket: accept failed: %v", err)
		return
	}

	c := &Client{conn: conn, send: make(chan []byte, 64)}
	if h.greeting != nil {
		if data, err := encodeEvent(EventSnapshot, h.greeting()); err == nil {
			c.send <- data
		}
	}
	h.registerCh <- c

	go h.writePump(r.Context(), c)
	h.readPump(r.Context(), c)
}

func (h *Hub) writePump(ctx context.Context, c *Client) {
	defer c.conn.Close(websocket.StatusNormalClosure, "")

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// readPump drains client frames; dashboards only listen.
func (h *Hub) readPump(ctx context.Context, c *Client) {
	defer func() {
		h.unregisterCh <- c
	}()
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}
