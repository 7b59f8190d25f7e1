// Package streaming pushes pipeline events (predictions, settlements, match
// updates) to connected WebSocket clients.
package streaming

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pitchside/cricket-agents/pkg/metrics"
)

// Event types carried on the stream.
const (
	EventPrediction  = "prediction"
	EventSettlement  = "settlement"
	EventMatchUpdate = "match_update"
	EventStatus      = "status"
	EventError       = "error"
	EventHeartbeat   = "heartbeat"
)

// Event is one message on the stream.
type Event struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	writeTimeout      = 10 * time.Second
	heartbeatInterval = 30 * time.Second
	clientBuffer      = 64
)

// Hub fans events out to every connected client. A slow client's buffer
// filling up drops that client rather than blocking the pipeline.
type Hub struct {
	log      zerolog.Logger
	metrics  *metrics.ArenaMetrics
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}

	closeCh   chan struct{}
	closeOnce sync.Once
}

type client struct {
	conn   *websocket.Conn
	sendCh chan []byte
}

// NewHub creates a hub and starts its heartbeat loop.
func NewHub(m *metrics.ArenaMetrics, log zerolog.Logger) *Hub {
	h := &Hub{
		log:     log.With().Str("component", "streaming").Logger(),
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		closeCh: make(chan struct{}),
	}
	go h.heartbeatLoop()
	return h
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, sendCh: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.ConnectedClients.Set(float64(n))
	h.log.Debug().Int("clients", n).Msg("client connected")

	go h.writeLoop(c)
	go h.readLoop(c)
}

// Publish broadcasts one event to every connected client.
func (h *Hub) Publish(eventType string, payload any) {
	data, err := json.Marshal(Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		h.log.Error().Err(err).Str("event", eventType).Msg("marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.sendCh <- data:
		default:
			// Buffer full, drop the client on its next write.
			go h.drop(c)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and stops the heartbeat loop.
func (h *Hub) Close() error {
	h.closeOnce.Do(func() {
		close(h.closeCh)
		h.mu.Lock()
		for c := range h.clients {
			c.conn.Close()
			delete(h.clients, c)
		}
		h.mu.Unlock()
		h.metrics.ConnectedClients.Set(0)
	})
	return nil
}

func (h *Hub) writeLoop(c *client) {
	defer h.drop(c)
	for {
		select {
		case <-h.closeCh:
			return
		case data, ok := <-c.sendCh:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

// readLoop drains inbound frames so close and pong handling works; clients
// are not expected to send anything.
func (h *Hub) readLoop(c *client) {
	defer h.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.closeCh:
			return
		case <-ticker.C:
			h.Publish(EventHeartbeat, nil)
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, present := h.clients[c]
	if present {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if !present {
		return
	}
	c.conn.Close()
	h.metrics.ConnectedClients.Set(float64(n))
	h.log.Debug().Int("clients", n).Msg("client disconnected")
}
