// Package progress broadcasts worker pool progress to websocket subscribers.
package progress

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Event kinds
const (
	KindSweepStarted  = "sweep_started"
	KindTaskFinished  = "task_finished"
	KindSweepFinished = "sweep_finished"
)

// Event is one progress update.
type Event struct {
	Kind       string  `json:"kind"`
	SweepID    string  `json:"sweep_id,omitempty"`
	Task       int     `json:"task,omitempty"`
	Finished   int     `json:"finished"`
	Total      int     `json:"total"`
	Failed     bool    `json:"failed,omitempty"`
	Trades     int     `json:"trades,omitempty"`
	Params     string  `json:"params,omitempty"`
	ETASeconds float64 `json:"eta_seconds"`
	Time       int64   `json:"time"`
}

// HubConfig configures websocket delivery.
type HubConfig struct {
	// BufferSize is the number of pending events per subscriber.
	BufferSize int
	// WriteTimeout is timeout for writing one message.
	WriteTimeout time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
}

// DefaultHubConfig returns default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		BufferSize:   64,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to every connected subscriber. Publish never blocks:
// a subscriber whose buffer is full misses the event.
type Hub struct {
	config   HubConfig
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	last    *Event

	closed  atomic.Bool
	dropped atomic.Uint64
	wg      sync.WaitGroup
}

// NewHub creates a hub. A nil config uses DefaultHubConfig.
func NewHub(config *HubConfig, logger zerolog.Logger) *Hub {
	cfg := DefaultHubConfig()
	if config != nil {
		cfg = *config
	}
	return &Hub{
		config: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:     logger.With().Str("component", "progress_hub").Logger(),
		clients: make(map[*client]struct{}),
	}
}

// Publish sends ev to all subscribers.
func (h *Hub) Publish(ev Event) {
	if h.closed.Load() {
		return
	}
	if ev.Time == 0 {
		ev.Time = time.Now().Unix()
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode progress event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &ev
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.dropped.Add(1)
		}
	}
}

// Last returns the most recent event.
func (h *Hub) Last() (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return Event{}, false
	}
	return *h.last, true
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns the number of events not delivered to a slow subscriber.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// ServeHTTP upgrades the request and streams events until the peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.closed.Load() {
		http.Error(w, "hub closed", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, h.config.BufferSize)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug().Str("remote", r.RemoteAddr).Msg("Subscriber connected")

	h.wg.Add(2)
	go h.writeLoop(c)
	go h.readLoop(c)
}

// readLoop drains incoming frames so close and pong frames are processed.
func (h *Hub) readLoop(c *client) {
	defer h.wg.Done()
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer h.wg.Done()
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				_ = c.conn.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// remove unregisters c once and closes its connection.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	if ok {
		_ = c.conn.Close()
	}
}

// Close disconnects all subscribers and waits for their goroutines.
func (h *Hub) Close() {
	if h.closed.Swap(true) {
		return
	}
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.wg.Wait()
}
