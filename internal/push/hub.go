// Package push notifies connected UI clients over websocket whenever the board
// changes, so they know to refetch the rendered view.
package push

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/odds-board/internal/store"
	"github.com/XavierBriggs/fortuna/services/odds-board/pkg/models"
)

// MessageTypeBoardChanged is pushed after one or more store transitions
const MessageTypeBoardChanged = "board_changed"

// DefaultThrottle bounds how often a busy board is announced
const DefaultThrottle = 250 * time.Millisecond

// BoardChanged is the payload of a board_changed message
type BoardChanged struct {
	Version uint64 `json:"version"`
	Sport   string `json:"sport"`
	Quotes  int    `json:"quotes"`
}

// Hub maintains the set of active clients and announces board changes to them
type Hub struct {
	clients   map[*Client]bool
	clientsMu sync.RWMutex

	register   chan *Client
	unregister chan *Client
	changed    chan struct{}
	done       chan struct{}

	latestMu sync.Mutex
	latest   BoardChanged

	throttle time.Duration
	log      *zap.Logger

	metricsMu        sync.Mutex
	totalConnections int64
	totalMessages    int64
}

// NewHub creates a hub; a non-positive throttle uses DefaultThrottle
func NewHub(throttle time.Duration, logger *zap.Logger) *Hub {
	if throttle <= 0 {
		throttle = DefaultThrottle
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		changed:    make(chan struct{}, 1),
		done:       make(chan struct{}),
		throttle:   throttle,
		log:        logger,
	}
}

// Notify records the latest snapshot. It never blocks, so it is safe to
// register directly with store.Subscribe.
func (h *Hub) Notify(snap store.Snapshot) {
	h.latestMu.Lock()
	// listeners of concurrent transitions may arrive out of order
	if snap.Version < h.latest.Version {
		h.latestMu.Unlock()
		return
	}
	h.latest = BoardChanged{
		Version: snap.Version,
		Sport:   snap.Filters().Sport,
		Quotes:  snap.QuoteCount(),
	}
	h.latestMu.Unlock()

	select {
	case h.changed <- struct{}{}:
	default:
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.throttle)
	defer ticker.Stop()

	dirty := false
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.unregisterClient(c)

		case <-h.changed:
			dirty = true

		case <-ticker.C:
			if dirty {
				h.broadcast(h.current())
				dirty = false
			}
		}
	}
}

// Register adds a client to the hub. After shutdown the client is closed instead.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ClientCount returns the number of active clients
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// GetMetrics returns hub counters
func (h *Hub) GetMetrics() map[string]interface{} {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	return map[string]interface{}{
		"active_clients":    h.ClientCount(),
		"total_connections": h.totalConnections,
		"total_messages":    h.totalMessages,
	}
}

func (h *Hub) current() BoardChanged {
	h.latestMu.Lock()
	defer h.latestMu.Unlock()
	return h.latest
}

// registerClient adds a client and sends it the current version right away
func (h *Hub) registerClient(c *Client) {
	h.clientsMu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.clientsMu.Unlock()

	h.metricsMu.Lock()
	h.totalConnections++
	h.metricsMu.Unlock()

	c.TrySend(boardMessage(h.current()))
	h.log.Info("push client connected", zap.String("client_id", c.ID), zap.Int("total", count))
}

// unregisterClient removes a client from the active clients map
func (h *Hub) unregisterClient(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.Close()
		h.log.Info("push client disconnected", zap.String("client_id", c.ID), zap.Int("total", len(h.clients)))
	}
}

// broadcast sends the change to every client; clients with a full buffer are dropped
func (h *Hub) broadcast(change BoardChanged) {
	h.clientsMu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	message := boardMessage(change)
	for _, c := range clients {
		if !c.TrySend(message) {
			h.log.Warn("push client buffer full, disconnecting", zap.String("client_id", c.ID))
			go h.Unregister(c)
		}
	}

	h.metricsMu.Lock()
	h.totalMessages++
	h.metricsMu.Unlock()
}

// shutdown closes all client connections
func (h *Hub) shutdown() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	close(h.done)
	h.log.Info("shutting down push hub", zap.Int("clients", len(h.clients)))
	for c := range h.clients {
		c.Close()
		delete(h.clients, c)
	}
}

func boardMessage(change BoardChanged) models.ServerMessage {
	payload, _ := json.Marshal(change)
	return models.ServerMessage{
		Type:      MessageTypeBoardChanged,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}
