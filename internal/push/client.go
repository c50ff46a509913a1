package push

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/odds-board/pkg/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Buffer size for outbound messages
	sendBufferSize = 16
)

// registry is the part of the hub a client talks back to
type registry interface {
	Unregister(client *Client)
}

// Client is one connected UI socket
type Client struct {
	ID          string
	conn        *websocket.Conn
	Send        chan models.ServerMessage
	hub         registry
	log         *zap.Logger
	connectedAt time.Time

	mu           sync.Mutex
	messagesSent int64

	// Send is never closed; closed and done mark the end of the client
	sendMu sync.Mutex
	closed bool
	done   chan struct{}
}

// NewClient creates a new client instance
func NewClient(id string, conn *websocket.Conn, hub registry, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		ID:          id,
		conn:        conn,
		Send:        make(chan models.ServerMessage, sendBufferSize),
		hub:         hub,
		log:         logger,
		connectedAt: time.Now(),
		done:        make(chan struct{}),
	}
}

// Close stops the write pump and turns later sends into no-ops.
// It is safe to call more than once.
func (c *Client) Close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

// Done is closed once the client has been closed
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ReadPump reads client messages until the socket closes. Only heartbeats
// are understood; the board itself is fetched over HTTP.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var msg models.ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug("push client unexpected close", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case models.MessageTypeHeartbeat:
			c.sendHeartbeat()
		default:
			c.sendError("unknown_message_type", fmt.Sprintf("unknown message type: %s", msg.Type))
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-c.done:
			// Hub dropped the client
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.log.Debug("push client write error", zap.String("client_id", c.ID), zap.Error(err))
				return
			}

			c.mu.Lock()
			c.messagesSent++
			c.mu.Unlock()

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues a message without blocking.
// Returns false if the buffer is full or the client is closed.
func (c *Client) TrySend(msg models.ServerMessage) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) sendHeartbeat() {
	c.mu.Lock()
	stats := map[string]interface{}{
		"client_id":     c.ID,
		"connected_at":  c.connectedAt,
		"messages_sent": c.messagesSent,
	}
	c.mu.Unlock()

	payload, _ := json.Marshal(stats)
	c.TrySend(models.ServerMessage{
		Type:      models.MessageTypeHeartbeat,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

func (c *Client) sendError(code, message string) {
	payload, _ := json.Marshal(models.ErrorMessage{Code: code, Message: message})
	c.TrySend(models.ServerMessage{
		Type:      models.MessageTypeError,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}
