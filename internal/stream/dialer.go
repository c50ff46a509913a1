package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// ws-broadcaster pings every 54s; allow for one missed ping
	readWait = 120 * time.Second

	// Maximum message size accepted from the feed
	maxMessageSize = 64 * 1024

	// Time allowed for the websocket handshake
	handshakeTimeout = 10 * time.Second
)

// Conn is the subset of a websocket connection the client needs
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer opens feed connections
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// WebsocketDialer dials the feed with gorilla/websocket
type WebsocketDialer struct {
	dialer websocket.Dialer
}

// NewWebsocketDialer creates a dialer with the feed's handshake timeout
func NewWebsocketDialer() *WebsocketDialer {
	return &WebsocketDialer{
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

// Dial opens a connection and installs the read deadline and ping handling
func (d *WebsocketDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	return &wsConn{Conn: conn}, nil
}

// wsConn extends the read deadline on every data frame
type wsConn struct {
	*websocket.Conn
}

func (c *wsConn) ReadMessage() (int, []byte, error) {
	messageType, data, err := c.Conn.ReadMessage()
	if err == nil {
		c.Conn.SetReadDeadline(time.Now().Add(readWait))
	}
	return messageType, data, err
}

func (c *wsConn) WriteJSON(v interface{}) error {
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteJSON(v)
}

// Close sends a close frame before closing the socket
func (c *wsConn) Close() error {
	c.Conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	return c.Conn.Close()
}

// isNormalClose reports a clean close initiated by either side
func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
