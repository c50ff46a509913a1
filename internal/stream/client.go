package stream

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/odds-board/pkg/models"
)

// State of the feed connection
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Sink receives decoded quotes in wire order
type Sink interface {
	Upsert(q models.Quote)
}

// Observer is notified of connection and message events
type Observer interface {
	StateChanged(state State)
	MessageReceived()
	MessageDiscarded(reason string)
	ReconnectScheduled(attempt int, delay time.Duration)
}

// Options configures a Client
type Options struct {
	URL          string
	Subscription models.SubscriptionFilter
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration

	Dialer    Dialer
	Scheduler Scheduler
	Observer  Observer
	Logger    *zap.Logger
	Clock     func() time.Time
}

// Status is a point-in-time view of the connection for the UI
type Status struct {
	ClientID    string     `json:"client_id"`
	State       State      `json:"state"`
	Attempts    int        `json:"reconnect_attempts"`
	Exhausted   bool       `json:"exhausted"`
	Closed      bool       `json:"closed"`
	LastError   string     `json:"last_error,omitempty"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
}

// Client keeps exactly one live connection to the quote feed and forwards
// valid quotes to the sink. On a drop it reconnects with capped exponential
// backoff until MaxAttempts is reached.
type Client struct {
	id   string
	opts Options
	sink Sink
	log  *zap.Logger

	mu          sync.Mutex
	state       State
	attempts    int
	exhausted   bool
	closed      bool // set by Disconnect; cleared by Connect
	gen         uint64
	conn        Conn
	timer       Timer
	timerSeq    uint64
	cancelDial  context.CancelFunc
	lastErr     error
	connectedAt time.Time

	// held across the generation check and the sink write
	deliverMu sync.Mutex
}

// NewClient creates a disconnected client
func NewClient(opts Options, sink Sink) *Client {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = NewWebsocketDialer()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = TimeScheduler{}
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	id := uuid.New().String()
	return &Client{
		id:    id,
		opts:  opts,
		sink:  sink,
		log:   opts.Logger.With(zap.String("client_id", id), zap.String("url", opts.URL)),
		state: StateDisconnected,
	}
}

// ID returns the client identity sent to the feed
func (c *Client) ID() string {
	return c.id
}

// Connect opens the feed connection. It is a no-op while connecting or
// connected. The dial runs on the calling goroutine; messages are then read
// on a dedicated goroutine. Calling Connect after the reconnect budget is
// exhausted starts a fresh budget.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.closed = false
	if c.exhausted {
		c.exhausted = false
		c.attempts = 0
	}
	c.stopTimerLocked()
	c.mu.Unlock()

	c.open()
}

// Disconnect closes the connection and cancels any pending reconnect.
// No further reconnects happen until Connect is called again.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closed = true
	c.gen++ // events from the current socket are now stale
	c.stopTimerLocked()
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	conn := c.conn
	c.conn = nil
	changed := c.state != StateDisconnected
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	// wait out a delivery that passed its generation check before the bump
	c.deliverMu.Lock()
	c.deliverMu.Unlock()

	if changed {
		c.opts.Observer.StateChanged(StateDisconnected)
	}
	c.log.Info("feed disconnected by caller")
}

// SetSubscription replaces the filter sent to the feed on the next open
func (c *Client) SetSubscription(filter models.SubscriptionFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Subscription = filter
}

// Status returns the current connection status
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		ClientID:  c.id,
		State:     c.state,
		Attempts:  c.attempts,
		Exhausted: c.exhausted,
		Closed:    c.closed,
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	if c.state == StateConnected {
		at := c.connectedAt
		s.ConnectedAt = &at
	}
	return s
}

// open dials once. Failures go through handleClose like any other drop.
func (c *Client) open() {
	c.mu.Lock()
	if c.closed || c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	c.state = StateConnecting
	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	c.cancelDial = cancel
	subscription := c.opts.Subscription
	sport := ""
	if len(subscription.Sports) > 0 {
		sport = subscription.Sports[0]
	}
	c.mu.Unlock()

	c.opts.Observer.StateChanged(StateConnecting)

	header := http.Header{}
	header.Set("X-Client-ID", c.id)
	conn, err := c.opts.Dialer.Dial(ctx, c.opts.URL, header)
	cancel()

	c.mu.Lock()
	if gen != c.gen {
		// Disconnect ran while dialing
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	c.cancelDial = nil
	if err != nil {
		c.mu.Unlock()
		c.handleClose(gen, err)
		return
	}
	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	c.lastErr = nil
	c.connectedAt = c.opts.Clock()
	c.mu.Unlock()

	c.opts.Observer.StateChanged(StateConnected)
	c.log.Info("connected to feed")

	if err := conn.WriteJSON(models.ClientMessage{Type: models.MessageTypeSubscribe, Payload: subscription}); err != nil {
		c.log.Warn("failed to send subscription", zap.Error(err))
	}

	go c.readLoop(gen, sport, conn)
}

// readLoop applies frames to the sink strictly in arrival order. sport is the
// subscription's sport at open time and fills quotes that omit sport_key.
func (c *Client) readLoop(gen uint64, sport string, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}
		if !c.isCurrent(gen) {
			return
		}
		c.handleMessage(gen, sport, data)
	}
}

func (c *Client) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

func (c *Client) handleMessage(gen uint64, sport string, data []byte) {
	c.opts.Observer.MessageReceived()

	msg, err := Decode(data)
	if err != nil {
		reason := "invalid"
		if errors.Is(err, ErrMissingField) {
			reason = "missing_field"
		}
		c.opts.Observer.MessageDiscarded(reason)
		c.log.Warn("discarding feed message", zap.Error(err), zap.Int("bytes", len(data)))
		return
	}

	switch {
	case msg.Quote != nil:
		if msg.Quote.SportKey == "" {
			msg.Quote.SportKey = sport
		}
		c.deliver(gen, *msg.Quote)
	case msg.Error != nil:
		c.log.Warn("feed reported error",
			zap.String("code", msg.Error.Code),
			zap.String("message", msg.Error.Message))
	default:
		c.log.Debug("ignoring feed message", zap.String("type", msg.Type))
	}
}

// deliver writes a quote unless its socket has been superseded. Disconnect
// waits on deliverMu, so no stale quote lands after it returns.
func (c *Client) deliver(gen uint64, q models.Quote) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	if !c.isCurrent(gen) {
		return
	}
	c.sink.Upsert(q)
}

// handleClose moves to Disconnected and schedules the next attempt.
// Events from a socket other than the current generation are ignored.
func (c *Client) handleClose(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen || c.closed || c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}

	c.state = StateDisconnected
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.lastErr = cause

	if c.attempts >= c.opts.MaxAttempts {
		c.exhausted = true
		attempts := c.attempts
		c.mu.Unlock()

		c.opts.Observer.StateChanged(StateDisconnected)
		c.log.Error("feed connection lost, reconnect attempts exhausted",
			zap.Int("attempts", attempts), zap.Error(cause))
		return
	}

	delay := Backoff(c.attempts, c.opts.BaseDelay, c.opts.MaxDelay)
	c.attempts++
	attempt := c.attempts
	c.timerSeq++
	seq := c.timerSeq
	c.timer = c.opts.Scheduler.AfterFunc(delay, func() { c.reconnect(seq) })
	c.mu.Unlock()

	c.opts.Observer.StateChanged(StateDisconnected)
	c.opts.Observer.ReconnectScheduled(attempt, delay)
	if isNormalClose(cause) {
		c.log.Info("feed closed, reconnecting", zap.Int("attempt", attempt), zap.Duration("delay", delay))
	} else {
		c.log.Info("feed connection failed, reconnecting",
			zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(cause))
	}
}

func (c *Client) reconnect(seq uint64) {
	c.mu.Lock()
	if seq != c.timerSeq || c.closed {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()

	c.open()
}

func (c *Client) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerSeq++
}

type nopObserver struct{}

func (nopObserver) StateChanged(State)                    {}
func (nopObserver) MessageReceived()                      {}
func (nopObserver) MessageDiscarded(string)               {}
func (nopObserver) ReconnectScheduled(int, time.Duration) {}
