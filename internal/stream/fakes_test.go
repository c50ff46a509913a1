package stream

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/XavierBriggs/fortuna/services/odds-board/pkg/models"
)

var errDialRefused = errors.New("connection refused")

// fakeTimer records a scheduled callback
type fakeTimer struct {
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

func (t *fakeTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// fakeScheduler never runs callbacks on its own; tests fire them explicitly
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{delay: d, fn: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *fakeScheduler) delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.timers))
	for i, t := range s.timers {
		out[i] = t.delay
	}
	return out
}

func (s *fakeScheduler) last() *fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		return nil
	}
	return s.timers[len(s.timers)-1]
}

// fireLast runs the newest timer unless it was stopped; reports whether it ran
func (s *fakeScheduler) fireLast() bool {
	s.mu.Lock()
	if len(s.timers) == 0 {
		s.mu.Unlock()
		return false
	}
	t := s.timers[len(s.timers)-1]
	s.mu.Unlock()

	t.mu.Lock()
	if t.stopped || t.fired {
		t.mu.Unlock()
		return false
	}
	t.fired = true
	t.mu.Unlock()

	t.fn()
	return true
}

// fakeDialer hands out queued connections, failing once the queue is empty
type fakeDialer struct {
	mu      sync.Mutex
	calls   int
	conns   []*fakeConn
	headers []http.Header
}

func (d *fakeDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.headers = append(d.headers, header)
	if len(d.conns) == 0 {
		return nil, errDialRefused
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

func (d *fakeDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDialer) queue(conns ...*fakeConn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns = append(d.conns, conns...)
}

// fakeConn delivers frames pushed by the test
type fakeConn struct {
	frames chan []byte
	errs   chan error
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written []interface{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f := <-c.frames:
		return 1, f, nil
	case err := <-c.errs:
		return 0, nil, err
	case <-c.done:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) send(frame string) {
	c.frames <- []byte(frame)
}

func (c *fakeConn) drop(err error) {
	c.errs <- err
}

func (c *fakeConn) writes() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]interface{}, len(c.written))
	copy(out, c.written)
	return out
}

// chanSink forwards quotes to a channel
type chanSink struct {
	quotes chan models.Quote
}

func newChanSink() *chanSink {
	return &chanSink{quotes: make(chan models.Quote, 16)}
}

func (s *chanSink) Upsert(q models.Quote) {
	s.quotes <- q
}

func (s *chanSink) next(t *testing.T) models.Quote {
	t.Helper()
	select {
	case q := <-s.quotes:
		return q
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for quote")
		return models.Quote{}
	}
}

// gatedSink blocks every Upsert until release is closed
type gatedSink struct {
	entered chan struct{}
	release chan struct{}

	mu     sync.Mutex
	quotes []models.Quote
}

func newGatedSink() *gatedSink {
	return &gatedSink{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (s *gatedSink) Upsert(q models.Quote) {
	s.entered <- struct{}{}
	<-s.release
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes = append(s.quotes, q)
}

func (s *gatedSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.quotes)
}

// countingObserver records observer callbacks
type countingObserver struct {
	mu        sync.Mutex
	received  int
	discarded map[string]int
	states    []State
}

func newCountingObserver() *countingObserver {
	return &countingObserver{discarded: make(map[string]int)}
}

func (o *countingObserver) StateChanged(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, s)
}

func (o *countingObserver) MessageReceived() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.received++
}

func (o *countingObserver) MessageDiscarded(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.discarded[reason]++
}

func (o *countingObserver) ReconnectScheduled(int, time.Duration) {}

func (o *countingObserver) discardedCount(reason string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.discarded[reason]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

const validQuoteJSON = `{
	"event_id": "event1",
	"sport_key": "basketball_nba",
	"market_key": "h2h",
	"book_key": "fanduel",
	"outcome_name": "Los Angeles Lakers",
	"point": null,
	"price": -110,
	"decimal_odds": 1.909,
	"implied_probability": 0.5238,
	"fair_price": -102,
	"edge": 0.024,
	"observed_at": "2025-01-15T19:30:00Z"
}`
