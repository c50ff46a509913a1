package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/XavierBriggs/fortuna/services/odds-board/internal/store"
	"github.com/XavierBriggs/fortuna/services/odds-board/pkg/models"
)

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

func quote(book string, price int) models.Quote {
	return models.Quote{
		EventID:     "event1",
		SportKey:    "basketball_nba",
		MarketKey:   "h2h",
		BookKey:     book,
		OutcomeName: "Lakers",
		Price:       price,
		ObservedAt:  time.Now(),
	}
}

type harness struct {
	hub    *Hub
	store  *store.Store
	server *httptest.Server
	cancel context.CancelFunc
}

func newHarness(t *testing.T, origins []string) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	hub := NewHub(20*time.Millisecond, nil)
	go hub.Run(ctx)

	st := store.New(models.FilterState{Sport: "basketball_nba"})
	st.Subscribe(hub.Notify)

	server := httptest.NewServer(NewHandler(ctx, hub, origins, nil))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return &harness{hub: hub, store: st, server: server, cancel: cancel}
}

func (h *harness) dial(t *testing.T, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) models.ServerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg models.ServerMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return msg
}

func readChange(t *testing.T, conn *websocket.Conn) BoardChanged {
	t.Helper()
	msg := read(t, conn)
	if msg.Type != MessageTypeBoardChanged {
		t.Fatalf("Expected %s, got %s", MessageTypeBoardChanged, msg.Type)
	}
	var change BoardChanged
	if err := json.Unmarshal(msg.Payload, &change); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	return change
}

func TestHub_SendsCurrentVersionOnConnect(t *testing.T) {
	h := newHarness(t, nil)
	h.store.Upsert(quote("fanduel", -110))

	conn := h.dial(t, nil)
	change := readChange(t, conn)

	if change.Version != 1 {
		t.Errorf("Expected version 1, got %d", change.Version)
	}
	if change.Sport != "basketball_nba" {
		t.Errorf("Expected sport basketball_nba, got %s", change.Sport)
	}
	if change.Quotes != 1 {
		t.Errorf("Expected 1 quote, got %d", change.Quotes)
	}
	waitFor(t, "client registered", func() bool { return h.hub.ClientCount() == 1 })
}

func TestHub_CoalescesBursts(t *testing.T) {
	h := newHarness(t, nil)
	conn := h.dial(t, nil)
	readChange(t, conn)

	books := []string{"fanduel", "draftkings", "betmgm", "caesars", "pinnacle", "circasports"}
	for i, book := range books {
		h.store.Upsert(quote(book, -110-i))
	}
	final := h.store.Snapshot().Version

	received := 0
	for {
		change := readChange(t, conn)
		received++
		if change.Version == final {
			break
		}
		if change.Version > final {
			t.Fatalf("Version %d beyond final %d", change.Version, final)
		}
	}

	if received >= len(books) {
		t.Errorf("Expected bursts to coalesce, got %d messages for %d changes", received, len(books))
	}
}

func TestClient_Messages(t *testing.T) {
	h := newHarness(t, nil)
	conn := h.dial(t, nil)
	readChange(t, conn)

	if err := conn.WriteJSON(models.ClientMessage{Type: models.MessageTypeHeartbeat}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if msg := read(t, conn); msg.Type != models.MessageTypeHeartbeat {
		t.Errorf("Expected heartbeat reply, got %s", msg.Type)
	}

	if err := conn.WriteJSON(models.ClientMessage{Type: models.MessageTypeSubscribe}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	msg := read(t, conn)
	if msg.Type != models.MessageTypeError {
		t.Fatalf("Expected error reply, got %s", msg.Type)
	}
	var payload models.ErrorMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if payload.Code != "unknown_message_type" {
		t.Errorf("Expected unknown_message_type, got %s", payload.Code)
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := newHarness(t, nil)

	slow := NewClient("slow", nil, h.hub, nil)
	for i := 0; i < sendBufferSize; i++ {
		slow.TrySend(models.ServerMessage{Type: MessageTypeBoardChanged})
	}
	h.hub.Register(slow)
	waitFor(t, "slow client registered", func() bool { return h.hub.ClientCount() == 1 })

	h.store.Upsert(quote("fanduel", -110))
	waitFor(t, "slow client dropped", func() bool { return h.hub.ClientCount() == 0 })
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	h := newHarness(t, nil)

	c := NewClient("idle", nil, h.hub, nil)
	h.hub.Register(c)
	waitFor(t, "client registered", func() bool { return h.hub.ClientCount() == 1 })

	h.cancel()
	waitFor(t, "hub shut down", func() bool { return h.hub.ClientCount() == 0 })

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Expected client to be closed on shutdown")
	}

	// registering after shutdown closes the client rather than blocking
	late := NewClient("late", nil, h.hub, nil)
	h.hub.Register(late)
	select {
	case <-late.Done():
	default:
		t.Error("Expected late client to be closed")
	}
	late.sendHeartbeat()
}

func TestClient_SendAfterDropIsNoop(t *testing.T) {
	h := newHarness(t, nil)

	c := NewClient("dropped", nil, h.hub, nil)
	h.hub.Register(c)
	waitFor(t, "client registered", func() bool { return h.hub.ClientCount() == 1 })

	h.hub.Unregister(c)
	waitFor(t, "client dropped", func() bool { return h.hub.ClientCount() == 0 })

	// the read pump may still answer messages after the hub let go
	c.sendHeartbeat()
	c.sendError("unknown_message_type", "late")
	if c.TrySend(models.ServerMessage{Type: MessageTypeBoardChanged}) {
		t.Error("Expected send on a closed client to be refused")
	}

	c.Close()
}

func TestHub_DroppedSlowClientSurvivesHeartbeats(t *testing.T) {
	h := newHarness(t, nil)

	slow := NewClient("slow", nil, h.hub, nil)
	for i := 0; i < sendBufferSize; i++ {
		slow.sendHeartbeat()
	}
	h.hub.Register(slow)
	waitFor(t, "slow client registered", func() bool { return h.hub.ClientCount() == 1 })

	h.store.Upsert(quote("fanduel", -110))
	waitFor(t, "slow client dropped", func() bool { return h.hub.ClientCount() == 0 })

	for i := 0; i < 3; i++ {
		slow.sendHeartbeat()
	}
	if len(slow.Send) != sendBufferSize {
		t.Errorf("Expected buffer to stay at %d, got %d", sendBufferSize, len(slow.Send))
	}
}

func TestHandler_CheckOrigin(t *testing.T) {
	h := newHarness(t, []string{"http://localhost:3000"})
	url := "ws" + strings.TrimPrefix(h.server.URL, "http")

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"allowed origin", "http://localhost:3000", true},
		{"no origin header", "", true},
		{"foreign origin", "http://evil.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(url, header)
			if tt.ok {
				if err != nil {
					t.Fatalf("Expected upgrade, got %v", err)
				}
				conn.Close()
				return
			}
			if err == nil {
				conn.Close()
				t.Fatal("Expected upgrade to be rejected")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Errorf("Expected 403, got %v", resp)
			}
		})
	}
}
