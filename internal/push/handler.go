package push

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler upgrades /ws requests and attaches the socket to the hub
type Handler struct {
	hub      *Hub
	ctx      context.Context
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHandler creates a handler. Pumps run on ctx, not the request context.
// An empty origins list accepts any origin.
func NewHandler(ctx context.Context, hub *Hub, origins []string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}

	return &Handler{
		hub: hub,
		ctx: ctx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
		log: logger,
	}
}

// ServeHTTP upgrades the connection
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := NewClient(uuid.New().String(), conn, h.hub, h.log)
	h.hub.Register(c)

	go c.WritePump(h.ctx)
	go c.ReadPump(h.ctx)
}
