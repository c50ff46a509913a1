package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/odds-board/internal/board"
	"github.com/XavierBriggs/fortuna/services/odds-board/internal/grouping"
	"github.com/XavierBriggs/fortuna/services/odds-board/internal/stream"
	"github.com/XavierBriggs/fortuna/services/odds-board/pkg/models"
)

// Board is the board surface the HTTP API reads and drives
type Board interface {
	View() board.View
	FilteredQuotes() []models.Quote
	Filters() models.FilterState
	UpdateFilters(ctx context.Context, patch models.FilterPatch) error
	SwitchSport(ctx context.Context, sport string) error
	RefreshCatalog(ctx context.Context) error
	Reconnect()
	ConnectionStatus() stream.Status
	Books() []models.Book
	SharpBooks() grouping.SharpBooks
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	board Board
	log   *zap.Logger
}

// NewHandler creates a new handler with dependencies
func NewHandler(b Board, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{board: b, log: logger}
}

// HealthCheck reports healthy unless the feed has given up reconnecting
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := h.board.ConnectionStatus()

	body := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "odds-board",
		"feed":      status.State,
	}
	if status.Exhausted {
		body["status"] = "unhealthy"
		respondJSON(w, http.StatusServiceUnavailable, body)
		return
	}

	respondJSON(w, http.StatusOK, body)
}

// GetQuotes returns the quotes passing the active filters
func (h *Handler) GetQuotes(w http.ResponseWriter, r *http.Request) {
	quotes := h.board.FilteredQuotes()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"quotes": quotes,
		"count":  len(quotes),
	})
}

// GetBoard returns the grouped and rendered board
func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.board.View())
}

// GetFilters returns the active filters
func (h *Handler) GetFilters(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.board.Filters())
}

// UpdateFilters merges a partial filter update
func (h *Handler) UpdateFilters(w http.ResponseWriter, r *http.Request) {
	var patch models.FilterPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if patch.EventStatus != nil && !validStatus(*patch.EventStatus) {
		respondError(w, http.StatusBadRequest, "event_status must be live, upcoming, final or empty", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.board.UpdateFilters(ctx, patch); err != nil {
		h.respondSwitchError(w, err, "filters applied but events failed to load for the new sport")
		return
	}

	respondJSON(w, http.StatusOK, h.board.Filters())
}

// SwitchSport clears the board and resubscribes the feed for another sport
func (h *Handler) SwitchSport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sport string `json:"sport"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.board.SwitchSport(ctx, req.Sport); err != nil {
		h.respondSwitchError(w, err, "sport switched but events failed to load")
		return
	}

	respondJSON(w, http.StatusOK, h.board.Filters())
}

// GetConnection returns the feed connection status
func (h *Handler) GetConnection(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.board.ConnectionStatus())
}

// Reconnect forces a fresh feed connection
func (h *Handler) Reconnect(w http.ResponseWriter, r *http.Request) {
	h.board.Reconnect()
	respondJSON(w, http.StatusAccepted, h.board.ConnectionStatus())
}

// GetBooks returns the catalog books and the resolved sharp allow-list
func (h *Handler) GetBooks(w http.ResponseWriter, r *http.Request) {
	books := h.board.Books()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"books":       books,
		"count":       len(books),
		"sharp_books": h.board.SharpBooks(),
	})
}

// RefreshCatalog reloads events and books
func (h *Handler) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.board.RefreshCatalog(ctx); err != nil {
		h.log.Warn("catalog refresh failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, "failed to refresh catalog", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "refreshed",
		"sharp_books": h.board.SharpBooks(),
	})
}

// respondSwitchError maps sport switch failures. A catalog failure still
// leaves the board on the new sport.
func (h *Handler) respondSwitchError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, board.ErrEmptySport) {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	h.log.Warn("sport switch incomplete", zap.Error(err))
	respondError(w, http.StatusBadGateway, message, err)
}

func validStatus(s models.EventStatus) bool {
	switch s {
	case "", models.EventStatusLive, models.EventStatusUpcoming, models.EventStatusFinal:
		return true
	}
	return false
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("error encoding response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	errResp := models.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	}
	if err != nil && status >= http.StatusInternalServerError {
		zap.L().Warn(message, zap.Int("status", status), zap.Error(err))
	}
	respondJSON(w, status, errResp)
}
