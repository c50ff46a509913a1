// Package catalog loads the reference data the board joins quotes against:
// events for the active sport and the book list used to resolve sharp books.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/XavierBriggs/fortuna/services/odds-board/pkg/models"
)

// ErrUnexpectedStatus is returned when the api-gateway answers with a non-2xx status
var ErrUnexpectedStatus = errors.New("unexpected status")

// Source provides events and books
type Source interface {
	Events(ctx context.Context, sport string) ([]models.Event, error)
	Books(ctx context.Context) ([]models.Book, error)
}

// NormalizeStatus maps Alexandria event_status values onto board statuses.
// Unknown values are treated as upcoming.
func NormalizeStatus(status string) models.EventStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "live", "in_progress":
		return models.EventStatusLive
	case "completed", "final":
		return models.EventStatusFinal
	default:
		return models.EventStatusUpcoming
	}
}
