package presentation

import (
	"sync"
	"time"

	"github.com/XavierBriggs/fortuna/services/odds-board/pkg/models"
)

// FlashDirection is the direction of the last price move on a cell
type FlashDirection string

const (
	FlashNone FlashDirection = ""
	FlashUp   FlashDirection = "up"
	FlashDown FlashDirection = "down"
)

// DefaultFlashDuration is how long a price move stays highlighted
const DefaultFlashDuration = 3 * time.Second

type flashEntry struct {
	price     int
	direction FlashDirection
	until     time.Time
}

// FlashTracker remembers the last price per quote key and reports recent moves
type FlashTracker struct {
	mu       sync.RWMutex
	entries  map[models.QuoteKey]flashEntry
	duration time.Duration
}

// NewFlashTracker creates a tracker; a non-positive duration uses the default
func NewFlashTracker(duration time.Duration) *FlashTracker {
	if duration <= 0 {
		duration = DefaultFlashDuration
	}
	return &FlashTracker{
		entries:  make(map[models.QuoteKey]flashEntry),
		duration: duration,
	}
}

// Observe compares the quotes to the last seen prices. Keys no longer present
// are forgotten, so a cleared table does not flash when it refills.
func (t *FlashTracker) Observe(quotes []models.Quote, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := make(map[models.QuoteKey]flashEntry, len(quotes))
	for _, q := range quotes {
		key := q.Key()
		prev, ok := t.entries[key]
		if !ok {
			next[key] = flashEntry{price: q.Price}
			continue
		}

		entry := prev
		entry.price = q.Price
		switch {
		case q.Price > prev.price:
			entry.direction = FlashUp
			entry.until = now.Add(t.duration)
		case q.Price < prev.price:
			entry.direction = FlashDown
			entry.until = now.Add(t.duration)
		}
		next[key] = entry
	}
	t.entries = next
}

// State returns the active flash for a key, FlashNone once it has expired
func (t *FlashTracker) State(key models.QuoteKey, now time.Time) FlashDirection {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[key]
	if !ok || !now.Before(entry.until) {
		return FlashNone
	}
	return entry.direction
}
