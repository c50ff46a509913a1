package store

import (
	"sync"

	"github.com/XavierBriggs/fortuna/services/odds-board/pkg/models"
)

// Snapshot is an immutable view of the store after one transition.
// Callers must treat every slice and map reachable from it as read-only.
type Snapshot struct {
	Version uint64
	quotes  *quoteTable
	events  map[string]models.Event
	filters models.FilterState
}

// Quotes returns the quote table in first-insertion order
func (s Snapshot) Quotes() []models.Quote {
	return s.quotes.rows
}

// Quote looks up the current quote for a key
func (s Snapshot) Quote(key models.QuoteKey) (models.Quote, bool) {
	i, ok := s.quotes.index[key]
	if !ok {
		return models.Quote{}, false
	}
	return s.quotes.rows[i], true
}

// QuoteCount returns the number of rows in the quote table
func (s Snapshot) QuoteCount() int {
	return len(s.quotes.rows)
}

// Events returns the event table keyed by event_id
func (s Snapshot) Events() map[string]models.Event {
	return s.events
}

// Filters returns a copy of the filter state
func (s Snapshot) Filters() models.FilterState {
	return s.filters.Clone()
}

// FilteredQuotes runs the filter pipeline over the snapshot
func (s Snapshot) FilteredQuotes() []models.Quote {
	return ApplyFilters(s.quotes.rows, s.filters)
}

// Listener is notified after every store transition
type Listener func(Snapshot)

// Store owns the live quote table, the event table and the filter state.
// Every mutation swaps in a freshly built snapshot; previously returned
// snapshots are never modified.
type Store struct {
	mu      sync.RWMutex
	current Snapshot

	listenersMu sync.Mutex
	listeners   []listenerEntry
	nextID      int
}

type listenerEntry struct {
	id int
	fn Listener
}

// New creates an empty store with the given initial filters
func New(filters models.FilterState) *Store {
	return &Store{
		current: Snapshot{
			quotes:  newQuoteTable(),
			events:  make(map[string]models.Event),
			filters: filters.Clone(),
		},
	}
}

// Snapshot returns the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Upsert inserts or replaces the quote with the same key
func (s *Store) Upsert(q models.Quote) {
	s.apply(func(next *Snapshot) {
		next.quotes = next.quotes.with(q)
	})
}

// BatchUpsert applies all quotes as a single transition
func (s *Store) BatchUpsert(quotes []models.Quote) {
	if len(quotes) == 0 {
		return
	}
	s.apply(func(next *Snapshot) {
		next.quotes = next.quotes.withAll(quotes)
	})
}

// Clear empties the quote table; events and filters are kept
func (s *Store) Clear() {
	s.apply(func(next *Snapshot) {
		next.quotes = newQuoteTable()
	})
}

// UpsertEvent inserts or replaces event metadata by event_id
func (s *Store) UpsertEvent(e models.Event) {
	s.BatchUpsertEvents([]models.Event{e})
}

// BatchUpsertEvents applies all events as a single transition
func (s *Store) BatchUpsertEvents(events []models.Event) {
	if len(events) == 0 {
		return
	}
	s.apply(func(next *Snapshot) {
		table := make(map[string]models.Event, len(next.events)+len(events))
		for id, e := range next.events {
			table[id] = e
		}
		for _, e := range events {
			table[e.EventID] = e
		}
		next.events = table
	})
}

// SetFilters shallow-merges a partial update into the filter state
func (s *Store) SetFilters(patch models.FilterPatch) {
	s.apply(func(next *Snapshot) {
		next.filters = patch.Apply(next.filters)
	})
}

// GetFilteredQuotes returns the quotes passing all active filters,
// recomputed from the current snapshot on every call
func (s *Store) GetFilteredQuotes() []models.Quote {
	return s.Snapshot().FilteredQuotes()
}

// Subscribe registers a listener and returns a function that removes it.
// Listeners run on the mutating goroutine after the store lock is released.
func (s *Store) Subscribe(fn Listener) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})

	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// apply builds the next snapshot from the current one and publishes it
func (s *Store) apply(mutate func(next *Snapshot)) {
	s.mu.Lock()
	next := s.current
	mutate(&next)
	next.Version++
	s.current = next
	s.mu.Unlock()

	s.notify(next)
}

func (s *Store) notify(snap Snapshot) {
	s.listenersMu.Lock()
	listeners := make([]Listener, len(s.listeners))
	for i, l := range s.listeners {
		listeners[i] = l.fn
	}
	s.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
