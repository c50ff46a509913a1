// Package board coordinates the store, the catalog and the feed client:
// loading reference data, switching sports and building the rendered view.
package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/XavierBriggs/fortuna/services/odds-board/internal/catalog"
	"github.com/XavierBriggs/fortuna/services/odds-board/internal/grouping"
	"github.com/XavierBriggs/fortuna/services/odds-board/internal/presentation"
	"github.com/XavierBriggs/fortuna/services/odds-board/internal/store"
	"github.com/XavierBriggs/fortuna/services/odds-board/internal/stream"
	"github.com/XavierBriggs/fortuna/services/odds-board/pkg/models"
)

// ErrEmptySport is returned when switching to a blank sport key
var ErrEmptySport = errors.New("sport is required")

// Feed is the part of the stream client the board drives
type Feed interface {
	Connect()
	Disconnect()
	SetSubscription(filter models.SubscriptionFilter)
	Status() stream.Status
}

// invalidator is implemented by caching sources
type invalidator interface {
	Invalidate(ctx context.Context, sport string) error
}

// Options configures a Board
type Options struct {
	Store      *store.Store
	Source     catalog.Source
	Feed       Feed
	SharpBooks []string // configured allow-list, highest priority first
	Tracker    *presentation.FlashTracker
	Logger     *zap.Logger
	Clock      func() time.Time
}

// View is the rendered board at one store version
type View struct {
	Version     uint64                   `json:"version"`
	GeneratedAt time.Time                `json:"generated_at"`
	Filters     models.FilterState       `json:"filters"`
	SharpBooks  []string                 `json:"sharp_books"`
	Events      []presentation.EventView `json:"events"`
}

// Board ties the live store to its collaborators
type Board struct {
	store      *store.Store
	source     catalog.Source
	feed       Feed
	configured []string
	tracker    *presentation.FlashTracker
	log        *zap.Logger
	clock      func() time.Time

	mu    sync.RWMutex
	sharp grouping.SharpBooks
	books []models.Book

	switchMu    sync.Mutex
	unsubscribe func()
}

// New creates a board and starts tracking price changes on the store
func New(opts Options) *Board {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Tracker == nil {
		opts.Tracker = presentation.NewFlashTracker(presentation.DefaultFlashDuration)
	}

	b := &Board{
		store:      opts.Store,
		source:     opts.Source,
		feed:       opts.Feed,
		configured: opts.SharpBooks,
		tracker:    opts.Tracker,
		log:        opts.Logger,
		clock:      opts.Clock,
		sharp:      grouping.NewSharpBooks(opts.SharpBooks, nil),
	}
	b.unsubscribe = b.store.Subscribe(func(snap store.Snapshot) {
		b.tracker.Observe(snap.Quotes(), b.clock())
	})
	return b
}

// Close stops tracking the store
func (b *Board) Close() {
	b.unsubscribe()
}

// Load fetches events for the active sport and the book list in parallel,
// then rebuilds the sharp allow-list
func (b *Board) Load(ctx context.Context) error {
	sport := b.store.Snapshot().Filters().Sport

	var events []models.Event
	var books []models.Book

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		events, err = b.source.Events(gctx, sport)
		if err != nil {
			return fmt.Errorf("load events for %s: %w", sport, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		books, err = b.source.Books(gctx)
		if err != nil {
			return fmt.Errorf("load books: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	b.store.BatchUpsertEvents(events)

	sharp := grouping.NewSharpBooks(b.configured, books)
	b.mu.Lock()
	b.sharp = sharp
	b.books = books
	b.mu.Unlock()

	b.log.Info("catalog loaded",
		zap.String("sport", sport),
		zap.Int("events", len(events)),
		zap.Int("books", len(books)),
		zap.Strings("sharp_books", sharp))
	return nil
}

// Start loads the catalog and connects the feed. A catalog failure is
// logged; quotes for unknown events stay out of the grouped view until a
// later load succeeds.
func (b *Board) Start(ctx context.Context) {
	if err := b.Load(ctx); err != nil {
		b.log.Warn("initial catalog load failed", zap.Error(err))
	}
	b.feed.SetSubscription(b.subscription(b.store.Snapshot().Filters()))
	b.feed.Connect()
}

// SwitchSport tears down the feed, clears quotes, reloads events for the
// new sport and reconnects with the new subscription.
func (b *Board) SwitchSport(ctx context.Context, sport string) error {
	sport = strings.TrimSpace(sport)
	if sport == "" {
		return ErrEmptySport
	}

	b.switchMu.Lock()
	defer b.switchMu.Unlock()

	b.feed.Disconnect()
	b.store.Clear()
	b.store.SetFilters(models.FilterPatch{Sport: &sport})

	events, err := b.source.Events(ctx, sport)
	if err == nil {
		b.store.BatchUpsertEvents(events)
	}

	b.feed.SetSubscription(b.subscription(b.store.Snapshot().Filters()))
	b.feed.Connect()

	if err != nil {
		return fmt.Errorf("load events for %s: %w", sport, err)
	}
	b.log.Info("switched sport", zap.String("sport", sport), zap.Int("events", len(events)))
	return nil
}

// RefreshCatalog drops cached events for the active sport and cached books, then reloads
func (b *Board) RefreshCatalog(ctx context.Context) error {
	if inv, ok := b.source.(invalidator); ok {
		sport := b.store.Snapshot().Filters().Sport
		if err := inv.Invalidate(ctx, sport); err != nil {
			b.log.Warn("catalog invalidate failed", zap.Error(err))
		}
	}
	return b.Load(ctx)
}

// UpdateFilters merges a partial filter update. A sport change goes through
// SwitchSport so the feed subscription follows it. The remaining fields are
// applied even when the switch reports a catalog error; only a rejected
// sport leaves the filters untouched.
func (b *Board) UpdateFilters(ctx context.Context, patch models.FilterPatch) error {
	var switchErr error
	current := b.store.Snapshot().Filters()
	if patch.Sport != nil && *patch.Sport != current.Sport {
		switchErr = b.SwitchSport(ctx, *patch.Sport)
		if errors.Is(switchErr, ErrEmptySport) {
			return switchErr
		}
	}
	patch.Sport = nil
	b.store.SetFilters(patch)
	return switchErr
}

// Reconnect forces a fresh connection with a fresh reconnect budget
func (b *Board) Reconnect() {
	b.feed.Disconnect()
	b.feed.Connect()
}

// ConnectionStatus reports the feed connection status
func (b *Board) ConnectionStatus() stream.Status {
	return b.feed.Status()
}

// SharpBooks returns the resolved allow-list
func (b *Board) SharpBooks() grouping.SharpBooks {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sharp
}

// Books returns the books from the last catalog load
func (b *Board) Books() []models.Book {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.books
}

// Filters returns the active filters
func (b *Board) Filters() models.FilterState {
	return b.store.Snapshot().Filters()
}

// FilteredQuotes returns the quotes passing the active filters
func (b *Board) FilteredQuotes() []models.Quote {
	return b.store.GetFilteredQuotes()
}

// View groups the filtered quotes of one snapshot and renders them
func (b *Board) View() View {
	now := b.clock()
	snap := b.store.Snapshot()
	filters := snap.Filters()
	sharp := b.SharpBooks()

	groups := grouping.GroupByEvent(snap.FilteredQuotes(), snap.Events(), grouping.Options{
		SharpBooks: sharp,
		Now:        now,
		Logger:     b.log,
	})

	if filters.EventStatus != "" {
		kept := groups[:0]
		for _, g := range groups {
			if g.Event.EventStatus == filters.EventStatus {
				kept = append(kept, g)
			}
		}
		groups = kept
	}

	renderer := presentation.Renderer{Sharp: sharp, Tracker: b.tracker}
	return View{
		Version:     snap.Version,
		GeneratedAt: now,
		Filters:     filters,
		SharpBooks:  sharp,
		Events:      renderer.Render(groups, now),
	}
}

// subscription asks the feed for the whole sport; market and book filters
// are applied locally so changing them never needs a resubscribe
func (b *Board) subscription(f models.FilterState) models.SubscriptionFilter {
	return models.SubscriptionFilter{Sports: []string{f.Sport}}
}
