package grouping

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/odds-board/pkg/models"
	"github.com/XavierBriggs/fortuna/services/odds-board/pkg/oddsmath"
)

// Options carries the inputs of GroupByEvent that are not part of the snapshot
type Options struct {
	SharpBooks SharpBooks
	Now        time.Time
	Logger     *zap.Logger
}

// GroupByOutcome partitions quotes by (outcome_name, point) in first-seen
// order and derives the best price and best edge of each partition.
func GroupByOutcome(quotes []models.Quote) []models.OutcomeGroup {
	index := make(map[models.OutcomeKey]int)
	groups := make([]models.OutcomeGroup, 0)

	for _, q := range quotes {
		key := q.OutcomeKey()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, models.OutcomeGroup{
				OutcomeName:  q.OutcomeName,
				Point:        q.Point,
				QuotesByBook: make(map[string]models.Quote),
			})
		}

		g := &groups[i]
		if _, seen := g.QuotesByBook[q.BookKey]; !seen {
			g.Books = append(g.Books, q.BookKey)
		}
		// last write wins; the store never holds duplicates
		g.QuotesByBook[q.BookKey] = q
	}

	for i := range groups {
		groups[i].BestPrice = bestPrice(groups[i])
		groups[i].BestEdge = bestEdge(groups[i])
	}

	return groups
}

// bestPrice returns the quote with the largest American price.
// Ties keep the first book encountered.
func bestPrice(g models.OutcomeGroup) *models.Quote {
	var best *models.Quote
	for _, book := range g.Books {
		q := g.QuotesByBook[book]
		if best == nil || oddsmath.BetterPrice(q.Price, best.Price) {
			best = &q
		}
	}
	return best
}

// bestEdge returns the quote with the largest non-null edge, nil if none has one
func bestEdge(g models.OutcomeGroup) *models.Quote {
	var best *models.Quote
	for _, book := range g.Books {
		q := g.QuotesByBook[book]
		if q.Edge == nil {
			continue
		}
		if best == nil || *q.Edge > *best.Edge {
			best = &q
		}
	}
	return best
}

// GroupByEvent folds a flat quote list into per-event groups. Quotes whose
// event is unknown are dropped. The result lists live events first, then
// ascending commence time.
func GroupByEvent(quotes []models.Quote, events map[string]models.Event, opts Options) []models.EventGroup {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	order := make([]string, 0)
	partitions := make(map[string][]models.Quote)
	for _, q := range quotes {
		if _, ok := partitions[q.EventID]; !ok {
			order = append(order, q.EventID)
		}
		partitions[q.EventID] = append(partitions[q.EventID], q)
	}

	groups := make([]models.EventGroup, 0, len(order))
	for _, eventID := range order {
		event, ok := events[eventID]
		if !ok {
			log.Debug("dropping quotes for unknown event",
				zap.String("event_id", eventID),
				zap.Int("quotes", len(partitions[eventID])))
			continue
		}

		partition := partitions[eventID]
		outcomes := GroupByOutcome(partition)
		groups = append(groups, models.EventGroup{
			Event:      event,
			Outcomes:   outcomes,
			Hold:       Hold(outcomes, opts.SharpBooks),
			MaxDataAge: MaxDataAge(partition, now),
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return less(groups[i].Event, groups[j].Event)
	})

	return groups
}

// less orders live events first, then by commence time
func less(a, b models.Event) bool {
	aLive := a.EventStatus == models.EventStatusLive
	bLive := b.EventStatus == models.EventStatusLive
	if aLive != bLive {
		return aLive
	}
	return a.CommenceTime.Before(b.CommenceTime)
}

// Hold computes the market hold from the sharp reference quote of each side.
// It is only defined for exactly two outcome groups; any other shape, or a
// side without a sharp quote, yields 0.
func Hold(outcomes []models.OutcomeGroup, sharp SharpBooks) float64 {
	if len(outcomes) != 2 {
		return 0
	}

	first, ok := sharp.Reference(outcomes[0])
	if !ok {
		return 0
	}
	second, ok := sharp.Reference(outcomes[1])
	if !ok {
		return 0
	}

	return oddsmath.Hold(first.ImpliedProbability, second.ImpliedProbability)
}

// MaxDataAge returns the oldest quote's age in whole seconds.
// Quotes stamped in the future count as age 0.
func MaxDataAge(quotes []models.Quote, now time.Time) int64 {
	var oldest int64
	for _, q := range quotes {
		age := int64(now.Sub(q.ObservedAt) / time.Second)
		if age > oldest {
			oldest = age
		}
	}
	return oldest
}
