package presentation

import (
	"fmt"
	"time"

	"github.com/XavierBriggs/fortuna/services/odds-board/internal/grouping"
	"github.com/XavierBriggs/fortuna/services/odds-board/pkg/models"
	"github.com/XavierBriggs/fortuna/services/odds-board/pkg/oddsmath"
)

// Badges attached to a cell
const (
	BadgeBestPrice = "best_price"
	BadgeBestEdge  = "best_edge"
	BadgeSharp     = "sharp"
	BadgeStale     = "stale"
)

// EventView is one event row of the live table
type EventView struct {
	EventID      string             `json:"event_id"`
	Matchup      string             `json:"matchup"`
	Status       models.EventStatus `json:"status"`
	CommenceTime time.Time          `json:"commence_time"`
	Hold         float64            `json:"hold"`
	HoldDisplay  string             `json:"hold_display"`
	SoftMarket   bool               `json:"soft_market"`
	MaxDataAge   int64              `json:"max_data_age_seconds"`
	AgeBucket    AgeBucket          `json:"age_bucket"`
	Outcomes     []OutcomeView      `json:"outcomes"`
}

// OutcomeView is one outcome line within an event
type OutcomeView struct {
	OutcomeName string     `json:"outcome_name"`
	Point       *float64   `json:"point,omitempty"`
	BestPrice   string     `json:"best_price,omitempty"`
	BestBook    string     `json:"best_book,omitempty"`
	BestEdge    *float64   `json:"best_edge,omitempty"`
	Cells       []CellView `json:"cells"`
}

// CellView is one book's quote for an outcome
type CellView struct {
	BookKey      string         `json:"book_key"`
	MarketKey    string         `json:"market_key"`
	Price        int            `json:"price"`
	PriceDisplay string         `json:"price_display"`
	Point        *float64       `json:"point,omitempty"`
	Edge         *float64       `json:"edge,omitempty"`
	EdgeDisplay  string         `json:"edge_display,omitempty"`
	AgeSeconds   int64          `json:"age_seconds"`
	AgeBucket    AgeBucket      `json:"age_bucket"`
	Flash        FlashDirection `json:"flash,omitempty"`
	Badges       []string       `json:"badges,omitempty"`
}

// Renderer turns grouped events into table rows at a point in time
type Renderer struct {
	Sharp   grouping.SharpBooks
	Tracker *FlashTracker
}

// Render builds the table rows for the given groups
func (r Renderer) Render(groups []models.EventGroup, now time.Time) []EventView {
	views := make([]EventView, 0, len(groups))
	for _, g := range groups {
		views = append(views, r.renderEvent(g, now))
	}
	return views
}

func (r Renderer) renderEvent(g models.EventGroup, now time.Time) EventView {
	view := EventView{
		EventID:      g.Event.EventID,
		Matchup:      matchup(g.Event),
		Status:       g.Event.EventStatus,
		CommenceTime: g.Event.CommenceTime,
		Hold:         oddsmath.RoundToNearestCent(g.Hold),
		HoldDisplay:  oddsmath.FormatPercent(g.Hold),
		SoftMarket:   oddsmath.IsSoftMarket(g.Hold),
		MaxDataAge:   g.MaxDataAge,
		AgeBucket:    Bucket(g.MaxDataAge),
		Outcomes:     make([]OutcomeView, 0, len(g.Outcomes)),
	}

	for _, o := range g.Outcomes {
		view.Outcomes = append(view.Outcomes, r.renderOutcome(o, now))
	}
	return view
}

func (r Renderer) renderOutcome(o models.OutcomeGroup, now time.Time) OutcomeView {
	view := OutcomeView{
		OutcomeName: o.OutcomeName,
		Point:       o.Point,
		Cells:       make([]CellView, 0, len(o.Books)),
	}
	if o.BestPrice != nil {
		view.BestPrice = oddsmath.FormatAmerican(o.BestPrice.Price)
		view.BestBook = o.BestPrice.BookKey
	}
	if o.BestEdge != nil {
		view.BestEdge = o.BestEdge.Edge
	}

	for _, book := range o.Books {
		q := o.QuotesByBook[book]
		age := DataAge(q.ObservedAt, now)
		cell := CellView{
			BookKey:      q.BookKey,
			MarketKey:    q.MarketKey,
			Price:        q.Price,
			PriceDisplay: oddsmath.FormatAmerican(q.Price),
			Point:        q.Point,
			Edge:         q.Edge,
			AgeSeconds:   age,
			AgeBucket:    Bucket(age),
		}
		if q.Edge != nil {
			cell.EdgeDisplay = oddsmath.FormatPercent(*q.Edge)
		}
		if r.Tracker != nil {
			cell.Flash = r.Tracker.State(q.Key(), now)
		}
		cell.Badges = r.badges(o, q, cell.AgeBucket)
		view.Cells = append(view.Cells, cell)
	}
	return view
}

func (r Renderer) badges(o models.OutcomeGroup, q models.Quote, bucket AgeBucket) []string {
	var badges []string
	if o.BestPrice != nil && o.BestPrice.BookKey == q.BookKey {
		badges = append(badges, BadgeBestPrice)
	}
	if o.BestEdge != nil && o.BestEdge.BookKey == q.BookKey {
		badges = append(badges, BadgeBestEdge)
	}
	if r.Sharp.Contains(q.BookKey) {
		badges = append(badges, BadgeSharp)
	}
	if bucket == AgeStale {
		badges = append(badges, BadgeStale)
	}
	return badges
}

func matchup(e models.Event) string {
	if e.AwayTeam == "" && e.HomeTeam == "" {
		return e.EventID
	}
	return fmt.Sprintf("%s @ %s", e.AwayTeam, e.HomeTeam)
}
