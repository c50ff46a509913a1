package models

import "time"

// Quote is one book's current price for one outcome of one market of one event.
// Fair price and edge are computed upstream by the normalizer.
type Quote struct {
	EventID            string    `json:"event_id"`
	SportKey           string    `json:"sport_key"`
	MarketKey          string    `json:"market_key"`
	BookKey            string    `json:"book_key"`
	OutcomeName        string    `json:"outcome_name"`
	Point              *float64  `json:"point"`
	Price              int       `json:"price"` // American odds
	DecimalOdds        float64   `json:"decimal_odds"`
	ImpliedProbability float64   `json:"implied_probability"`
	FairPrice          *int      `json:"fair_price"`
	Edge               *float64  `json:"edge"`
	ObservedAt         time.Time `json:"observed_at"`
}

// QuoteKey identifies a row in the quote table. Point is not part
// of the key: a later line for the same book/outcome replaces the earlier one.
type QuoteKey struct {
	EventID     string
	MarketKey   string
	BookKey     string
	OutcomeName string
}

// Key returns the store key for the quote
func (q Quote) Key() QuoteKey {
	return QuoteKey{
		EventID:     q.EventID,
		MarketKey:   q.MarketKey,
		BookKey:     q.BookKey,
		OutcomeName: q.OutcomeName,
	}
}

// OutcomeKey partitions quotes into outcome groups
type OutcomeKey struct {
	OutcomeName string
	HasPoint    bool
	Point       float64
}

// OutcomeKey returns the (outcome_name, point) partition key
func (q Quote) OutcomeKey() OutcomeKey {
	k := OutcomeKey{OutcomeName: q.OutcomeName}
	if q.Point != nil {
		k.HasPoint = true
		k.Point = *q.Point
	}
	return k
}

// EventStatus is the lifecycle state of an event
type EventStatus string

const (
	EventStatusLive     EventStatus = "live"
	EventStatusUpcoming EventStatus = "upcoming"
	EventStatusFinal    EventStatus = "final"
)

// Event represents a sporting event
type Event struct {
	EventID      string      `json:"event_id"`
	SportKey     string      `json:"sport_key"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	CommenceTime time.Time   `json:"commence_time"`
	EventStatus  EventStatus `json:"event_status"`
}

// Book types reported by Alexandria
const (
	BookTypeSharp  = "sharp"
	BookTypeRetail = "retail"
)

// Book is a sportsbook known to the platform
type Book struct {
	BookKey     string `json:"book_key"`
	DisplayName string `json:"display_name"`
	BookType    string `json:"book_type"`
	Active      bool   `json:"active"`
}

// IsSharp reports whether the book sets consensus lines
func (b Book) IsSharp() bool {
	return b.BookType == BookTypeSharp
}

// OutcomeGroup collects every book's quote for one (outcome, point)
type OutcomeGroup struct {
	OutcomeName  string           `json:"outcome_name"`
	Point        *float64         `json:"point"`
	QuotesByBook map[string]Quote `json:"quotes_by_book"`
	Books        []string         `json:"books"` // book keys in first-seen order
	BestPrice    *Quote           `json:"best_price"`
	BestEdge     *Quote           `json:"best_edge"`
}

// EventGroup is the derived per-event view
type EventGroup struct {
	Event      Event          `json:"event"`
	Outcomes   []OutcomeGroup `json:"outcomes"`
	Hold       float64        `json:"hold"`
	MaxDataAge int64          `json:"max_data_age_seconds"`
}
