package grouping_test

import (
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/XavierBriggs/fortuna/services/odds-board/internal/grouping"
	"github.com/XavierBriggs/fortuna/services/odds-board/pkg/models"
)

var now = time.Date(2025, 1, 15, 20, 0, 0, 0, time.UTC)

func mockQuote(eventID, bookKey, outcome string, price int) models.Quote {
	return models.Quote{
		EventID:            eventID,
		SportKey:           "basketball_nba",
		MarketKey:          "h2h",
		BookKey:            bookKey,
		OutcomeName:        outcome,
		Price:              price,
		ImpliedProbability: 0.5,
		ObservedAt:         now.Add(-5 * time.Second),
	}
}

func ptrFloat64(f float64) *float64 {
	return &f
}

func TestGroupByOutcome_BestPrice(t *testing.T) {
	groups := grouping.GroupByOutcome([]models.Quote{
		mockQuote("event1", "fanduel", "Lakers", -110),
		mockQuote("event1", "draftkings", "Lakers", 120),
		mockQuote("event1", "betmgm", "Lakers", -105),
	})

	if len(groups) != 1 {
		t.Fatalf("Expected 1 group, got %d", len(groups))
	}
	if groups[0].BestPrice == nil || groups[0].BestPrice.Price != 120 {
		t.Errorf("Expected best price 120, got %+v", groups[0].BestPrice)
	}
}

func TestGroupByOutcome_BestPriceTieKeepsFirst(t *testing.T) {
	groups := grouping.GroupByOutcome([]models.Quote{
		mockQuote("event1", "fanduel", "Lakers", -105),
		mockQuote("event1", "draftkings", "Lakers", -105),
	})

	if groups[0].BestPrice.BookKey != "fanduel" {
		t.Errorf("Expected first-encountered fanduel on tie, got %s", groups[0].BestPrice.BookKey)
	}
}

func TestGroupByOutcome_BestEdgeSkipsNull(t *testing.T) {
	a := mockQuote("event1", "fanduel", "Lakers", -110)
	a.Edge = ptrFloat64(0.01)
	b := mockQuote("event1", "draftkings", "Lakers", -108)
	c := mockQuote("event1", "betmgm", "Lakers", -105)
	c.Edge = ptrFloat64(0.03)

	groups := grouping.GroupByOutcome([]models.Quote{a, b, c})
	if groups[0].BestEdge == nil || *groups[0].BestEdge.Edge != 0.03 {
		t.Errorf("Expected best edge 0.03, got %+v", groups[0].BestEdge)
	}

	noEdges := grouping.GroupByOutcome([]models.Quote{b})
	if noEdges[0].BestEdge != nil {
		t.Errorf("Expected nil best edge, got %+v", noEdges[0].BestEdge)
	}
}

func TestGroupByOutcome_PartitionCompleteness(t *testing.T) {
	spreadHome := mockQuote("event1", "fanduel", "Lakers", -110)
	spreadHome.Point = ptrFloat64(-5.5)
	altHome := mockQuote("event1", "draftkings", "Lakers", -120)
	altHome.Point = ptrFloat64(-6.5)

	input := []models.Quote{
		mockQuote("event1", "fanduel", "Lakers", -110),
		mockQuote("event1", "fanduel", "Celtics", -110),
		mockQuote("event1", "draftkings", "Lakers", -105),
		spreadHome,
		altHome,
	}

	groups := grouping.GroupByOutcome(input)
	if len(groups) != 4 {
		t.Fatalf("Expected 4 partitions, got %d", len(groups))
	}

	total := 0
	seen := make(map[string]bool)
	for _, g := range groups {
		for book, q := range g.QuotesByBook {
			if q.BookKey != book {
				t.Errorf("quotesByBook key %s holds quote for %s", book, q.BookKey)
			}
			id := q.OutcomeName + "|" + q.BookKey + "|" + formatPoint(q.Point)
			if seen[id] {
				t.Errorf("quote %s appears in more than one partition", id)
			}
			seen[id] = true
			total++
		}
		if len(g.Books) != len(g.QuotesByBook) {
			t.Errorf("book order has %d entries for %d quotes", len(g.Books), len(g.QuotesByBook))
		}
	}
	if total != len(input) {
		t.Errorf("Expected union of %d quotes, got %d", len(input), total)
	}
}

func formatPoint(p *float64) string {
	if p == nil {
		return "nil"
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func TestHold(t *testing.T) {
	sharp := grouping.SharpBooks{"pinnacle", "circasports"}

	home := mockQuote("event1", "pinnacle", "Lakers", -105)
	home.ImpliedProbability = 0.512
	away := mockQuote("event1", "pinnacle", "Celtics", -105)
	away.ImpliedProbability = 0.512
	retail := mockQuote("event1", "fanduel", "Celtics", -110)
	retail.ImpliedProbability = 0.5238

	groups := grouping.GroupByOutcome([]models.Quote{home, retail, away})
	if got := grouping.Hold(groups, sharp); math.Abs(got-0.024) > 1e-9 {
		t.Errorf("Expected hold 0.024, got %f", got)
	}

	noSharp := grouping.GroupByOutcome([]models.Quote{home, retail})
	if got := grouping.Hold(noSharp, sharp); got != 0 {
		t.Errorf("Expected hold 0 without sharp quote on one side, got %f", got)
	}

	draw := mockQuote("event1", "pinnacle", "Draw", 250)
	threeWay := grouping.GroupByOutcome([]models.Quote{home, away, draw})
	if got := grouping.Hold(threeWay, sharp); got != 0 {
		t.Errorf("Expected hold 0 for 3-way market, got %f", got)
	}
}

func TestHold_UsesAllowListPriority(t *testing.T) {
	sharp := grouping.SharpBooks{"pinnacle", "circasports"}

	circaHome := mockQuote("event1", "circasports", "Lakers", -110)
	circaHome.ImpliedProbability = 0.60
	pinHome := mockQuote("event1", "pinnacle", "Lakers", -105)
	pinHome.ImpliedProbability = 0.51
	circaAway := mockQuote("event1", "circasports", "Celtics", -110)
	circaAway.ImpliedProbability = 0.48

	groups := grouping.GroupByOutcome([]models.Quote{circaHome, pinHome, circaAway})
	got := grouping.Hold(groups, sharp)
	if math.Abs(got-(0.51+0.48-1)) > 1e-9 {
		t.Errorf("Expected pinnacle to be the home reference, got hold %f", got)
	}
	if got >= 0 {
		t.Errorf("Expected negative (soft) hold, got %f", got)
	}
}

func TestGroupByEvent(t *testing.T) {
	events := map[string]models.Event{
		"upcoming-late":  {EventID: "upcoming-late", EventStatus: models.EventStatusUpcoming, CommenceTime: now.Add(3 * time.Hour)},
		"upcoming-early": {EventID: "upcoming-early", EventStatus: models.EventStatusUpcoming, CommenceTime: now.Add(1 * time.Hour)},
		"live":           {EventID: "live", EventStatus: models.EventStatusLive, CommenceTime: now.Add(-1 * time.Hour)},
		"live-late":      {EventID: "live-late", EventStatus: models.EventStatusLive, CommenceTime: now.Add(-10 * time.Minute)},
	}

	stale := mockQuote("live", "fanduel", "Lakers", -110)
	stale.ObservedAt = now.Add(-95*time.Second - 400*time.Millisecond)

	quotes := []models.Quote{
		mockQuote("upcoming-late", "fanduel", "Knicks", -110),
		mockQuote("unknown", "fanduel", "Bulls", -110),
		mockQuote("live-late", "fanduel", "Suns", -110),
		mockQuote("upcoming-early", "fanduel", "Heat", -110),
		stale,
		mockQuote("live", "draftkings", "Lakers", -105),
	}

	groups := grouping.GroupByEvent(quotes, events, grouping.Options{Now: now})

	wantOrder := []string{"live", "live-late", "upcoming-early", "upcoming-late"}
	if len(groups) != len(wantOrder) {
		t.Fatalf("Expected %d groups (unknown dropped), got %d", len(wantOrder), len(groups))
	}
	for i, id := range wantOrder {
		if groups[i].Event.EventID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, groups[i].Event.EventID)
		}
	}

	if groups[0].MaxDataAge != 95 {
		t.Errorf("Expected max data age 95s, got %d", groups[0].MaxDataAge)
	}
	if groups[2].MaxDataAge != 5 {
		t.Errorf("Expected max data age 5s, got %d", groups[2].MaxDataAge)
	}
}

func TestNewSharpBooks(t *testing.T) {
	books := []models.Book{
		{BookKey: "bookmaker", BookType: models.BookTypeSharp},
		{BookKey: "fanduel", BookType: models.BookTypeRetail},
		{BookKey: "pinnacle", BookType: models.BookTypeSharp},
	}

	got := grouping.NewSharpBooks([]string{"pinnacle", "circasports", "pinnacle", ""}, books)
	want := []string{"pinnacle", "circasports", "bookmaker"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if got.Contains("fanduel") {
		t.Error("retail book marked sharp")
	}
}
