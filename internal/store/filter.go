package store

import (
	"strings"

	"github.com/XavierBriggs/fortuna/services/odds-board/pkg/models"
)

// Matches runs the filter pipeline for one quote, stopping at the first
// failing predicate: sport, markets, books, minEdge, searchQuery.
func Matches(q models.Quote, f models.FilterState) bool {
	// Sport is always active, there is no "all" sentinel
	if q.SportKey != f.Sport {
		return false
	}

	if len(f.Markets) > 0 && !contains(f.Markets, q.MarketKey) {
		return false
	}

	if len(f.Books) > 0 && !contains(f.Books, q.BookKey) {
		return false
	}

	// A quote without an edge is never excluded by the threshold.
	// TODO: confirm with product whether null-edge quotes should be hidden once a threshold is set.
	if f.MinEdge != nil && q.Edge != nil && *q.Edge < *f.MinEdge {
		return false
	}

	if f.SearchQuery != "" {
		haystack := strings.ToLower(q.OutcomeName + " " + q.BookKey)
		if !strings.Contains(haystack, strings.ToLower(f.SearchQuery)) {
			return false
		}
	}

	return true
}

// ApplyFilters returns the quotes that pass f, preserving input order
func ApplyFilters(quotes []models.Quote, f models.FilterState) []models.Quote {
	out := make([]models.Quote, 0, len(quotes))
	for _, q := range quotes {
		if Matches(q, f) {
			out = append(out, q)
		}
	}
	return out
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
