package grouping

import "github.com/XavierBriggs/fortuna/services/odds-board/pkg/models"

// SharpBooks is the ordered allow-list of consensus-setting books.
// Order matters: the first listed book that quotes an outcome is its reference.
type SharpBooks []string

// NewSharpBooks builds the allow-list. Configured books come first, in the
// order given; books the catalog classifies as sharp are appended after.
func NewSharpBooks(configured []string, catalog []models.Book) SharpBooks {
	seen := make(map[string]bool)
	list := make(SharpBooks, 0, len(configured))

	for _, key := range configured {
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		list = append(list, key)
	}

	for _, b := range catalog {
		if !b.IsSharp() || seen[b.BookKey] {
			continue
		}
		seen[b.BookKey] = true
		list = append(list, b.BookKey)
	}

	return list
}

// Contains returns whether a given book is considered sharp
func (s SharpBooks) Contains(bookKey string) bool {
	for _, key := range s {
		if key == bookKey {
			return true
		}
	}
	return false
}

// Reference returns the outcome's quote from the highest-priority sharp book
func (s SharpBooks) Reference(g models.OutcomeGroup) (models.Quote, bool) {
	for _, key := range s {
		if q, ok := g.QuotesByBook[key]; ok {
			return q, true
		}
	}
	return models.Quote{}, false
}
