package store

import "github.com/XavierBriggs/fortuna/services/odds-board/pkg/models"

// quoteTable is an insertion-ordered map of the latest quote per key.
// A table is never modified after it has been published in a snapshot;
// with/withAll return a new table.
type quoteTable struct {
	index map[models.QuoteKey]int
	rows  []models.Quote
}

func newQuoteTable() *quoteTable {
	return &quoteTable{index: make(map[models.QuoteKey]int)}
}

func (t *quoteTable) with(q models.Quote) *quoteTable {
	return t.withAll([]models.Quote{q})
}

// withAll copies the table once and applies every quote in order.
// An overwrite keeps the row's original position.
func (t *quoteTable) withAll(quotes []models.Quote) *quoteTable {
	next := &quoteTable{
		index: make(map[models.QuoteKey]int, len(t.index)+len(quotes)),
		rows:  make([]models.Quote, len(t.rows), len(t.rows)+len(quotes)),
	}
	for k, i := range t.index {
		next.index[k] = i
	}
	copy(next.rows, t.rows)

	for _, q := range quotes {
		key := q.Key()
		if i, ok := next.index[key]; ok {
			next.rows[i] = q
			continue
		}
		next.index[key] = len(next.rows)
		next.rows = append(next.rows, q)
	}
	return next
}
