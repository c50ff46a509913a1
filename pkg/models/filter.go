package models

import (
	"encoding/json"
	"fmt"
)

// FilterState is the user's view configuration for the live table
type FilterState struct {
	Sport       string      `json:"sport"`
	Markets     []string    `json:"markets"` // empty = all
	Books       []string    `json:"books"`   // empty = all
	MinEdge     *float64    `json:"min_edge"`
	SearchQuery string      `json:"search_query"`
	EventStatus EventStatus `json:"event_status,omitempty"` // empty = all
}

// Clone returns a copy that shares no slices with f
func (f FilterState) Clone() FilterState {
	out := f
	out.Markets = cloneStrings(f.Markets)
	out.Books = cloneStrings(f.Books)
	if f.MinEdge != nil {
		v := *f.MinEdge
		out.MinEdge = &v
	}
	return out
}

// FilterPatch is a partial update to FilterState. Nil fields are left unchanged;
// an empty (non-nil) slice resets a set filter to "all".
type FilterPatch struct {
	Sport       *string       `json:"sport,omitempty"`
	Markets     []string      `json:"markets,omitempty"`
	Books       []string      `json:"books,omitempty"`
	MinEdge     OptionalFloat `json:"min_edge"`
	SearchQuery *string       `json:"search_query,omitempty"`
	EventStatus *EventStatus  `json:"event_status,omitempty"`
}

// Apply shallow-merges the patch into f and returns the result
func (p FilterPatch) Apply(f FilterState) FilterState {
	out := f.Clone()
	if p.Sport != nil {
		out.Sport = *p.Sport
	}
	if p.Markets != nil {
		out.Markets = cloneStrings(p.Markets)
	}
	if p.Books != nil {
		out.Books = cloneStrings(p.Books)
	}
	if p.MinEdge.Set {
		out.MinEdge = nil
		if p.MinEdge.Value != nil {
			v := *p.MinEdge.Value
			out.MinEdge = &v
		}
	}
	if p.SearchQuery != nil {
		out.SearchQuery = *p.SearchQuery
	}
	if p.EventStatus != nil {
		out.EventStatus = *p.EventStatus
	}
	return out
}

// OptionalFloat tells an absent JSON field apart from an explicit null
type OptionalFloat struct {
	Set   bool
	Value *float64
}

// Float returns a set OptionalFloat holding v
func Float(v float64) OptionalFloat {
	return OptionalFloat{Set: true, Value: &v}
}

// Null returns a set OptionalFloat holding null
func Null() OptionalFloat {
	return OptionalFloat{Set: true}
}

// UnmarshalJSON only runs when the field is present
func (o *OptionalFloat) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("min_edge must be a number or null: %w", err)
	}
	o.Value = &v
	return nil
}

// MarshalJSON writes the value or null
func (o OptionalFloat) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
