// Package scope resolves stored activations that carry multi-dimensional
// constraint sets (e.g. company_id, org_id) against a requested context
// scope, with wildcard support and most-specific-wins ranking.
package scope

import (
	"time"
)

// Constraints is a set of dimension constraints on a stored activation.
// A nil value means wildcard: the dimension is constrained to "any".
// A dimension absent from the map is simply not constrained and not
// considered during specificity ranking.
type Constraints map[string]*string

// Exact is a convenience constructor for a non-wildcard constraint value.
func Exact(v string) *string { return &v }

// Record is one stored scoped activation for a feature.
type Record struct {
	Constraints Constraints `json:"constraints"`
	Kind        string      `json:"kind"`
	Value       any         `json:"value"`
	WrittenAt   time.Time   `json:"writtenAt"`
}

// wildcards counts wildcard dimensions; fewer wildcards means more specific.
func (r Record) wildcards() int {
	n := 0
	for _, v := range r.Constraints {
		if v == nil {
			n++
		}
	}
	return n
}

// Match reports whether stored constraints accept the requested scope.
// Every dimension present in stored must either be the wildcard or equal
// the requested value for that dimension. A dimension missing from the
// request only matches the wildcard.
func Match(stored Constraints, requested map[string]string) bool {
	for dim, want := range stored {
		if want == nil {
			continue // wildcard: any value, including absent
		}
		got, ok := requested[dim]
		if !ok || got != *want {
			return false
		}
	}
	return true
}

// Resolve picks the stored value for the requested scope and kind.
//
// Kind must match exactly. Among matching records the most specific one
// (fewest wildcard dimensions) wins; ties are broken by the most recent
// WrittenAt. Returns (nil, false) when nothing matches — an unmatched scope
// is an inactive result, never an error.
func Resolve(records []Record, requested map[string]string, kind string) (any, bool) {
	var best *Record
	bestWild := 0

	for i := range records {
		r := &records[i]
		if r.Kind != kind {
			continue
		}
		if !Match(r.Constraints, requested) {
			continue
		}
		w := r.wildcards()
		switch {
		case best == nil:
			best, bestWild = r, w
		case w < bestWild:
			best, bestWild = r, w
		case w == bestWild && r.WrittenAt.After(best.WrittenAt):
			best = r
		}
	}

	if best == nil {
		return nil, false
	}
	return best.Value, true
}
