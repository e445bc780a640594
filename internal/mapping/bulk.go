package mapping

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Selection is a transient set of line indices chosen for a bulk operation.
type Selection map[int]struct{}

// NewSelection returns a selection holding indices.
func NewSelection(indices ...int) Selection {
	s := make(Selection, len(indices))
	for _, index := range indices {
		s[index] = struct{}{}
	}
	return s
}

func (s Selection) Add(index int) {
	s[index] = struct{}{}
}

func (s Selection) Remove(index int) {
	delete(s, index)
}

// Toggle flips index and reports whether it is now selected.
func (s Selection) Toggle(index int) bool {
	if s.Contains(index) {
		s.Remove(index)
		return false
	}
	s.Add(index)
	return true
}

func (s Selection) Contains(index int) bool {
	_, ok := s[index]
	return ok
}

// Clear empties the selection in place.
func (s Selection) Clear() {
	for index := range s {
		delete(s, index)
	}
}

// Indices returns the selected indices in ascending order.
func (s Selection) Indices() []int {
	out := make([]int, 0, len(s))
	for index := range s {
		out = append(out, index)
	}
	sort.Ints(out)
	return out
}

// ApplyMarkupToSelection replaces the markup of every selected line that has a
// mapping and returns how many were updated. Indices without a mapping are
// skipped, never created. Clearing the selection is left to the caller.
func ApplyMarkupToSelection(t *Table, selection Selection, value decimal.Decimal) int {
	applied := 0
	for index := range selection {
		m, ok := t.entries[index]
		if !ok {
			continue
		}
		t.entries[index] = m.WithMarkup(value)
		applied++
	}
	return applied
}
