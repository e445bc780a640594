package mapping

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"erptools/pkg/models"
)

// Table holds one Mapping per line index. It is owned by a single session and
// is not safe for concurrent use.
type Table struct {
	entries       map[int]Mapping
	defaultMarkup decimal.Decimal
}

// NewTable creates an empty table that falls back to defaultMarkup.
func NewTable(defaultMarkup decimal.Decimal) *Table {
	return &Table{
		entries:       make(map[int]Mapping),
		defaultMarkup: defaultMarkup,
	}
}

// Initialize replaces the table content with one mapping per item, seeded from
// the parser suggestions. Suggestions that cannot be represented fall back to NEW.
func (t *Table) Initialize(items []models.LineItem) {
	t.entries = make(map[int]Mapping, len(items))
	for _, item := range items {
		t.entries[item.Index] = seed(item, t.defaultMarkup)
	}
}

func seed(item models.LineItem, markup decimal.Decimal) Mapping {
	switch item.SuggestedAction {
	case models.ActionLinkXMLIndex:
		if item.SuggestedParent != nil {
			return AsChild(*item.SuggestedParent, markup)
		}
	case models.ActionLinkExisting:
		if m, err := AsExisting(item.SuggestedProductID, markup); err == nil {
			return m
		}
	case models.ActionLinkVariant:
		if m, err := AsVariant(item.SuggestedProductID, markup); err == nil {
			return m
		}
	}
	return AsNew(markup)
}

// DefaultMarkup returns the markup used for absent entries.
func (t *Table) DefaultMarkup() decimal.Decimal {
	return t.defaultMarkup
}

// Get returns the mapping at index, or a NEW mapping with the default markup.
func (t *Table) Get(index int) Mapping {
	if m, ok := t.entries[index]; ok {
		return m
	}
	return AsNew(t.defaultMarkup)
}

// Lookup returns the mapping at index and whether it exists.
func (t *Table) Lookup(index int) (Mapping, bool) {
	m, ok := t.entries[index]
	return m, ok
}

// Has reports whether index holds a mapping.
func (t *Table) Has(index int) bool {
	_, ok := t.entries[index]
	return ok
}

// Set merges a partial update into the mapping at index, preserving unspecified fields.
func (t *Table) Set(index int, p Patch) error {
	updated, err := t.Get(index).Apply(p)
	if err != nil {
		return fmt.Errorf("line %d: %w", index, err)
	}
	t.entries[index] = updated
	return nil
}

// Commit writes a batch of mappings. Either every change is applied or, when
// any index is unknown, none is.
func (t *Table) Commit(changes map[int]Mapping) error {
	for index := range changes {
		if !t.Has(index) {
			return fmt.Errorf("%w: %d", ErrUnknownIndex, index)
		}
	}
	for index, m := range changes {
		t.entries[index] = m
	}
	return nil
}

// Len returns the number of mappings.
func (t *Table) Len() int {
	return len(t.entries)
}

// Indices returns every mapped index in ascending order.
func (t *Table) Indices() []int {
	out := make([]int, 0, len(t.entries))
	for index := range t.entries {
		out = append(out, index)
	}
	sort.Ints(out)
	return out
}

// ChildrenOf returns, in ascending order, the lines that point at parent.
func (t *Table) ChildrenOf(parent int) []int {
	var out []int
	for index, m := range t.entries {
		if m.PointsAt(parent) {
			out = append(out, index)
		}
	}
	sort.Ints(out)
	return out
}

// Snapshot returns a copy of all entries.
func (t *Table) Snapshot() map[int]Mapping {
	out := make(map[int]Mapping, len(t.entries))
	for index, m := range t.entries {
		out[index] = m
	}
	return out
}

// Clone returns an independent copy of the table.
func (t *Table) Clone() *Table {
	return &Table{
		entries:       t.Snapshot(),
		defaultMarkup: t.defaultMarkup,
	}
}

// Equal reports whether both tables hold exactly the same mappings.
func (t *Table) Equal(other *Table) bool {
	if len(t.entries) != len(other.entries) {
		return false
	}
	for index, m := range t.entries {
		o, ok := other.entries[index]
		if !ok || !m.Equal(o) {
			return false
		}
	}
	return true
}
