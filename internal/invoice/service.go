// Package invoice holds the line items of one supplier invoice as received from
// the external parser.
//
// The store is read-only: items are validated once on construction and never
// mutated afterwards. Every other component of a reconciliation session reads
// line items through it by their stable index.
//
// Parser output can be loaded from JSON or YAML files (see FileSource), which is
// how the CLI receives invoices from the XML parsing collaborator.
package invoice

import (
	"sort"

	"erptools/pkg/models"
)

// Store is the immutable line-item store of one invoice.
type Store struct {
	header  models.InvoiceHeader
	items   []models.LineItem // ordered by index
	byIndex map[int]int       // line index -> position in items
}

// NewStore validates the parsed invoice and returns a store over a private copy of it.
func NewStore(inv *models.Invoice) (*Store, error) {
	if err := Validate(inv); err != nil {
		return nil, err
	}

	items := make([]models.LineItem, len(inv.Items))
	copy(items, inv.Items)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Index < items[j].Index })

	byIndex := make(map[int]int, len(items))
	for pos, item := range items {
		byIndex[item.Index] = pos
	}

	return &Store{
		header:  inv.Header,
		items:   items,
		byIndex: byIndex,
	}, nil
}

// Header returns the invoice header.
func (s *Store) Header() models.InvoiceHeader {
	return s.header
}

// Len returns the number of line items.
func (s *Store) Len() int {
	return len(s.items)
}

// Get returns the line item at index.
func (s *Store) Get(index int) (models.LineItem, bool) {
	pos, ok := s.byIndex[index]
	if !ok {
		return models.LineItem{}, false
	}
	return s.items[pos], true
}

// Has reports whether index belongs to this invoice.
func (s *Store) Has(index int) bool {
	_, ok := s.byIndex[index]
	return ok
}

// Items returns a copy of all line items in index order.
func (s *Store) Items() []models.LineItem {
	out := make([]models.LineItem, len(s.items))
	copy(out, s.items)
	return out
}

// Indices returns all line indices in ascending order.
func (s *Store) Indices() []int {
	out := make([]int, len(s.items))
	for i, item := range s.items {
		out[i] = item.Index
	}
	return out
}
