// Package terms keeps the payment-term snapshot a reconciliation session works with.
package terms

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"erptools/pkg/models"
)

var (
	// ErrTermNotFound is returned for an unknown payment term id.
	ErrTermNotFound = errors.New("payment term not found")

	// ErrInvalidTerm is returned when a payment term definition is unusable.
	ErrInvalidTerm = errors.New("invalid payment term")
)

var hundred = decimal.NewFromInt(100)

// Catalog is an immutable snapshot of payment terms.
type Catalog struct {
	terms []models.PaymentTerm
	byID  map[string]int
}

// NewCatalog builds a snapshot from terms. Later duplicates of an id are ignored.
func NewCatalog(terms []models.PaymentTerm) *Catalog {
	c := &Catalog{byID: make(map[string]int, len(terms))}
	for _, term := range terms {
		if _, dup := c.byID[term.ID]; dup {
			continue
		}
		c.byID[term.ID] = len(c.terms)
		c.terms = append(c.terms, term)
	}
	return c
}

// ForOperation returns the terms of one operation type ("payable", "receivable").
func (c *Catalog) ForOperation(operationType string) *Catalog {
	var out []models.PaymentTerm
	for _, term := range c.terms {
		if strings.EqualFold(term.OperationType, operationType) {
			out = append(out, term)
		}
	}
	return NewCatalog(out)
}

// Lookup returns the term with id.
func (c *Catalog) Lookup(id string) (models.PaymentTerm, bool) {
	pos, ok := c.byID[id]
	if !ok {
		return models.PaymentTerm{}, false
	}
	return c.terms[pos], true
}

// Get is Lookup returning ErrTermNotFound.
func (c *Catalog) Get(id string) (models.PaymentTerm, error) {
	term, ok := c.Lookup(id)
	if !ok {
		return models.PaymentTerm{}, fmt.Errorf("%w: %q", ErrTermNotFound, id)
	}
	return term, nil
}

// Terms returns the terms in catalog order.
func (c *Catalog) Terms() []models.PaymentTerm {
	out := make([]models.PaymentTerm, len(c.terms))
	copy(out, c.terms)
	return out
}

// Len returns the number of terms.
func (c *Catalog) Len() int {
	return len(c.terms)
}

// Validate checks a term definition: fixed terms need rules with non-negative
// days and percents, and percents of rules without a fixed amount may not exceed 100.
func Validate(term models.PaymentTerm) error {
	if strings.TrimSpace(term.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidTerm)
	}
	if term.Flexible {
		return nil
	}
	if len(term.Rules) == 0 {
		return fmt.Errorf("%w: %s: fixed term without rules", ErrInvalidTerm, term.ID)
	}

	percent := decimal.Zero
	for i, rule := range term.Rules {
		if rule.Days < 0 {
			return fmt.Errorf("%w: %s: rule %d has negative days", ErrInvalidTerm, term.ID, i+1)
		}
		if rule.Percent.IsNegative() {
			return fmt.Errorf("%w: %s: rule %d has negative percent", ErrInvalidTerm, term.ID, i+1)
		}
		if rule.FixedAmount != nil {
			if rule.FixedAmount.IsNegative() {
				return fmt.Errorf("%w: %s: rule %d has negative fixed amount", ErrInvalidTerm, term.ID, i+1)
			}
			continue
		}
		percent = percent.Add(rule.Percent)
	}
	if percent.GreaterThan(hundred) {
		return fmt.Errorf("%w: %s: rule percents add up to %s", ErrInvalidTerm, term.ID, percent)
	}
	return nil
}

// Changed reports whether the schedule-relevant part of two versions of a term differs.
func Changed(before, after models.PaymentTerm) bool {
	if before.Flexible != after.Flexible || len(before.Rules) != len(after.Rules) {
		return true
	}
	for i := range before.Rules {
		b, a := before.Rules[i], after.Rules[i]
		if b.Days != a.Days || !b.Percent.Equal(a.Percent) {
			return true
		}
		if (b.FixedAmount == nil) != (a.FixedAmount == nil) {
			return true
		}
		if b.FixedAmount != nil && !b.FixedAmount.Equal(*a.FixedAmount) {
			return true
		}
	}
	return false
}
