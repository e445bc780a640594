// Package pricing derives suggested resale prices from invoice cost and markup.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"erptools/internal/mapping"
	"erptools/pkg/models"
)

var hundred = decimal.NewFromInt(100)

// ErrNegativeMarkup is returned by Bounds.Accept for markups below zero.
var ErrNegativeMarkup = errors.New("markup must not be negative")

// SuggestedPrice returns unitPrice x (1 + markup/100). It neither clamps nor
// rejects markup; range checks belong to the input boundary (see Bounds).
func SuggestedPrice(item models.LineItem, m mapping.Mapping) decimal.Decimal {
	return Apply(item.UnitPrice, m.Markup())
}

// Apply computes cost x (1 + markup/100).
func Apply(cost, markup decimal.Decimal) decimal.Decimal {
	return cost.Mul(hundred.Add(markup)).Div(hundred)
}

// Round rounds a price to cents for display and persistence.
func Round(price decimal.Decimal) decimal.Decimal {
	return price.Round(2)
}

// Bounds is the markup range accepted from the operator.
type Bounds struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Accept validates an operator-entered markup: values below Min are rejected,
// values above Max are clamped to Max. A zero Max disables the upper bound.
func (b Bounds) Accept(markup decimal.Decimal) (decimal.Decimal, error) {
	if markup.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNegativeMarkup, markup)
	}
	if markup.LessThan(b.Min) {
		return decimal.Zero, fmt.Errorf("markup %s is below the minimum %s", markup, b.Min)
	}
	if b.Max.IsPositive() && markup.GreaterThan(b.Max) {
		return b.Max, nil
	}
	return markup, nil
}
