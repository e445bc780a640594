package invoice

import (
	"fmt"

	"github.com/shopspring/decimal"

	"erptools/internal/logger"
	"erptools/pkg/models"
)

// lineTolerance is how far a line total may drift from quantity x unit price.
var lineTolerance = decimal.New(2, -2)

// Validate checks parser output at the input boundary. Negative quantities or
// prices and duplicate indices never reach the mapping table.
func Validate(inv *models.Invoice) error {
	if inv == nil || len(inv.Items) == 0 {
		return ErrEmptyInvoice
	}

	if inv.Header.TotalAmount.IsNegative() {
		return NewHeaderValidationError("total_amount", inv.Header.TotalAmount, "must not be negative")
	}
	if inv.Header.IssueDate.IsZero() {
		return NewHeaderValidationError("issue_date", inv.Header.IssueDate, "is required")
	}

	seen := make(map[int]bool, len(inv.Items))
	for _, item := range inv.Items {
		if item.Index < 0 {
			return NewValidationError(item.Index, "index", item.Index, "must not be negative")
		}
		if seen[item.Index] {
			return fmt.Errorf("%w: %d", ErrDuplicateIndex, item.Index)
		}
		seen[item.Index] = true

		if item.Quantity.IsNegative() {
			return NewValidationError(item.Index, "quantity", item.Quantity, "must not be negative")
		}
		if item.UnitPrice.IsNegative() {
			return NewValidationError(item.Index, "unit_price", item.UnitPrice, "must not be negative")
		}
		if item.SuggestedAction != "" && !item.SuggestedAction.IsValid() {
			return NewValidationError(item.Index, "suggested_action", item.SuggestedAction, "unknown action")
		}
	}

	return nil
}

// CrossCheck compares line totals with quantity x unit price and with the
// header total. Mismatches are warnings only: header totals usually carry taxes
// and freight that line totals do not.
func CrossCheck(inv *models.Invoice) []string {
	log := logger.WithComponent("invoice-crosscheck")
	var warnings []string

	sum := decimal.Zero
	for _, item := range inv.Items {
		sum = sum.Add(item.TotalPrice)

		expected := item.Quantity.Mul(item.UnitPrice)
		if diff := expected.Sub(item.TotalPrice).Abs(); diff.GreaterThan(lineTolerance) {
			warning := fmt.Sprintf("line %d total %s differs from quantity x unit price %s (difference: %s)",
				item.Index, item.TotalPrice.StringFixed(2), expected.StringFixed(2), diff.StringFixed(2))
			warnings = append(warnings, warning)

			log.Warn().
				Int("index", item.Index).
				Str("total_price", item.TotalPrice.String()).
				Str("expected", expected.String()).
				Msg("Line total discrepancy detected")
		}
	}

	if sum.GreaterThan(inv.Header.TotalAmount.Add(lineTolerance)) {
		warning := fmt.Sprintf("sum of line totals %s exceeds invoice total %s",
			sum.StringFixed(2), inv.Header.TotalAmount.StringFixed(2))
		warnings = append(warnings, warning)

		log.Warn().
			Str("lines_total", sum.String()).
			Str("invoice_total", inv.Header.TotalAmount.String()).
			Msg("Line totals exceed invoice total")
	}

	return warnings
}
