package installment

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrReadOnlyPlan is returned when editing a plan derived from fixed rules.
	ErrReadOnlyPlan = errors.New("installment plan is derived from a fixed payment term")

	// ErrNoSchedule is returned when editing while no payables are generated.
	ErrNoSchedule = errors.New("no payable schedule is generated")

	// ErrInstallmentNotFound is returned for an unknown installment number.
	ErrInstallmentNotFound = errors.New("installment not found")

	// ErrNegativeAmount is returned when an installment amount is below zero.
	ErrNegativeAmount = errors.New("installment amount must not be negative")

	// ErrReconciliationMismatch is wrapped by MismatchError.
	ErrReconciliationMismatch = errors.New("installments do not add up to the invoice total")
)

// Reconciliation compares a plan with the invoice total.
type Reconciliation struct {
	Total      decimal.Decimal `json:"total"`
	Sum        decimal.Decimal `json:"sum"`
	Difference decimal.Decimal `json:"difference"` // Total - Sum
	Valid      bool            `json:"valid"`

	// Negative lists installment numbers with an amount below zero. A fixed
	// term whose fixed amounts exceed the total leaves a negative balance.
	Negative []int `json:"negative_installments,omitempty"`
}

// Reconcile checks |total - sum| < tolerance and that no installment is
// negative. A plan that generates no payables always reconciles.
func (p *Plan) Reconcile(tolerance decimal.Decimal) Reconciliation {
	if !tolerance.IsPositive() {
		tolerance = DefaultTolerance
	}

	sum := p.Sum()
	diff := p.total.Sub(sum)

	var negative []int
	for _, inst := range p.installments {
		if inst.Amount.IsNegative() {
			negative = append(negative, inst.Number)
		}
	}

	return Reconciliation{
		Total:      p.total,
		Sum:        sum,
		Difference: diff,
		Valid:      p.mode == ModeNone || (diff.Abs().LessThan(tolerance) && len(negative) == 0),
		Negative:   negative,
	}
}

// Check returns ErrNegativeAmount for a plan with negative installments and a
// *MismatchError when the plan does not reconcile.
func (p *Plan) Check(tolerance decimal.Decimal) error {
	r := p.Reconcile(tolerance)
	if r.Valid {
		return nil
	}
	if len(r.Negative) > 0 {
		return fmt.Errorf("%w: installments %v", ErrNegativeAmount, r.Negative)
	}
	return &MismatchError{Total: r.Total, Sum: r.Sum, Difference: r.Difference}
}

// MismatchError carries the discrepancy the operator has to correct.
type MismatchError struct {
	Total      decimal.Decimal
	Sum        decimal.Decimal
	Difference decimal.Decimal
}

// Error implements the error interface.
func (e *MismatchError) Error() string {
	return fmt.Sprintf("%v: total %s, installments %s (difference %s)",
		ErrReconciliationMismatch, e.Total.StringFixed(2), e.Sum.StringFixed(2), e.Difference.StringFixed(2))
}

// Unwrap returns ErrReconciliationMismatch.
func (e *MismatchError) Unwrap() error {
	return ErrReconciliationMismatch
}
