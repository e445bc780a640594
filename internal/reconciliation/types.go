package reconciliation

import (
	"github.com/shopspring/decimal"

	"erptools/internal/installment"
	"erptools/internal/pricing"
)

// Options are the per-session defaults.
type Options struct {
	DefaultMarkup    decimal.Decimal
	MarkupBounds     pricing.Bounds
	InstallmentCount int
	IntervalDays     int
	Tolerance        decimal.Decimal
}

// DefaultOptions returns the defaults used when no configuration is loaded.
func DefaultOptions() Options {
	return Options{
		DefaultMarkup:    decimal.NewFromInt(30),
		MarkupBounds:     pricing.Bounds{Min: decimal.Zero, Max: decimal.NewFromInt(500)},
		InstallmentCount: 1,
		IntervalDays:     installment.DefaultIntervalDays,
		Tolerance:        installment.DefaultTolerance,
	}
}

// IssueKind classifies something that blocks confirmation.
type IssueKind string

const (
	IssueInvariant        IssueKind = "invariant_violation"
	IssueMissingReference IssueKind = "missing_reference"
	IssueReconciliation   IssueKind = "reconciliation_mismatch"
	IssueStaleTerm        IssueKind = "stale_payment_term"
)

// Issue is one blocking problem of a session.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Index   *int      `json:"index,omitempty"` // line index, when the issue belongs to a line
	Message string    `json:"message"`
}

// Status summarizes whether a session can be confirmed.
type Status struct {
	Issues         []Issue                    `json:"issues"`
	Reconciliation installment.Reconciliation `json:"reconciliation"`
	PlanMode       installment.Mode           `json:"plan_mode"`
}

// CanConfirm reports whether nothing blocks confirmation.
func (s Status) CanConfirm() bool {
	return len(s.Issues) == 0
}

// Has reports whether the status carries an issue of kind.
func (s Status) Has(kind IssueKind) bool {
	for _, issue := range s.Issues {
		if issue.Kind == kind {
			return true
		}
	}
	return false
}
