package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OperationPayable is the operation type of supplier payment terms.
const OperationPayable = "payable"

// PaymentRule is one fixed installment of a payment term.
type PaymentRule struct {
	Days        int              `json:"days" yaml:"days"`       // offset from the issue date
	Percent     decimal.Decimal  `json:"percent" yaml:"percent"` // share of the invoice total
	FixedAmount *decimal.Decimal `json:"fixed_amount,omitempty" yaml:"fixed_amount,omitempty"`
}

// PaymentTerm is a reusable payable/receivable schedule template.
type PaymentTerm struct {
	ID            string        `json:"id" yaml:"id"`
	Name          string        `json:"name" yaml:"name"`
	OperationType string        `json:"operation_type" yaml:"operation_type"` // "payable" or "receivable"
	Flexible      bool          `json:"flexible" yaml:"flexible"`
	Rules         []PaymentRule `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// Installment is one due date/amount pair of a payable schedule.
type Installment struct {
	Number  int             `json:"number"`
	DueDate time.Time       `json:"due_date"`
	Amount  decimal.Decimal `json:"amount"`
}

// FinancialConfig holds the operator's choices for the payable schedule.
//
// EntryAmount, InstallmentCount, FirstDueDate and IntervalDays only drive the
// suggested split used when no fixed term is selected.
type FinancialConfig struct {
	Generate         bool            `json:"generate"`
	TermID           string          `json:"term_id,omitempty"`
	EntryAmount      decimal.Decimal `json:"entry_amount"`
	InstallmentCount int             `json:"installment_count"`
	FirstDueDate     time.Time       `json:"first_due_date"`
	IntervalDays     int             `json:"interval_days"`
}
