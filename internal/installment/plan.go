// Package installment builds the payable schedule of a supplier invoice.
//
// A plan is either derived from the fixed rules of a payment term (read-only,
// regenerated whenever the term or the total changes) or flexible: seeded with
// an even split and then edited entry by entry by the operator. Either way the
// plan must reconcile with the invoice total before it can be submitted; while
// it does not, it stays editable and reports the discrepancy.
package installment

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"erptools/pkg/models"
)

// Mode tells how a plan was produced.
type Mode string

const (
	ModeNone     Mode = "none"     // no payable schedule is generated
	ModeFixed    Mode = "fixed"    // derived from payment term rules
	ModeFlexible Mode = "flexible" // edited by the operator
)

// AddedEntryOffsetDays is the gap between the last entry and one added by the operator.
const AddedEntryOffsetDays = 30

// DefaultTolerance is the largest discrepancy still reported as reconciled (exclusive).
var DefaultTolerance = decimal.New(1, -2)

// Plan is a payable schedule for one invoice total.
type Plan struct {
	mode         Mode
	termID       string
	total        decimal.Decimal
	issueDate    time.Time
	installments []models.Installment
}

// Empty returns a plan that generates no payables.
func Empty(total decimal.Decimal, issueDate time.Time) *Plan {
	return &Plan{mode: ModeNone, total: total, issueDate: issueDate}
}

// Mode returns how the plan was produced.
func (p *Plan) Mode() Mode {
	return p.mode
}

// TermID returns the payment term a fixed plan was derived from.
func (p *Plan) TermID() string {
	return p.termID
}

// Total returns the invoice total the plan must match.
func (p *Plan) Total() decimal.Decimal {
	return p.total
}

// Len returns the number of installments.
func (p *Plan) Len() int {
	return len(p.installments)
}

// Installments returns a copy of the entries in order.
func (p *Plan) Installments() []models.Installment {
	out := make([]models.Installment, len(p.installments))
	copy(out, p.installments)
	return out
}

// Sum returns the sum of all installment amounts.
func (p *Plan) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, inst := range p.installments {
		sum = sum.Add(inst.Amount)
	}
	return sum
}

// Add appends an entry due AddedEntryOffsetDays after the current last entry
// (or after the issue date when the plan is empty) with a zero amount.
func (p *Plan) Add() (models.Installment, error) {
	if err := p.editable(); err != nil {
		return models.Installment{}, fmt.Errorf("Add: %w", err)
	}

	due := p.issueDate
	if n := len(p.installments); n > 0 {
		due = p.installments[n-1].DueDate
	}

	inst := models.Installment{
		Number:  len(p.installments) + 1,
		DueDate: due.AddDate(0, 0, AddedEntryOffsetDays),
		Amount:  decimal.Zero,
	}
	p.installments = append(p.installments, inst)
	return inst, nil
}

// Remove deletes entry number and renumbers the rest from 1.
func (p *Plan) Remove(number int) error {
	if err := p.editable(); err != nil {
		return fmt.Errorf("Remove: %w", err)
	}

	pos, err := p.position(number)
	if err != nil {
		return fmt.Errorf("Remove: %w", err)
	}

	p.installments = append(p.installments[:pos], p.installments[pos+1:]...)
	p.renumber()
	return nil
}

// Edit changes the due date and/or amount of entry number. Nil leaves a field as is.
func (p *Plan) Edit(number int, dueDate *time.Time, amount *decimal.Decimal) error {
	if err := p.editable(); err != nil {
		return fmt.Errorf("Edit: %w", err)
	}

	pos, err := p.position(number)
	if err != nil {
		return fmt.Errorf("Edit: %w", err)
	}
	if amount != nil && amount.IsNegative() {
		return fmt.Errorf("Edit: %w: %s", ErrNegativeAmount, amount)
	}

	if dueDate != nil {
		p.installments[pos].DueDate = *dueDate
	}
	if amount != nil {
		p.installments[pos].Amount = *amount
	}
	return nil
}

func (p *Plan) editable() error {
	switch p.mode {
	case ModeFlexible:
		return nil
	case ModeNone:
		return ErrNoSchedule
	}
	return ErrReadOnlyPlan
}

func (p *Plan) position(number int) (int, error) {
	for i, inst := range p.installments {
		if inst.Number == number {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %d", ErrInstallmentNotFound, number)
}

func (p *Plan) renumber() {
	for i := range p.installments {
		p.installments[i].Number = i + 1
	}
}

// Clone returns an independent copy of the plan.
func (p *Plan) Clone() *Plan {
	c := *p
	c.installments = p.Installments()
	return &c
}
