package installment

import (
	"time"

	"github.com/shopspring/decimal"

	"erptools/pkg/models"
)

// DefaultIntervalDays spaces suggested installments when no interval is configured.
const DefaultIntervalDays = 30

var hundred = decimal.NewFromInt(100)

// Build derives the plan for the current financial configuration:
// no plan when generation is off, a fixed plan when a non-flexible term is
// selected, otherwise a flexible plan seeded with the suggested split.
func Build(total decimal.Decimal, issueDate time.Time, cfg models.FinancialConfig, term *models.PaymentTerm) *Plan {
	switch {
	case !cfg.Generate:
		return Empty(total, issueDate)
	case term != nil && !term.Flexible:
		return Fixed(total, issueDate, *term)
	}
	return Suggest(total, issueDate, cfg)
}

// Fixed applies the term rules in order. Every rule yields total x percent/100
// rounded to cents, or its fixed amount; the last rule takes whatever balance
// is left so the plan sums to exactly total. When fixed amounts exceed the
// total that balance is negative and the plan does not reconcile.
func Fixed(total decimal.Decimal, issueDate time.Time, term models.PaymentTerm) *Plan {
	p := &Plan{
		mode:      ModeFixed,
		termID:    term.ID,
		total:     total,
		issueDate: issueDate,
	}

	emitted := decimal.Zero
	for i, rule := range term.Rules {
		amount := total.Mul(rule.Percent).Div(hundred).Round(2)
		if rule.FixedAmount != nil {
			amount = *rule.FixedAmount
		}
		if i == len(term.Rules)-1 {
			amount = total.Sub(emitted)
		}
		emitted = emitted.Add(amount)

		p.installments = append(p.installments, models.Installment{
			Number:  i + 1,
			DueDate: issueDate.AddDate(0, 0, rule.Days),
			Amount:  amount,
		})
	}

	return p
}

// Suggest returns a flexible plan seeded from the configuration: an optional
// entry payment due on the issue date, then InstallmentCount even installments
// from FirstDueDate, IntervalDays apart.
func Suggest(total decimal.Decimal, issueDate time.Time, cfg models.FinancialConfig) *Plan {
	p := &Plan{mode: ModeFlexible, total: total, issueDate: issueDate}

	interval := cfg.IntervalDays
	if interval <= 0 {
		interval = DefaultIntervalDays
	}
	firstDue := cfg.FirstDueDate
	if firstDue.IsZero() {
		firstDue = issueDate.AddDate(0, 0, interval)
	}

	remaining := total
	if cfg.EntryAmount.IsPositive() {
		entry := decimal.Min(cfg.EntryAmount, total)
		p.installments = append(p.installments, models.Installment{DueDate: issueDate, Amount: entry})
		remaining = total.Sub(entry)
	}

	if remaining.IsPositive() || len(p.installments) == 0 {
		p.installments = append(p.installments, EvenSplit(remaining, cfg.InstallmentCount, firstDue, interval)...)
	}

	p.renumber()
	return p
}

// EvenSplit divides total into count installments truncated to cents; the
// first one absorbs the remainder so the split is exact.
func EvenSplit(total decimal.Decimal, count int, firstDue time.Time, intervalDays int) []models.Installment {
	if count < 1 {
		count = 1
	}

	n := decimal.NewFromInt(int64(count))
	share := total.Div(n).Truncate(2)
	remainder := total.Sub(share.Mul(n))

	out := make([]models.Installment, count)
	for i := range out {
		amount := share
		if i == 0 {
			amount = share.Add(remainder)
		}
		out[i] = models.Installment{
			Number:  i + 1,
			DueDate: firstDue.AddDate(0, 0, i*intervalDays),
			Amount:  amount,
		}
	}
	return out
}
