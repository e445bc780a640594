package terms

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erptools/pkg/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

const catalogYAML = `payment_terms:
  - id: "30-60"
    name: 30/60 days
    operation_type: payable
    rules:
      - days: 30
        percent: 50
      - days: 60
        percent: 50
  - id: manual
    name: Manual split
    operation_type: payable
    flexible: true
  - id: broken
    name: Fixed without rules
    operation_type: payable
  - id: card
    name: Card receivable
    operation_type: receivable
    rules:
      - days: 30
        percent: 100
`

func TestValidate(t *testing.T) {
	fixedAmount := d("-5")

	tests := []struct {
		name    string
		term    models.PaymentTerm
		wantErr bool
	}{
		{name: "fixed", term: models.PaymentTerm{ID: "30", Rules: []models.PaymentRule{{Days: 30, Percent: d("100")}}}},
		{name: "flexible without rules", term: models.PaymentTerm{ID: "manual", Flexible: true}},
		{name: "missing id", term: models.PaymentTerm{Flexible: true}, wantErr: true},
		{name: "fixed without rules", term: models.PaymentTerm{ID: "x"}, wantErr: true},
		{name: "negative days", term: models.PaymentTerm{ID: "x", Rules: []models.PaymentRule{{Days: -1, Percent: d("100")}}}, wantErr: true},
		{name: "negative percent", term: models.PaymentTerm{ID: "x", Rules: []models.PaymentRule{{Days: 1, Percent: d("-10")}}}, wantErr: true},
		{name: "negative fixed amount", term: models.PaymentTerm{ID: "x", Rules: []models.PaymentRule{{FixedAmount: &fixedAmount}}}, wantErr: true},
		{name: "percents above 100", term: models.PaymentTerm{ID: "x", Rules: []models.PaymentRule{
			{Days: 30, Percent: d("60")},
			{Days: 60, Percent: d("60")},
		}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.term)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTerm)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCatalog(t *testing.T) {
	catalog := NewCatalog([]models.PaymentTerm{
		{ID: "a", OperationType: "payable", Flexible: true},
		{ID: "b", OperationType: "Receivable", Flexible: true},
		{ID: "a", OperationType: "payable", Name: "duplicate"},
	})

	assert.Equal(t, 2, catalog.Len())
	term, ok := catalog.Lookup("a")
	require.True(t, ok)
	assert.Empty(t, term.Name, "first definition of an id wins")

	payable := catalog.ForOperation(models.OperationPayable)
	assert.Equal(t, 1, payable.Len())
	assert.Equal(t, 1, catalog.ForOperation("receivable").Len())

	_, err := payable.Get("b")
	assert.ErrorIs(t, err, ErrTermNotFound)
}

func TestChanged(t *testing.T) {
	base := models.PaymentTerm{ID: "30", Name: "30 days", Rules: []models.PaymentRule{{Days: 30, Percent: d("100")}}}

	renamed := base
	renamed.Name = "Thirty days"
	assert.False(t, Changed(base, renamed), "names do not affect the schedule")

	moved := base
	moved.Rules = []models.PaymentRule{{Days: 45, Percent: d("100")}}
	assert.True(t, Changed(base, moved))

	flexible := base
	flexible.Flexible = true
	assert.True(t, Changed(base, flexible))

	amount := d("10")
	withAmount := base
	withAmount.Rules = []models.PaymentRule{{Days: 30, Percent: d("100"), FixedAmount: &amount}}
	assert.True(t, Changed(base, withAmount))

	samePercent := base
	samePercent.Rules = []models.PaymentRule{{Days: 30, Percent: d("100.00")}}
	assert.False(t, Changed(base, samePercent))
}

func TestFileCatalog_ListPaymentTerms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o644))

	list, err := NewFileCatalog(path).ListPaymentTerms(context.Background(), models.OperationPayable)
	require.NoError(t, err)
	require.Len(t, list, 2, "the invalid and the receivable term are dropped")
	assert.Equal(t, "30-60", list[0].ID)
	assert.True(t, list[0].Rules[1].Percent.Equal(d("50")))
	assert.True(t, list[1].Flexible)

	catalog, err := Load(context.Background(), path)
	require.NoError(t, err)
	_, ok := catalog.Lookup("card")
	assert.False(t, ok)
}

func TestFileCatalog_Errors(t *testing.T) {
	_, err := NewFileCatalog(filepath.Join(t.TempDir(), "missing.yaml")).ListPaymentTerms(context.Background(), models.OperationPayable)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("payment_terms: [\n"), 0o644))
	_, err = Load(context.Background(), path)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Load(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}
