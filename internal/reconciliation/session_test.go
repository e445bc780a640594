package reconciliation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erptools/internal/hierarchy"
	"erptools/internal/installment"
	"erptools/internal/invoice"
	"erptools/internal/mapping"
	"erptools/internal/pricing"
	"erptools/internal/submission"
	"erptools/internal/terms"
	"erptools/pkg/models"
	"erptools/pkg/services"
)

var issueDate = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func intPtr(v int) *int { return &v }

// testInvoice has three lines; line 2 is suggested as a variant of line 0.
func testInvoice() *models.Invoice {
	return &models.Invoice{
		Header: models.InvoiceHeader{
			SupplierID:    "S-1",
			SupplierName:  "Textil Norte",
			InvoiceNumber: "000123",
			TotalAmount:   d("100.00"),
			IssueDate:     issueDate,
		},
		Items: []models.LineItem{
			{Index: 0, SupplierCode: "TS-S", Name: "T-shirt S", Quantity: d("1"), UnitPrice: d("10"), TotalPrice: d("10")},
			{Index: 1, SupplierCode: "TS-M", Name: "T-shirt M", Quantity: d("2"), UnitPrice: d("20"), TotalPrice: d("40")},
			{Index: 2, SupplierCode: "TS-L", Name: "T-shirt L", Quantity: d("1"), UnitPrice: d("50"), TotalPrice: d("50"),
				SuggestedAction: models.ActionLinkXMLIndex, SuggestedParent: intPtr(0)},
		},
	}
}

func testCatalog() *terms.Catalog {
	return terms.NewCatalog([]models.PaymentTerm{
		{ID: "30-60-90", Name: "30/60/90", OperationType: models.OperationPayable, Rules: []models.PaymentRule{
			{Days: 30, Percent: d("33.3333")},
			{Days: 60, Percent: d("33.3333")},
			{Days: 90, Percent: d("33.3333")},
		}},
		{ID: "manual", Name: "Manual", OperationType: models.OperationPayable, Flexible: true},
		{ID: "card", Name: "Card", OperationType: "receivable", Flexible: true},
	})
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(testInvoice(), testCatalog(), DefaultOptions())
	require.NoError(t, err)
	return s
}

type recordingCommitter struct {
	payloads []*services.CommitPayload
	err      error
}

func (c *recordingCommitter) Commit(_ context.Context, payload *services.CommitPayload) error {
	if c.err != nil {
		return c.err
	}
	c.payloads = append(c.payloads, payload)
	return nil
}

func amounts(insts []models.Installment) []string {
	out := make([]string, len(insts))
	for i, inst := range insts {
		out[i] = inst.Amount.StringFixed(2)
	}
	return out
}

func TestNewSession(t *testing.T) {
	s := newTestSession(t)

	assert.NotEmpty(t, s.ID())
	assert.Equal(t, "000123", s.Header().InvoiceNumber)
	assert.Len(t, s.Items(), 3)
	assert.True(t, s.Mapping(2).PointsAt(0))
	assert.Len(t, s.PaymentTerms(), 2, "only payable terms are offered")

	assert.True(t, s.Financial().Generate)
	assert.Equal(t, installment.ModeFlexible, s.PlanMode())
	insts := s.Installments()
	require.Len(t, insts, 1)
	assert.Equal(t, "100.00", insts[0].Amount.StringFixed(2))
	assert.Equal(t, issueDate.AddDate(0, 0, 30), insts[0].DueDate)

	status := s.Status()
	assert.True(t, status.CanConfirm())
	assert.True(t, status.Reconciliation.Valid)
}

func TestNewSession_RejectsInvalidInvoice(t *testing.T) {
	_, err := NewSession(&models.Invoice{}, nil, DefaultOptions())
	assert.ErrorIs(t, err, invoice.ErrEmptyInvoice)

	var sessionErr *SessionError
	require.ErrorAs(t, err, &sessionErr)
	assert.Equal(t, "NewSession", sessionErr.Op)
}

func TestNewSession_FlattensNestedSuggestions(t *testing.T) {
	inv := testInvoice()
	inv.Items[1].SuggestedAction = models.ActionLinkXMLIndex
	inv.Items[1].SuggestedParent = intPtr(2) // 1 -> 2 -> 0

	s, err := NewSession(inv, nil, DefaultOptions())
	require.NoError(t, err)

	assert.True(t, s.Mapping(1).PointsAt(0))
	assert.True(t, s.Mapping(2).PointsAt(0))
	assert.Empty(t, hierarchy.CheckForest([]int{0, 1, 2}, s.Table()))
}

func TestSession_DragRootOntoAnotherLine(t *testing.T) {
	s := newTestSession(t)

	res, err := s.Reparent(0, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, res.Demoted)

	assert.Equal(t, models.ActionNew, s.Mapping(1).Action())
	assert.True(t, s.Mapping(0).PointsAt(1))
	assert.Equal(t, models.ActionNew, s.Mapping(2).Action())

	g := s.Grouping()
	assert.Equal(t, []int{1, 2}, g.Parents)
	assert.Equal(t, []int{0}, g.Children[1])

	payload, err := s.Confirm(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, payload.Lines, 3)
	require.NotNil(t, payload.Lines[0].ParentIndex)
	assert.Equal(t, 1, *payload.Lines[0].ParentIndex)
	assert.Nil(t, payload.Lines[2].ParentIndex)
}

func TestSession_ReparentErrors(t *testing.T) {
	s := newTestSession(t)
	before := s.Table()

	_, err := s.Reparent(0, 7)
	assert.ErrorIs(t, err, mapping.ErrUnknownIndex)

	var sessionErr *SessionError
	require.ErrorAs(t, err, &sessionErr)
	assert.Equal(t, "Reparent", sessionErr.Op)
	assert.Equal(t, s.ID(), sessionErr.SessionID)

	res, err := s.Reparent(1, 1)
	require.NoError(t, err)
	assert.True(t, res.NoOp)
	assert.True(t, s.Table().Equal(before))
}

func TestSession_Detach(t *testing.T) {
	s := newTestSession(t)

	res, err := s.Detach(2)
	require.NoError(t, err)
	assert.True(t, res.Detached)
	assert.Equal(t, models.ActionNew, s.Mapping(2).Action())
}

func TestSession_Update(t *testing.T) {
	s := newTestSession(t)
	child := models.ActionLinkXMLIndex
	existing := models.ActionLinkExisting

	t.Run("child link goes through the resolver", func(t *testing.T) {
		// line 2 is a child of 0, so the link lands on 0
		require.NoError(t, s.Update(1, mapping.Patch{Action: &child, TargetIndex: intPtr(2)}))
		assert.True(t, s.Mapping(1).PointsAt(0))
	})

	t.Run("markup travels with a child link", func(t *testing.T) {
		markup := d("55")
		require.NoError(t, s.Update(1, mapping.Patch{Action: &child, TargetIndex: intPtr(0), Markup: &markup}))
		assert.True(t, s.Mapping(1).Markup().Equal(markup))
		assert.True(t, s.Mapping(1).PointsAt(0))
	})

	t.Run("catalog id on a child link is rejected", func(t *testing.T) {
		id := "P-1"
		err := s.Update(1, mapping.Patch{Action: &child, TargetIndex: intPtr(0), TargetID: &id})
		assert.ErrorIs(t, err, mapping.ErrInvalidMapping)
	})

	t.Run("missing catalog id is rejected", func(t *testing.T) {
		before := s.Table()
		err := s.Update(0, mapping.Patch{Action: &existing})
		assert.ErrorIs(t, err, mapping.ErrInvalidMapping)
		assert.True(t, s.Table().Equal(before))
	})

	t.Run("unknown line", func(t *testing.T) {
		err := s.Update(9, mapping.Patch{Action: &child, TargetIndex: intPtr(0)})
		assert.ErrorIs(t, err, mapping.ErrUnknownIndex)
	})

	t.Run("negative markup", func(t *testing.T) {
		markup := d("-5")
		err := s.Update(0, mapping.Patch{Markup: &markup})
		assert.ErrorIs(t, err, pricing.ErrNegativeMarkup)
	})
}

func TestSession_CatalogLinks(t *testing.T) {
	s := newTestSession(t)

	require.NoError(t, s.LinkExisting(0, "P-100"))
	assert.True(t, s.Mapping(2).PointsAt(0), "a root keeps its children when linked")

	require.NoError(t, s.LinkVariant(1, "V-7"))
	id, ok := s.Mapping(1).TargetID()
	require.True(t, ok)
	assert.Equal(t, "V-7", id)

	assert.ErrorIs(t, s.LinkExisting(1, " "), mapping.ErrInvalidMapping)
	assert.ErrorIs(t, s.LinkExisting(5, "P-1"), mapping.ErrUnknownIndex)

	require.NoError(t, s.MarkNew(2))
	assert.Equal(t, models.ActionNew, s.Mapping(2).Action())

	payload, err := s.Confirm(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "P-100", payload.Lines[0].TargetID)
	assert.Equal(t, models.ActionLinkVariant, payload.Lines[1].Action)
}

func TestSession_SetMarkup(t *testing.T) {
	s := newTestSession(t)

	require.NoError(t, s.SetMarkup(0, d("50")))
	price, err := s.SuggestedPrice(0)
	require.NoError(t, err)
	assert.True(t, price.Equal(d("15")))

	require.NoError(t, s.SetMarkup(0, d("900")))
	assert.True(t, s.Mapping(0).Markup().Equal(d("500")), "clamped to the maximum")

	err = s.SetMarkup(0, d("-1"))
	assert.ErrorIs(t, err, pricing.ErrNegativeMarkup)
	assert.True(t, s.Mapping(0).Markup().Equal(d("500")))

	_, err = s.SuggestedPrice(9)
	assert.ErrorIs(t, err, mapping.ErrUnknownIndex)
}

func TestSession_BulkMarkup(t *testing.T) {
	s := newTestSession(t)

	s.Select(0, 2, 99)
	assert.Equal(t, []int{0, 2}, s.Selection(), "unknown lines are not selectable")
	assert.False(t, s.ToggleSelection(2))
	assert.True(t, s.ToggleSelection(1))
	s.Deselect(1)
	s.Select(2)

	applied, err := s.ApplyMarkupToSelection(d("45"))
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.Empty(t, s.Selection(), "selection is cleared after a bulk edit")

	assert.True(t, s.Mapping(0).Markup().Equal(d("45")))
	assert.True(t, s.Mapping(1).Markup().Equal(d("30")))
	assert.True(t, s.Mapping(2).Markup().Equal(d("45")))
	assert.True(t, s.Mapping(2).PointsAt(0), "bulk edit only touches markup")

	once := s.Table()
	s.Select(0, 2)
	_, err = s.ApplyMarkupToSelection(d("45"))
	require.NoError(t, err)
	assert.True(t, s.Table().Equal(once))

	s.Select(1)
	_, err = s.ApplyMarkupToSelection(d("-3"))
	assert.ErrorIs(t, err, pricing.ErrNegativeMarkup)
	assert.Equal(t, []int{1}, s.Selection(), "a rejected bulk edit keeps the selection")

	s.ClearSelection()
	assert.Empty(t, s.Selection())
}

func TestSession_FixedTerm(t *testing.T) {
	s := newTestSession(t)

	require.NoError(t, s.SelectTerm("30-60-90"))
	assert.Equal(t, installment.ModeFixed, s.PlanMode())
	assert.Equal(t, []string{"33.33", "33.33", "33.34"}, amounts(s.Installments()))

	_, err := s.AddInstallment()
	assert.ErrorIs(t, err, installment.ErrReadOnlyPlan)
	assert.ErrorIs(t, s.RemoveInstallment(1), installment.ErrReadOnlyPlan)
	assert.ErrorIs(t, s.ConfigureSchedule(decimal.Zero, 2, time.Time{}, 30), installment.ErrReadOnlyPlan)

	payload, err := s.Confirm(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "30-60-90", payload.PaymentTermID)
	assert.Len(t, payload.Installments, 3)

	assert.ErrorIs(t, s.SelectTerm("card"), terms.ErrTermNotFound, "receivable terms are not offered")
	assert.Equal(t, installment.ModeFixed, s.PlanMode())

	require.NoError(t, s.SelectTerm(""))
	assert.Equal(t, installment.ModeFlexible, s.PlanMode())
	assert.Empty(t, s.Financial().TermID)
}

func TestSession_FlexiblePlan(t *testing.T) {
	s := newTestSession(t)

	require.NoError(t, s.SelectTerm("manual"))
	require.NoError(t, s.ConfigureSchedule(decimal.Zero, 2, time.Time{}, 30))
	assert.Equal(t, []string{"50.00", "50.00"}, amounts(s.Installments()))

	amount := d("49.99")
	require.NoError(t, s.EditInstallment(2, nil, &amount))

	status := s.Status()
	assert.False(t, status.CanConfirm())
	assert.True(t, status.Has(IssueReconciliation))
	assert.True(t, status.Reconciliation.Difference.Equal(d("0.01")))

	committer := &recordingCommitter{}
	_, err := s.Confirm(context.Background(), committer)
	assert.ErrorIs(t, err, ErrConfirmationBlocked)
	assert.ErrorIs(t, err, installment.ErrReconciliationMismatch)
	assert.Empty(t, committer.payloads)

	amount = d("50.00")
	require.NoError(t, s.EditInstallment(2, nil, &amount))

	added, err := s.AddInstallment()
	require.NoError(t, err)
	assert.Equal(t, 3, added.Number)
	require.NoError(t, s.RemoveInstallment(3))
	assert.ErrorIs(t, s.RemoveInstallment(3), installment.ErrInstallmentNotFound)

	payload, err := s.Confirm(context.Background(), committer)
	require.NoError(t, err)
	require.Len(t, committer.payloads, 1)
	assert.Same(t, payload, committer.payloads[0])
	assert.Equal(t, "manual", payload.PaymentTermID)
}

func TestSession_ConfigureSchedule(t *testing.T) {
	s := newTestSession(t)
	firstDue := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.ConfigureSchedule(d("10"), 3, firstDue, 15))

	insts := s.Installments()
	assert.Equal(t, []string{"10.00", "30.00", "30.00", "30.00"}, amounts(insts))
	assert.Equal(t, issueDate, insts[0].DueDate)
	assert.Equal(t, firstDue, insts[1].DueDate)
	assert.Equal(t, firstDue.AddDate(0, 0, 30), insts[3].DueDate)

	assert.ErrorIs(t, s.ConfigureSchedule(d("-1"), 1, firstDue, 15), installment.ErrNegativeAmount)
	assert.Error(t, s.ConfigureSchedule(decimal.Zero, 0, firstDue, 15))
}

func TestSession_GenerateOff(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SelectTerm("30-60-90"))

	s.SetGenerate(false)
	assert.Equal(t, installment.ModeNone, s.PlanMode())
	assert.Empty(t, s.Installments())
	assert.True(t, s.Reconciliation().Valid)

	payload, err := s.Confirm(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, payload.GeneratePayables)
	assert.Empty(t, payload.Installments)

	s.SetGenerate(true)
	assert.Equal(t, installment.ModeFixed, s.PlanMode(), "the selected term survives toggling")
}

func TestSession_FixedAmountsAboveTotalBlockConfirm(t *testing.T) {
	entry := d("150")
	catalog := terms.NewCatalog([]models.PaymentTerm{
		{ID: "entry-30", OperationType: models.OperationPayable, Rules: []models.PaymentRule{
			{Days: 0, FixedAmount: &entry},
			{Days: 30, Percent: d("100")},
		}},
	})

	s, err := NewSession(testInvoice(), catalog, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, s.SelectTerm("entry-30"))
	assert.Equal(t, []string{"150.00", "-50.00"}, amounts(s.Installments()))

	status := s.Status()
	assert.False(t, status.Reconciliation.Valid)
	assert.True(t, status.Has(IssueReconciliation))

	committer := &recordingCommitter{}
	_, err = s.Confirm(context.Background(), committer)
	assert.ErrorIs(t, err, ErrConfirmationBlocked)
	assert.ErrorIs(t, err, installment.ErrNegativeAmount)
	assert.Empty(t, committer.payloads)
}

func TestSession_NoScheduleEdits(t *testing.T) {
	s := newTestSession(t)
	s.SetGenerate(false)
	amount := d("10")

	_, err := s.AddInstallment()
	assert.ErrorIs(t, err, installment.ErrNoSchedule)
	assert.ErrorIs(t, s.RemoveInstallment(1), installment.ErrNoSchedule)
	assert.ErrorIs(t, s.EditInstallment(1, nil, &amount), installment.ErrNoSchedule)
}

func TestSession_StaleTermWithoutPayables(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SelectTerm("30-60-90"))
	s.RefreshTerms(terms.NewCatalog(nil))
	require.True(t, s.Status().Has(IssueStaleTerm))

	s.SetGenerate(false)
	assert.False(t, s.Status().Has(IssueStaleTerm))

	payload, err := s.Confirm(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, payload.PaymentTermID)
	assert.Empty(t, payload.Installments)

	s.SetGenerate(true)
	_, err = s.Confirm(context.Background(), nil)
	assert.ErrorIs(t, err, ErrStaleTerm, "the term is still stale once payables are back on")
}

func TestSession_RefreshTerms(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SelectTerm("30-60-90"))

	s.RefreshTerms(testCatalog())
	assert.False(t, s.Status().Has(IssueStaleTerm), "unchanged terms are not stale")

	changed := terms.NewCatalog([]models.PaymentTerm{
		{ID: "30-60-90", OperationType: models.OperationPayable, Rules: []models.PaymentRule{
			{Days: 30, Percent: d("50")},
			{Days: 60, Percent: d("50")},
		}},
	})
	s.RefreshTerms(changed)

	assert.True(t, s.Status().Has(IssueStaleTerm))
	assert.Equal(t, []string{"33.33", "33.33", "33.34"}, amounts(s.Installments()), "plan is kept until reselected")

	_, err := s.Confirm(context.Background(), nil)
	assert.ErrorIs(t, err, ErrConfirmationBlocked)
	assert.ErrorIs(t, err, ErrStaleTerm)

	require.NoError(t, s.SelectTerm("30-60-90"))
	assert.False(t, s.Status().Has(IssueStaleTerm))
	assert.Equal(t, []string{"50.00", "50.00"}, amounts(s.Installments()))

	s.RefreshTerms(terms.NewCatalog(nil))
	assert.True(t, s.Status().Has(IssueStaleTerm), "a removed term is stale")
}

func TestSession_ProductLookup(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.LinkExisting(1, "P-404"))

	s.SetProductLookup(func(id string) bool { return id != "P-404" })

	status := s.Status()
	require.True(t, status.Has(IssueMissingReference))
	require.NotNil(t, status.Issues[0].Index)
	assert.Equal(t, 1, *status.Issues[0].Index)

	_, err := s.Confirm(context.Background(), nil)
	assert.ErrorIs(t, err, ErrConfirmationBlocked)
	assert.ErrorIs(t, err, submission.ErrUnresolvedReference)
}

func TestSession_ConfirmCommitterFailure(t *testing.T) {
	s := newTestSession(t)
	boom := errors.New("erp unavailable")

	_, err := s.Confirm(context.Background(), &recordingCommitter{err: boom})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrConfirmationBlocked)

	var sessionErr *SessionError
	require.ErrorAs(t, err, &sessionErr)
	assert.Equal(t, "Confirm", sessionErr.Op)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Confirm(ctx, &recordingCommitter{})
	assert.ErrorIs(t, err, context.Canceled)
}
