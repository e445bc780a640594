// Package reconciliation runs one supplier-invoice reconciliation session.
//
// A Session owns the working set of a single invoice: the read-only line
// items, the mutable mapping table, the bulk selection and the payable
// schedule. Every operator action is a method that completes, invariants
// included, before it returns; there is no background work and no I/O until
// Confirm hands the assembled payload to a services.Committer. Discarding a
// session is its cancellation.
package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"erptools/internal/hierarchy"
	"erptools/internal/installment"
	"erptools/internal/invoice"
	"erptools/internal/logger"
	"erptools/internal/mapping"
	"erptools/internal/pricing"
	"erptools/internal/submission"
	"erptools/internal/terms"
	"erptools/pkg/models"
	"erptools/pkg/services"
)

// Session is a single reconciliation working set. It is not safe for
// concurrent use; one operator drives it.
type Session struct {
	id   string
	opts Options
	log  zerolog.Logger

	store     *invoice.Store
	table     *mapping.Table
	resolver  *hierarchy.Resolver
	selection mapping.Selection

	catalog      *terms.Catalog
	financial    models.FinancialConfig
	selectedTerm *models.PaymentTerm
	staleTerm    bool
	plan         *installment.Plan

	knownProduct func(id string) bool
}

// NewSession validates the parsed invoice, seeds the mapping table from the
// parser suggestions and derives the initial payable schedule.
func NewSession(inv *models.Invoice, catalog *terms.Catalog, opts Options) (*Session, error) {
	const op = "NewSession"

	id := uuid.NewString()

	store, err := invoice.NewStore(inv)
	if err != nil {
		return nil, WrapSessionError(op, id, err, "invalid parser output")
	}
	if catalog == nil {
		catalog = terms.NewCatalog(nil)
	}
	if opts.InstallmentCount < 1 {
		opts.InstallmentCount = 1
	}
	if opts.IntervalDays <= 0 {
		opts.IntervalDays = installment.DefaultIntervalDays
	}
	if !opts.Tolerance.IsPositive() {
		opts.Tolerance = installment.DefaultTolerance
	}

	table := mapping.NewTable(opts.DefaultMarkup)
	table.Initialize(store.Items())

	s := &Session{
		id:        id,
		opts:      opts,
		log:       logger.WithSession("reconciliation", id),
		store:     store,
		table:     table,
		resolver:  hierarchy.NewResolver(table, store.Indices()),
		selection: mapping.NewSelection(),
		catalog:   catalog.ForOperation(models.OperationPayable),
		financial: models.FinancialConfig{
			Generate:         true,
			InstallmentCount: opts.InstallmentCount,
			IntervalDays:     opts.IntervalDays,
		},
	}

	if repaired := s.resolver.Normalize(); len(repaired) > 0 {
		s.log.Warn().Ints("lines", repaired).Msg("Parser suggestions adjusted to a single level")
	}
	s.rebuildPlan()

	header := store.Header()
	s.log.Info().
		Str("invoice_number", header.InvoiceNumber).
		Str("supplier", header.SupplierName).
		Int("items", store.Len()).
		Str("total", header.TotalAmount.String()).
		Int("payment_terms", s.catalog.Len()).
		Msg("Reconciliation session started")

	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Header returns the invoice header.
func (s *Session) Header() models.InvoiceHeader {
	return s.store.Header()
}

// Items returns the line items in index order.
func (s *Session) Items() []models.LineItem {
	return s.store.Items()
}

// Mapping returns the current mapping of a line.
func (s *Session) Mapping(index int) mapping.Mapping {
	return s.table.Get(index)
}

// Table returns a copy of the mapping table.
func (s *Session) Table() *mapping.Table {
	return s.table.Clone()
}

// Grouping returns the parent/children view for display.
func (s *Session) Grouping() hierarchy.Grouping {
	return s.resolver.Grouping()
}

// SetProductLookup installs the check used to flag unknown catalog ids.
func (s *Session) SetProductLookup(known func(id string) bool) {
	s.knownProduct = known
}

// SuggestedPrice returns the suggested resale price of a line.
func (s *Session) SuggestedPrice(index int) (decimal.Decimal, error) {
	item, ok := s.store.Get(index)
	if !ok {
		return decimal.Zero, WrapSessionError("SuggestedPrice", s.id, fmt.Errorf("%w: %d", mapping.ErrUnknownIndex, index), "")
	}
	return pricing.SuggestedPrice(item, s.table.Get(index)), nil
}

// Reparent handles a drop of source onto target (hierarchy.Unassign detaches).
func (s *Session) Reparent(source, target int) (hierarchy.Result, error) {
	res, err := s.resolver.Reparent(source, target)
	if err != nil {
		return res, WrapSessionError("Reparent", s.id, err, "")
	}
	return res, nil
}

// Detach makes source a root with action NEW.
func (s *Session) Detach(source int) (hierarchy.Result, error) {
	return s.Reparent(source, hierarchy.Unassign)
}

// MarkNew sets a line to create a new catalog entry. A child becomes a root;
// a root keeps its children.
func (s *Session) MarkNew(index int) error {
	action := models.ActionNew
	return s.update("MarkNew", index, mapping.Patch{Action: &action})
}

// LinkExisting links a line to an existing catalog entry.
func (s *Session) LinkExisting(index int, productID string) error {
	action := models.ActionLinkExisting
	return s.update("LinkExisting", index, mapping.Patch{Action: &action, TargetID: &productID})
}

// LinkVariant links a line to a variant of an existing catalog entry.
func (s *Session) LinkVariant(index int, variantID string) error {
	action := models.ActionLinkVariant
	return s.update("LinkVariant", index, mapping.Patch{Action: &action, TargetID: &variantID})
}

// SetMarkup changes the markup of one line after the input-boundary check.
func (s *Session) SetMarkup(index int, value decimal.Decimal) error {
	accepted, err := s.opts.MarkupBounds.Accept(value)
	if err != nil {
		return WrapSessionError("SetMarkup", s.id, err, fmt.Sprintf("line %d", index))
	}
	return s.update("SetMarkup", index, mapping.Patch{Markup: &accepted})
}

// Update applies a partial mapping change. Changes that make a line a
// LINK_XML_INDEX child are routed through the hierarchy resolver.
func (s *Session) Update(index int, p mapping.Patch) error {
	const op = "Update"

	if p.Markup != nil {
		accepted, err := s.opts.MarkupBounds.Accept(*p.Markup)
		if err != nil {
			return WrapSessionError(op, s.id, err, fmt.Sprintf("line %d", index))
		}
		p.Markup = &accepted
	}

	becomesChild := p.Action != nil && *p.Action == models.ActionLinkXMLIndex
	if !becomesChild && p.TargetIndex == nil {
		return s.update(op, index, p)
	}

	if p.TargetIndex == nil || p.TargetID != nil || (p.Action != nil && !becomesChild) {
		return WrapSessionError(op, s.id, mapping.ErrInvalidMapping, "LINK_XML_INDEX needs exactly a target index")
	}

	// Validate the whole patch before touching the table so the call stays atomic.
	if !s.store.Has(index) {
		return WrapSessionError(op, s.id, fmt.Errorf("%w: %d", mapping.ErrUnknownIndex, index), "")
	}
	if *p.TargetIndex != hierarchy.Unassign && !s.store.Has(*p.TargetIndex) {
		return WrapSessionError(op, s.id, fmt.Errorf("%w: %d", mapping.ErrUnknownIndex, *p.TargetIndex), "")
	}

	if p.Markup != nil {
		if err := s.table.Set(index, mapping.Patch{Markup: p.Markup}); err != nil {
			return WrapSessionError(op, s.id, err, "")
		}
	}
	if _, err := s.resolver.Reparent(index, *p.TargetIndex); err != nil {
		return WrapSessionError(op, s.id, err, "")
	}
	return nil
}

func (s *Session) update(op string, index int, p mapping.Patch) error {
	if !s.store.Has(index) {
		return WrapSessionError(op, s.id, fmt.Errorf("%w: %d", mapping.ErrUnknownIndex, index), "")
	}
	if err := s.table.Set(index, p); err != nil {
		return WrapSessionError(op, s.id, err, "")
	}
	s.log.Debug().
		Int("index", index).
		Str("mapping", s.table.Get(index).String()).
		Msg("Mapping updated")
	return nil
}

// Select adds lines to the bulk selection; unknown indices are ignored.
func (s *Session) Select(indices ...int) {
	for _, index := range indices {
		if s.store.Has(index) {
			s.selection.Add(index)
		}
	}
}

// Deselect removes lines from the bulk selection.
func (s *Session) Deselect(indices ...int) {
	for _, index := range indices {
		s.selection.Remove(index)
	}
}

// ToggleSelection flips one line and reports whether it is now selected.
func (s *Session) ToggleSelection(index int) bool {
	if !s.store.Has(index) {
		return false
	}
	return s.selection.Toggle(index)
}

// ClearSelection empties the bulk selection.
func (s *Session) ClearSelection() {
	s.selection.Clear()
}

// Selection returns the selected indices in ascending order.
func (s *Session) Selection() []int {
	return s.selection.Indices()
}

// ApplyMarkupToSelection sets the markup of every selected line, then clears
// the selection. It returns the number of lines updated.
func (s *Session) ApplyMarkupToSelection(value decimal.Decimal) (int, error) {
	accepted, err := s.opts.MarkupBounds.Accept(value)
	if err != nil {
		return 0, WrapSessionError("ApplyMarkupToSelection", s.id, err, "")
	}

	applied := mapping.ApplyMarkupToSelection(s.table, s.selection, accepted)
	s.selection.Clear()

	s.log.Debug().
		Int("applied", applied).
		Str("markup", accepted.String()).
		Msg("Bulk markup applied")
	return applied, nil
}

// Financial returns the current financial configuration.
func (s *Session) Financial() models.FinancialConfig {
	return s.financial
}

// PaymentTerms returns the payable terms of the current catalog snapshot.
func (s *Session) PaymentTerms() []models.PaymentTerm {
	return s.catalog.Terms()
}

// SetGenerate switches payable generation on or off.
func (s *Session) SetGenerate(generate bool) {
	if s.financial.Generate == generate {
		return
	}
	s.financial.Generate = generate
	s.rebuildPlan()
}

// SelectTerm selects a payment term by id; an empty id clears the selection.
// The plan is regenerated.
func (s *Session) SelectTerm(id string) error {
	if id == "" {
		s.selectedTerm = nil
		s.staleTerm = false
		s.financial.TermID = ""
		s.rebuildPlan()
		return nil
	}

	term, err := s.catalog.Get(id)
	if err != nil {
		return WrapSessionError("SelectTerm", s.id, err, "")
	}

	s.selectedTerm = &term
	s.staleTerm = false
	s.financial.TermID = term.ID
	s.rebuildPlan()

	s.log.Debug().
		Str("term_id", term.ID).
		Bool("flexible", term.Flexible).
		Int("installments", s.plan.Len()).
		Msg("Payment term selected")
	return nil
}

// ConfigureSchedule sets the parameters of the suggested split and reseeds the
// flexible plan. Manual edits are discarded. Not available while a fixed term
// is selected.
func (s *Session) ConfigureSchedule(entry decimal.Decimal, count int, firstDue time.Time, intervalDays int) error {
	const op = "ConfigureSchedule"

	if s.selectedTerm != nil && !s.selectedTerm.Flexible {
		return WrapSessionError(op, s.id, installment.ErrReadOnlyPlan, s.selectedTerm.ID)
	}
	if entry.IsNegative() {
		return WrapSessionError(op, s.id, installment.ErrNegativeAmount, "entry amount")
	}
	if count < 1 {
		return WrapSessionError(op, s.id, fmt.Errorf("installment count must be at least 1, got %d", count), "")
	}
	if intervalDays <= 0 {
		intervalDays = s.opts.IntervalDays
	}

	s.financial.EntryAmount = entry
	s.financial.InstallmentCount = count
	s.financial.FirstDueDate = firstDue
	s.financial.IntervalDays = intervalDays
	s.rebuildPlan()
	return nil
}

// AddInstallment appends a zero-amount entry to a flexible plan.
func (s *Session) AddInstallment() (models.Installment, error) {
	inst, err := s.plan.Add()
	if err != nil {
		return inst, WrapSessionError("AddInstallment", s.id, err, "")
	}
	return inst, nil
}

// RemoveInstallment removes entry number from a flexible plan.
func (s *Session) RemoveInstallment(number int) error {
	return WrapSessionError("RemoveInstallment", s.id, s.plan.Remove(number), "")
}

// EditInstallment changes due date and/or amount of entry number.
func (s *Session) EditInstallment(number int, dueDate *time.Time, amount *decimal.Decimal) error {
	return WrapSessionError("EditInstallment", s.id, s.plan.Edit(number, dueDate, amount), "")
}

// Installments returns the current plan entries.
func (s *Session) Installments() []models.Installment {
	return s.plan.Installments()
}

// PlanMode returns how the current plan was produced.
func (s *Session) PlanMode() installment.Mode {
	return s.plan.Mode()
}

// Reconciliation compares the plan with the invoice total.
func (s *Session) Reconciliation() installment.Reconciliation {
	return s.plan.Reconcile(s.opts.Tolerance)
}

// RefreshTerms replaces the payment-term snapshot. A selected term that
// disappeared or changed keeps its current plan and is reported stale until
// the caller selects a term again.
func (s *Session) RefreshTerms(catalog *terms.Catalog) {
	if catalog == nil {
		catalog = terms.NewCatalog(nil)
	}
	s.catalog = catalog.ForOperation(models.OperationPayable)

	if s.selectedTerm == nil {
		return
	}
	current, ok := s.catalog.Lookup(s.selectedTerm.ID)
	if !ok || terms.Changed(*s.selectedTerm, current) {
		s.staleTerm = true
		s.log.Warn().
			Str("term_id", s.selectedTerm.ID).
			Bool("removed", !ok).
			Msg("Selected payment term changed in catalog refresh")
	}
}

func (s *Session) rebuildPlan() {
	header := s.store.Header()
	s.plan = installment.Build(header.TotalAmount, header.IssueDate, s.financial, s.selectedTerm)
}

// termBlocks reports whether a stale term matters: without payables the
// payload carries no term.
func (s *Session) termBlocks() bool {
	return s.staleTerm && s.financial.Generate
}

// Status lists everything that currently blocks confirmation.
func (s *Session) Status() Status {
	st := Status{
		Reconciliation: s.Reconciliation(),
		PlanMode:       s.plan.Mode(),
	}

	for _, v := range hierarchy.CheckForest(s.store.Indices(), s.table) {
		index := v.Index
		kind := IssueMissingReference
		if v.BreaksForest() {
			kind = IssueInvariant
		}
		st.Issues = append(st.Issues, Issue{Kind: kind, Index: &index, Message: v.String()})
	}

	if s.knownProduct != nil {
		for _, index := range s.store.Indices() {
			if id, ok := s.table.Get(index).TargetID(); ok && !s.knownProduct(id) {
				st.Issues = append(st.Issues, Issue{
					Kind:    IssueMissingReference,
					Index:   &index,
					Message: fmt.Sprintf("line %d -> catalog:%s: unknown product", index, id),
				})
			}
		}
	}

	switch r := st.Reconciliation; {
	case r.Valid:
	case len(r.Negative) > 0:
		st.Issues = append(st.Issues, Issue{
			Kind:    IssueReconciliation,
			Message: fmt.Sprintf("installments %v have a negative amount", r.Negative),
		})
	default:
		st.Issues = append(st.Issues, Issue{
			Kind: IssueReconciliation,
			Message: fmt.Sprintf("installments sum %s, invoice total %s (difference %s)",
				r.Sum.StringFixed(2), r.Total.StringFixed(2), r.Difference.StringFixed(2)),
		})
	}

	if s.termBlocks() {
		st.Issues = append(st.Issues, Issue{
			Kind:    IssueStaleTerm,
			Message: fmt.Sprintf("payment term %q changed or was removed; select a term again", s.selectedTerm.ID),
		})
	}

	return st
}

// Confirm verifies the session, assembles the commit payload and hands it to
// committer (when not nil). While anything blocks confirmation the error
// wraps ErrConfirmationBlocked together with the underlying causes.
func (s *Session) Confirm(ctx context.Context, committer services.Committer) (*services.CommitPayload, error) {
	const op = "Confirm"

	var blockers []error
	if err := submission.Verify(s.store.Indices(), s.table, s.knownProduct); err != nil {
		blockers = append(blockers, err)
	}
	if err := s.plan.Check(s.opts.Tolerance); err != nil {
		blockers = append(blockers, err)
	}
	if s.termBlocks() {
		blockers = append(blockers, fmt.Errorf("%w: %s", ErrStaleTerm, s.selectedTerm.ID))
	}
	if len(blockers) > 0 {
		s.log.Warn().
			Int("blockers", len(blockers)).
			Err(errors.Join(blockers...)).
			Msg("Confirmation blocked")
		return nil, &SessionError{
			Op:        op,
			Err:       errors.Join(append([]error{ErrConfirmationBlocked}, blockers...)...),
			SessionID: s.id,
		}
	}

	payload, err := submission.Assemble(submission.Input{
		SessionID:    s.id,
		Store:        s.store,
		Table:        s.table,
		Plan:         s.plan,
		Financial:    s.financial,
		KnownProduct: s.knownProduct,
	})
	if err != nil {
		return nil, WrapSessionError(op, s.id, err, "")
	}

	if committer != nil {
		if err := ctx.Err(); err != nil {
			return nil, WrapSessionError(op, s.id, err, "")
		}
		if err := committer.Commit(ctx, payload); err != nil {
			return nil, WrapSessionError(op, s.id, err, "commit failed")
		}
	}

	s.log.Info().
		Str("payload_id", payload.ID).
		Int("lines", len(payload.Lines)).
		Bool("generate_payables", payload.GeneratePayables).
		Int("installments", len(payload.Installments)).
		Msg("Reconciliation confirmed")

	return payload, nil
}
