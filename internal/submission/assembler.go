// Package submission turns a finished reconciliation into the payload handed
// to the persistence collaborator.
package submission

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"erptools/internal/hierarchy"
	"erptools/internal/installment"
	"erptools/internal/invoice"
	"erptools/internal/mapping"
	"erptools/internal/pricing"
	"erptools/pkg/models"
	"erptools/pkg/services"
)

// Input is everything the assembler reads.
type Input struct {
	SessionID string
	Store     *invoice.Store
	Table     *mapping.Table
	Plan      *installment.Plan
	Financial models.FinancialConfig

	// KnownProduct reports whether a catalog id exists. Nil accepts every id.
	KnownProduct func(id string) bool
	// Now stamps the payload; nil means time.Now.
	Now func() time.Time
}

// Assemble builds the commit payload. It fails with an *InvariantError when
// any LINK_XML_INDEX mapping targets a non-root, and with a *ReferenceError
// when targets do not resolve. Nothing is repaired here.
func Assemble(in Input) (*services.CommitPayload, error) {
	const op = "Assemble"

	if in.Store == nil || in.Table == nil || in.Plan == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrIncompleteInput)
	}

	indices := in.Store.Indices()
	if err := Verify(indices, in.Table, in.KnownProduct); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	header := in.Store.Header()
	now := time.Now
	if in.Now != nil {
		now = in.Now
	}

	payload := &services.CommitPayload{
		ID:               uuid.NewString(),
		SessionID:        in.SessionID,
		SupplierID:       header.SupplierID,
		InvoiceNumber:    header.InvoiceNumber,
		IssueDate:        header.IssueDate,
		GeneratePayables: in.Financial.Generate,
		TotalAmount:      header.TotalAmount,
		Installments:     []models.Installment{},
		AssembledAt:      now(),
	}

	for _, item := range in.Store.Items() {
		payload.Lines = append(payload.Lines, resolveLine(item, in.Table))
	}

	if in.Financial.Generate {
		payload.PaymentTermID = in.Financial.TermID
		payload.Installments = in.Plan.Installments()
	}

	return payload, nil
}

func resolveLine(item models.LineItem, table *mapping.Table) services.CommitLine {
	m := table.Get(item.Index)

	line := services.CommitLine{
		Index:          item.Index,
		SupplierCode:   item.SupplierCode,
		Name:           item.Name,
		EAN:            item.EAN,
		Quantity:       item.Quantity,
		UnitCost:       item.UnitPrice,
		Action:         m.Action(),
		Markup:         m.Markup(),
		SuggestedPrice: pricing.Round(pricing.SuggestedPrice(item, m)),
	}

	if id, ok := m.TargetID(); ok {
		line.TargetID = id
	}
	if parent, ok := m.TargetIndex(); ok {
		line.ParentIndex = &parent
		// A variant of a line that links to the catalog lands on that catalog entry.
		if id, ok := table.Get(parent).TargetID(); ok {
			line.TargetID = id
		}
	}

	return line
}

// Verify runs the consistency checks of Assemble without building a payload.
// Invariant violations take precedence over missing references.
func Verify(indices []int, table *mapping.Table, knownProduct func(id string) bool) error {
	var broken []hierarchy.Violation
	var missing []MissingReference

	for _, v := range hierarchy.CheckForest(indices, table) {
		if v.BreaksForest() {
			broken = append(broken, v)
			continue
		}
		missing = append(missing, MissingReference{Index: v.Index, Reference: fmt.Sprintf("line:%d", v.Target)})
	}
	if len(broken) > 0 {
		return &InvariantError{Violations: broken}
	}

	if knownProduct != nil {
		for _, index := range indices {
			if id, ok := table.Get(index).TargetID(); ok && !knownProduct(id) {
				missing = append(missing, MissingReference{Index: index, Reference: "catalog:" + id})
			}
		}
	}
	if len(missing) > 0 {
		return &ReferenceError{Missing: missing}
	}

	return nil
}
