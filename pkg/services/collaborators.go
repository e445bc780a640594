package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"erptools/pkg/models"
)

// InvoiceSource delivers parsed supplier invoices (the XML parser lives outside this module).
type InvoiceSource interface {
	// LoadInvoice returns the header and the ordered line items of one invoice.
	LoadInvoice(ctx context.Context) (*models.Invoice, error)
}

// PaymentTermCatalog lists the payment terms available for an operation type.
type PaymentTermCatalog interface {
	ListPaymentTerms(ctx context.Context, operationType string) ([]models.PaymentTerm, error)
}

// Committer persists a confirmed reconciliation (catalog, stock and payables).
type Committer interface {
	Commit(ctx context.Context, payload *CommitPayload) error
}

// CommitPayload is everything the persistence collaborator needs once the operator confirms.
type CommitPayload struct {
	// Identity
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	SupplierID    string    `json:"supplier_id"`
	InvoiceNumber string    `json:"invoice_number"`
	IssueDate     time.Time `json:"issue_date"`

	// Lines
	Lines []CommitLine `json:"lines"`

	// Payables
	GeneratePayables bool                 `json:"generate_payables"`
	PaymentTermID    string               `json:"payment_term_id,omitempty"`
	TotalAmount      decimal.Decimal      `json:"total_amount"`
	Installments     []models.Installment `json:"installments"`

	AssembledAt time.Time `json:"assembled_at"`
}

// CommitLine is the resolved decision for one invoice line.
type CommitLine struct {
	Index        int             `json:"index"`
	SupplierCode string          `json:"supplier_code"`
	Name         string          `json:"name"`
	EAN          string          `json:"ean,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitCost     decimal.Decimal `json:"unit_cost"`

	Action      models.Action `json:"action"`
	TargetID    string        `json:"target_id,omitempty"`    // catalog id, when known
	ParentIndex *int          `json:"parent_index,omitempty"` // root line for LINK_XML_INDEX

	Markup         decimal.Decimal `json:"markup"`
	SuggestedPrice decimal.Decimal `json:"suggested_price"`
}
