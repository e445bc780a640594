package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action tells how a line item is merged into the catalog.
type Action string

const (
	ActionNew          Action = "NEW"            // create a new catalog entry
	ActionLinkXMLIndex Action = "LINK_XML_INDEX" // variant of another line of the same invoice
	ActionLinkExisting Action = "LINK_EXISTING"  // link to an existing catalog entry
	ActionLinkVariant  Action = "LINK_VARIANT"   // link to an existing catalog entry's variant
)

// IsValid reports whether a is one of the known actions.
func (a Action) IsValid() bool {
	switch a {
	case ActionNew, ActionLinkXMLIndex, ActionLinkExisting, ActionLinkVariant:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (a Action) String() string {
	return string(a)
}

// InvoiceHeader is the supplier invoice header as delivered by the parser.
type InvoiceHeader struct {
	// Parties
	SupplierID   string `json:"supplier_id" yaml:"supplier_id"`
	SupplierName string `json:"supplier_name" yaml:"supplier_name"`

	// Identification
	InvoiceNumber string `json:"invoice_number" yaml:"invoice_number"`
	AccessKey     string `json:"access_key,omitempty" yaml:"access_key,omitempty"` // electronic invoice key, if any

	// Amounts and dates
	TotalAmount decimal.Decimal `json:"total_amount" yaml:"total_amount"`
	IssueDate   time.Time       `json:"issue_date" yaml:"issue_date"`
}

// LineItem is one row of a supplier invoice. It is never mutated after parsing.
type LineItem struct {
	Index        int    `json:"index" yaml:"index"` // stable position, unique within the invoice
	SupplierCode string `json:"supplier_code" yaml:"supplier_code"`
	Name         string `json:"name" yaml:"name"`
	EAN          string `json:"ean,omitempty" yaml:"ean,omitempty"`
	TaxCode      string `json:"tax_code" yaml:"tax_code"` // NCM or equivalent classification
	Unit         string `json:"unit" yaml:"unit"`

	Quantity   decimal.Decimal `json:"quantity" yaml:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price" yaml:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price" yaml:"total_price"`

	// Parser suggestions
	SuggestedAction    Action `json:"suggested_action,omitempty" yaml:"suggested_action,omitempty"`
	SuggestedParent    *int   `json:"suggested_parent,omitempty" yaml:"suggested_parent,omitempty"`
	SuggestedProductID string `json:"suggested_product_id,omitempty" yaml:"suggested_product_id,omitempty"`
}

// Invoice bundles the header and its line items.
type Invoice struct {
	Header InvoiceHeader `json:"header" yaml:"header"`
	Items  []LineItem    `json:"items" yaml:"items"`
}
