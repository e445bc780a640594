package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"erptools/internal/invoice"
	"erptools/internal/logger"
	"erptools/internal/reconciliation"
	"erptools/pkg/models"
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice [invoice-file]",
	Short: "Show how a parsed invoice would be mapped and priced",
	Long: `Load a parsed supplier invoice (JSON or YAML) and print its line items with the
mapping seeded from the parser suggestions, the line grouping and the suggested
resale prices. Nothing is written.

Parser suggestions that would nest lines more than one level deep are flattened
the same way the reconcile command does it, and consistency warnings (line totals
that do not match quantity x unit price, lines exceeding the invoice total) are
listed in the output.`,
	Example: `  # Inspect an invoice
  erptools invoice invoice.json

  # Save the inspection to a file
  erptools invoice invoice.yaml -o inspection.json`,
	Args: cobra.ExactArgs(1),
	RunE: runInvoice,
}

// InvoiceOutput represents the JSON output of the invoice command
type InvoiceOutput struct {
	Header   models.InvoiceHeader  `json:"header"`
	Lines    []LineView            `json:"lines"`
	Groups   []GroupView           `json:"groups"`
	Warnings []string              `json:"warnings,omitempty"`
	Status   reconciliation.Status `json:"status"`
	Metadata InspectionMetadata    `json:"metadata"`
}

// LineView is one line item with its current mapping
type LineView struct {
	Index          int             `json:"index"`
	SupplierCode   string          `json:"supplier_code"`
	Name           string          `json:"name"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	Mapping        string          `json:"mapping"`
	Markup         decimal.Decimal `json:"markup"`
	SuggestedPrice decimal.Decimal `json:"suggested_price"`
}

// GroupView is a root line and the lines that are variants of it
type GroupView struct {
	Parent   int   `json:"parent"`
	Children []int `json:"children,omitempty"`
}

// InspectionMetadata contains information about the inspected file
type InspectionMetadata struct {
	FileName    string    `json:"file_name"`
	ProcessedAt time.Time `json:"processed_at"`
}

func init() {
	rootCmd.AddCommand(invoiceCmd)

	invoiceCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	invoiceCmd.Flags().Int("timeout", 30, "Processing timeout in seconds")
}

func runInvoice(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("invoice")

	outputPath, _ := cmd.Flags().GetString("output")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	invoicePath := args[0]

	opts := reconciliation.DefaultOptions()
	if cfg := loadConfig(log); cfg != nil {
		opts = cfg.SessionOptions()
	}

	ctx, cancel := createContext(timeoutSecs, log)
	defer cancel()

	inv, err := invoice.NewFileSource(invoicePath).LoadInvoice(ctx)
	if err != nil {
		return handleReconcileError(err, log)
	}

	session, err := reconciliation.NewSession(inv, nil, opts)
	if err != nil {
		return handleReconcileError(err, log)
	}

	output := InvoiceOutput{
		Header:   session.Header(),
		Warnings: invoice.CrossCheck(inv),
		Status:   session.Status(),
		Metadata: InspectionMetadata{
			FileName:    filepath.Base(invoicePath),
			ProcessedAt: time.Now(),
		},
	}

	for _, item := range session.Items() {
		price, err := session.SuggestedPrice(item.Index)
		if err != nil {
			return fmt.Errorf("failed to price line %d: %w", item.Index, err)
		}
		m := session.Mapping(item.Index)
		output.Lines = append(output.Lines, LineView{
			Index:          item.Index,
			SupplierCode:   item.SupplierCode,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitCost:       item.UnitPrice,
			Mapping:        m.String(),
			Markup:         m.Markup(),
			SuggestedPrice: price.Round(2),
		})
	}

	grouping := session.Grouping()
	for _, parent := range grouping.Parents {
		output.Groups = append(output.Groups, GroupView{Parent: parent, Children: grouping.Children[parent]})
	}

	log.Info().
		Str("invoice_number", output.Header.InvoiceNumber).
		Int("lines", len(output.Lines)).
		Int("groups", len(output.Groups)).
		Int("warnings", len(output.Warnings)).
		Msg("Invoice inspected")

	return writeJSON(output, outputPath, log)
}
