package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"erptools/internal/installment"
	"erptools/internal/logger"
	"erptools/pkg/models"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute a payable installment plan for an invoice total",
	Long: `Compute the installments of a supplier invoice without loading the invoice.

With --term the plan is derived from the rules of a payment term: every rule
yields its percentage of the total rounded to cents and the last rule takes the
remaining balance. Without a term (or with a flexible one) the total is split
evenly, after an optional entry payment due on the issue date.`,
	Example: `  # Three monthly installments
  erptools plan --total 1000 --issue-date 2025-01-10 --count 3

  # Entry payment plus two installments from a given date
  erptools plan --total 1000 --issue-date 2025-01-10 --entry 200 --count 2 --first-due 2025-03-01

  # Installments of a payment term
  erptools plan --total 1000 --issue-date 2025-01-10 --terms terms.yaml --term 30-60-90`,
	RunE: runPlan,
}

// PlanOutput represents the JSON output of the plan command
type PlanOutput struct {
	Mode           installment.Mode           `json:"mode"`
	TermID         string                     `json:"term_id,omitempty"`
	Installments   []models.Installment       `json:"installments"`
	Reconciliation installment.Reconciliation `json:"reconciliation"`
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().String("total", "", "Invoice total (required)")
	planCmd.Flags().String("issue-date", "", "Invoice issue date, YYYY-MM-DD (required)")
	planCmd.Flags().String("terms", "", "Payment term file (default: PAYMENT_TERMS_FILE)")
	planCmd.Flags().String("term", "", "Payment term id to apply")
	planCmd.Flags().Int("count", 0, "Number of installments (default: INSTALLMENT_COUNT)")
	planCmd.Flags().Int("interval", 0, "Days between installments (default: INSTALLMENT_INTERVAL_DAYS)")
	planCmd.Flags().String("first-due", "", "Due date of the first installment, YYYY-MM-DD (default: issue date + interval)")
	planCmd.Flags().String("entry", "", "Entry payment due on the issue date")
	planCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")

	_ = planCmd.MarkFlagRequired("total")
	_ = planCmd.MarkFlagRequired("issue-date")
}

func runPlan(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("plan")

	totalStr, _ := cmd.Flags().GetString("total")
	issueStr, _ := cmd.Flags().GetString("issue-date")
	termsPath, _ := cmd.Flags().GetString("terms")
	termID, _ := cmd.Flags().GetString("term")
	count, _ := cmd.Flags().GetInt("count")
	interval, _ := cmd.Flags().GetInt("interval")
	firstDueStr, _ := cmd.Flags().GetString("first-due")
	entryStr, _ := cmd.Flags().GetString("entry")
	outputPath, _ := cmd.Flags().GetString("output")

	total, err := parseDecimal("total", totalStr)
	if err != nil {
		return err
	}
	if total.IsNegative() {
		return fmt.Errorf("--total must not be negative")
	}
	issueDate, err := parseDate("issue-date", issueStr)
	if err != nil {
		return err
	}
	firstDue, err := parseDate("first-due", firstDueStr)
	if err != nil {
		return err
	}
	entry, err := parseDecimal("entry", entryStr)
	if err != nil {
		return err
	}
	if entry.IsNegative() {
		return fmt.Errorf("--entry must not be negative")
	}

	tolerance := installment.DefaultTolerance
	if cfg := loadConfig(log); cfg != nil {
		if termsPath == "" {
			termsPath = cfg.PaymentTermsFile
		}
		if count == 0 {
			count = cfg.InstallmentCount
		}
		if interval == 0 {
			interval = cfg.InstallmentIntervalDays
		}
		tolerance = cfg.ReconciliationTolerance
	}

	financial := models.FinancialConfig{
		Generate:         true,
		TermID:           termID,
		EntryAmount:      entry,
		InstallmentCount: count,
		FirstDueDate:     firstDue,
		IntervalDays:     interval,
	}

	var term *models.PaymentTerm
	if termID != "" {
		ctx, cancel := createContext(30, log)
		defer cancel()

		catalog, err := loadCatalog(ctx, termsPath, log)
		if err != nil {
			return err
		}
		selected, err := catalog.Get(termID)
		if err != nil {
			return fmt.Errorf("payment term not available: %w", err)
		}
		term = &selected
	}

	plan := installment.Build(total, issueDate, financial, term)

	output := PlanOutput{
		Mode:           plan.Mode(),
		TermID:         termID,
		Installments:   plan.Installments(),
		Reconciliation: plan.Reconcile(tolerance),
	}

	log.Info().
		Str("total", total.StringFixed(2)).
		Str("mode", string(plan.Mode())).
		Int("installments", plan.Len()).
		Bool("reconciled", output.Reconciliation.Valid).
		Msg("Installment plan computed")

	return writeJSON(output, outputPath, log)
}
