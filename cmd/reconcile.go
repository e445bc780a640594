package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"erptools/internal/invoice"
	"erptools/internal/logger"
	"erptools/internal/reconciliation"
	"erptools/pkg/services"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [invoice-file]",
	Short: "Reconcile a parsed supplier invoice and write the booking payload",
	Long: `Reconcile a parsed supplier invoice (JSON or YAML) against the product catalog
and the payment terms.

The parser suggestions seed the line mappings. An optional script replays the
operator's decisions (reparenting lines, linking products, markups, payment term
and installment edits). When nothing blocks confirmation the booking payload is
written to OUTPUT_DIR, or to --output.

Environment variables:
  PAYMENT_TERMS_FILE - YAML file with payment terms (overridden by --terms)
  OUTPUT_DIR         - Directory for booking payloads (default: .)
  DEFAULT_MARKUP     - Markup in percent for new mappings (default: 30)`,
	Example: `  # Confirm the parser suggestions as they are
  erptools reconcile invoice.json

  # Replay operator decisions and select payment terms from a file
  erptools reconcile invoice.yaml --terms terms.yaml --script decisions.yaml

  # Show what would be booked without writing anything
  erptools reconcile invoice.json --script decisions.yaml --dry-run

  # Save the final mappings as a script for later runs
  erptools reconcile invoice.json --record decisions.yaml --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runReconcile,
}

// ReconcileOutput is the JSON document printed by the reconcile command
type ReconcileOutput struct {
	SessionID string                  `json:"session_id"`
	Status    reconciliation.Status   `json:"status"`
	Payload   *services.CommitPayload `json:"payload,omitempty"`
	Metadata  ReconcileMetadata       `json:"metadata"`
}

// ReconcileMetadata contains information about the run
type ReconcileMetadata struct {
	FileName           string        `json:"file_name"`
	ScriptFile         string        `json:"script_file,omitempty"`
	DryRun             bool          `json:"dry_run"`
	CommittedTo        string        `json:"committed_to,omitempty"`
	ProcessedAt        time.Time     `json:"processed_at"`
	ProcessingDuration time.Duration `json:"processing_duration"`
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().String("terms", "", "Payment term file (default: PAYMENT_TERMS_FILE)")
	reconcileCmd.Flags().String("script", "", "Operation script to replay before confirming")
	reconcileCmd.Flags().String("record", "", "Write the final mappings as a replayable script")
	reconcileCmd.Flags().StringP("output", "o", "", "Write the payload to this file instead of OUTPUT_DIR")
	reconcileCmd.Flags().Bool("dry-run", false, "Check and assemble but don't write the payload")
	reconcileCmd.Flags().Int("timeout", 30, "Processing timeout in seconds")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("reconcile")

	termsPath, _ := cmd.Flags().GetString("terms")
	scriptPath, _ := cmd.Flags().GetString("script")
	recordPath, _ := cmd.Flags().GetString("record")
	outputPath, _ := cmd.Flags().GetString("output")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	invoicePath := args[0]

	opts := reconciliation.DefaultOptions()
	outputDir := "."
	if cfg := loadConfig(log); cfg != nil {
		opts = cfg.SessionOptions()
		outputDir = cfg.OutputDir
		if termsPath == "" {
			termsPath = cfg.PaymentTermsFile
		}
	}

	log.Info().
		Str("file", invoicePath).
		Str("terms", termsPath).
		Str("script", scriptPath).
		Bool("dry_run", dryRun).
		Msg("Starting invoice reconciliation")

	ctx, cancel := createContext(timeoutSecs, log)
	defer cancel()

	startTime := time.Now()

	inv, err := invoice.NewFileSource(invoicePath).LoadInvoice(ctx)
	if err != nil {
		return handleReconcileError(err, log)
	}

	catalog, err := loadCatalog(ctx, termsPath, log)
	if err != nil {
		return err
	}

	session, err := reconciliation.NewSession(inv, catalog, opts)
	if err != nil {
		return handleReconcileError(err, log)
	}

	if scriptPath != "" {
		script, err := reconciliation.LoadScript(scriptPath)
		if err != nil {
			return fmt.Errorf("failed to load script: %w", err)
		}
		if err := script.Replay(ctx, session); err != nil {
			return handleReconcileError(err, log)
		}
	}

	if recordPath != "" {
		if err := writeScript(session.Record(), recordPath, log); err != nil {
			return err
		}
	}

	output := ReconcileOutput{
		SessionID: session.ID(),
		Status:    session.Status(),
		Metadata: ReconcileMetadata{
			FileName:   filepath.Base(invoicePath),
			ScriptFile: scriptPath,
			DryRun:     dryRun,
		},
	}

	var committer services.Committer
	var fileCommitter *reconciliation.FileCommitter
	if !dryRun {
		fileCommitter = reconciliation.NewFileCommitter(outputDir)
		if outputPath != "" {
			fileCommitter = reconciliation.NewFileCommitterTo(outputPath)
		}
		committer = fileCommitter
	}

	payload, confirmErr := session.Confirm(ctx, committer)
	if confirmErr == nil {
		output.Payload = payload
		if fileCommitter != nil {
			output.Metadata.CommittedTo = fileCommitter.Path(payload)
		}
	}

	output.Metadata.ProcessedAt = time.Now()
	output.Metadata.ProcessingDuration = time.Since(startTime)

	// The status report is useful on a blocked run too.
	if err := writeJSON(output, "", log); err != nil {
		return err
	}

	if confirmErr != nil {
		return handleReconcileError(confirmErr, log)
	}

	log.Info().
		Str("session_id", session.ID()).
		Int("lines", len(payload.Lines)).
		Int("installments", len(payload.Installments)).
		Dur("duration", output.Metadata.ProcessingDuration).
		Msg("Invoice reconciliation completed successfully")
	return nil
}

func writeScript(script *reconciliation.Script, path string, log zerolog.Logger) error {
	data, err := yaml.Marshal(script)
	if err != nil {
		return fmt.Errorf("failed to encode script: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write script: %w", err)
	}

	log.Info().
		Str("script_file", path).
		Int("steps", len(script.Operations)).
		Msg("Mappings recorded")
	return nil
}

// handleReconcileError provides user-friendly error messages for reconciliation failures
func handleReconcileError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Invoice reconciliation failed")

	switch {
	case errors.Is(err, invoice.ErrUnsupportedFormat):
		return fmt.Errorf("unsupported invoice file. Use .json, .yaml or .yml: %w", err)
	case errors.Is(err, invoice.ErrEmptyInvoice),
		errors.Is(err, invoice.ErrInvalidHeader),
		errors.Is(err, invoice.ErrInvalidLineItem),
		errors.Is(err, invoice.ErrDuplicateIndex):
		return fmt.Errorf("the parsed invoice is not usable: %w", err)
	case errors.Is(err, reconciliation.ErrUnknownOperation),
		errors.Is(err, reconciliation.ErrInvalidOperation):
		return fmt.Errorf("the operation script is invalid: %w", err)
	case errors.Is(err, reconciliation.ErrConfirmationBlocked):
		return fmt.Errorf("the invoice cannot be confirmed yet, see status.issues: %w", err)
	default:
		return fmt.Errorf("invoice reconciliation failed: %w", err)
	}
}
