package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"erptools/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "erptools",
	Short: "ERP tools - reconcile supplier invoices with the product catalog",
	Long: `ERP tools reconciles parsed supplier invoices before they are booked.

Line items are mapped onto the product catalog (new product, existing product,
variant of an existing product or variant of another line of the same invoice),
resale prices are suggested from per-line markups, and the payable schedule is
derived from a payment term or split by hand until it matches the invoice total.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.WithComponent("root")
		log.Debug().
			Str("version", version).
			Msg("No command given")
		return cmd.Help()
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
