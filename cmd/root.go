package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docauto/internal/config"
	"docauto/internal/logger"
)

var version = "1.0.0"

// appConfig is set by Execute before any command runs.
var appConfig = config.Default()

var rootCmd = &cobra.Command{
	Use:   "docauto",
	Short: "Sign, redact and read scanned insurance policies",
	Long: `docauto stamps a signature image onto scanned insurance policy PDFs,
picking the signature page from the document's blank page layout. It can
read the payment details from the first page with OCR, mask them on a
separate single-page copy and collect them in a text report.

Defaults come from the environment (see .env); flags override them.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with cfg and exits non-zero on failure.
func Execute(cfg *config.Config) {
	if cfg != nil {
		appConfig = cfg
	}
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
