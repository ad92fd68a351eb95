// Package cli wires the bulkhead command tree: manifest execution,
// validation, logging setup, and output rendering.
package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// NewRootCmd creates the root Cobra command for the bulkhead CLI. It wires
// up logging and the run/validate subcommands.
func NewRootCmd(ver string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulkhead",
		Short: "Quota-aware bulk API execution",
		Long: "Bulkhead executes large batches of create/read/update/delete operations\n" +
			"against a quota-limited API with bounded concurrency, retries, duplicate\n" +
			"collapsing, and adaptive admission control.",
		Version: ver,
		Example: rootCmdExample,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(cmd)
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().
		String("config", "", "path to config file (default $HOME/.bulkhead/config.yaml)")
	cmd.AddCommand(newRunCmd(), newValidateCmd())

	return cmd
}

const rootCmdExample = `  # Execute a work manifest
  bulkhead run --manifest work.yaml

  # Execute with a live progress view
  bulkhead run --manifest work.yaml --tui

  # Emit the result as JSON
  bulkhead run --manifest work.yaml --output json

  # Validate a manifest without making any calls
  bulkhead validate --manifest work.yaml`
