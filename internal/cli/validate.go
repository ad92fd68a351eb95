package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/bulkhead/internal/config"
)

// newValidateCmd creates the `bulkhead validate` command. Validation makes
// zero remote calls: it checks the manifest schema, item list, and effective
// batch config against the absolute ceilings.
func newValidateCmd() *cobra.Command {
	var manifestPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a work manifest and its effective batch config",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFromCmd(cmd)

			manifest, err := config.LoadManifest(manifestPath)
			if err != nil {
				return err
			}

			batchCfg := manifest.Batch.Apply(cfg.Batch.ToBatchConfig())
			if err := batchCfg.Validate(); err != nil {
				return fmt.Errorf("batch config: %w", err)
			}

			chunks := (len(manifest.Items) + batchCfg.ChunkSize - 1) / batchCfg.ChunkSize
			fmt.Fprintf(cmd.OutOrStdout(),
				"manifest OK: %d items, %d chunks of up to %d, concurrency %d\n",
				len(manifest.Items), chunks, batchCfg.ChunkSize, batchCfg.MaxConcurrency)
			return nil
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "path to the work manifest (required)")
	_ = cmd.MarkFlagRequired("manifest")

	return cmd
}
