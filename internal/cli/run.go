package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/rshade/bulkhead/internal/config"
	"github.com/rshade/bulkhead/internal/engine/batch"
	"github.com/rshade/bulkhead/internal/engine/quota"
	"github.com/rshade/bulkhead/internal/logging"
	"github.com/rshade/bulkhead/internal/simulate"
)

// newRunCmd creates the `bulkhead run` command.
func newRunCmd() *cobra.Command {
	var (
		manifestPath string
		output       string
		useTUI       bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a work manifest as one batch run",
		Long: "Run loads a work manifest, collapses duplicate items, and executes the\n" +
			"list in chunks through the concurrency gate and quota tracker. Per-item\n" +
			"failures are reported in the result; only invalid configuration and\n" +
			"cancellation fail the command.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd, manifestPath, output, useTUI)
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "path to the work manifest (required)")
	_ = cmd.MarkFlagRequired("manifest")
	cmd.Flags().StringVar(&output, "output", "table", "output format: table or json")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "show a live progress view (requires a terminal)")

	return cmd
}

// runBatch executes the manifest and renders the result.
func runBatch(cmd *cobra.Command, manifestPath, output string, useTUI bool) error {
	ctx := cmd.Context()
	cfg := configFromCmd(cmd)
	root := logging.FromContext(ctx)

	manifest, err := config.LoadManifest(manifestPath)
	if err != nil {
		return err
	}

	batchCfg := manifest.Batch.Apply(cfg.Batch.ToBatchConfig())
	tracker := cfg.Quota.NewTracker(quota.WithLogger(logging.ComponentLogger(root, "quota")))
	provider := simulate.New(
		manifest.Simulate,
		simulate.WithTracker(tracker),
		simulate.WithLogger(logging.ComponentLogger(root, "simulate")),
	)

	if useTUI && !isTerminal(os.Stdout) {
		logger.Warn().Msg("stdout is not a terminal, disabling progress view")
		useTUI = false
	}

	var (
		res    *batch.Result
		runErr error
	)
	if useTUI {
		res, runErr = runWithTUI(ctx, batchCfg, tracker, manifest, provider)
	} else {
		res, runErr = runPlain(ctx, batchCfg, tracker, manifest, provider)
	}

	// A cancelled run may still carry a partial result worth showing.
	if res != nil {
		if renderErr := renderResult(cmd.OutOrStdout(), res, output); renderErr != nil && runErr == nil {
			runErr = renderErr
		}
	}

	return runErr
}

// runPlain executes the run with chunk progress reported through the logger.
func runPlain(
	ctx context.Context,
	batchCfg batch.Config,
	tracker *quota.Tracker,
	manifest *config.Manifest,
	provider *simulate.Provider,
) (*batch.Result, error) {
	root := logging.FromContext(ctx)
	sink := func(s batch.Snapshot) {
		logger.Info().
			Int("chunk", s.CurrentChunk).
			Int("total_chunks", s.TotalChunks).
			Int("completed", s.Completed).
			Int("failed", s.Failed).
			Int("percent", s.Percentage).
			Dur("eta", s.ETA).
			Msg("chunk finished")
	}

	runner, err := batch.NewRunner(
		batchCfg,
		tracker,
		batch.WithLogger(logging.ComponentLogger(root, "batch")),
		batch.WithProgressSink(sink),
	)
	if err != nil {
		return nil, err
	}

	return runner.Run(ctx, manifest.Items, provider.Operations())
}
