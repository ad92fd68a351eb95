package cli

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rshade/bulkhead/internal/config"
	"github.com/rshade/bulkhead/internal/engine/batch"
	"github.com/rshade/bulkhead/internal/engine/quota"
	"github.com/rshade/bulkhead/internal/logging"
	"github.com/rshade/bulkhead/internal/simulate"
	"github.com/rshade/bulkhead/internal/tui"
)

// runWithTUI executes the run while a Bubble Tea program renders chunk
// progress. The engine runs in a goroutine; snapshots are forwarded to the
// program as messages, and the final DoneMsg quits the view.
func runWithTUI(
	ctx context.Context,
	batchCfg batch.Config,
	tracker *quota.Tracker,
	manifest *config.Manifest,
	provider *simulate.Provider,
) (*batch.Result, error) {
	root := logging.FromContext(ctx)
	model := tui.NewProgressModel(len(manifest.Items))
	program := tea.NewProgram(model, tea.WithContext(ctx))

	runner, err := batch.NewRunner(
		batchCfg,
		tracker,
		batch.WithLogger(logging.ComponentLogger(root, "batch")),
		batch.WithProgressSink(func(s batch.Snapshot) {
			program.Send(tui.SnapshotMsg(s))
		}),
	)
	if err != nil {
		return nil, err
	}

	var (
		res    *batch.Result
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		res, runErr = runner.Run(ctx, manifest.Items, provider.Operations())
		program.Send(tui.DoneMsg{Err: runErr})
	}()

	if _, teaErr := program.Run(); teaErr != nil {
		<-done
		if runErr != nil {
			return res, runErr
		}
		return res, teaErr
	}

	<-done
	return res, runErr
}
