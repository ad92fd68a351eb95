// Package tui renders live batch-run progress with Bubble Tea.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rshade/bulkhead/internal/engine/batch"
)

// SnapshotMsg delivers a chunk-boundary progress snapshot to the view.
type SnapshotMsg batch.Snapshot

// DoneMsg signals that the run finished (successfully or not) and the view
// should exit.
type DoneMsg struct {
	Err error
}

// Default dimensions for the progress view.
const (
	progressDefaultWidth = 60
	progressMinWidth     = 20
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)                                   //nolint:gochecknoglobals // Styles are immutable.
	statStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))            //nolint:gochecknoglobals // Styles are immutable.
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true) //nolint:gochecknoglobals // Styles are immutable.
)

// ProgressModel is the Bubble Tea model for a running batch.
type ProgressModel struct {
	bar   progress.Model
	snap  batch.Snapshot
	total int
	done  bool
	err   error
}

// NewProgressModel creates a progress view for a run over total submitted
// items.
func NewProgressModel(total int) ProgressModel {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = progressDefaultWidth

	return ProgressModel{
		bar:   bar,
		total: total,
	}
}

// Init implements tea.Model.
func (m ProgressModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		width := msg.Width - 4
		if width < progressMinWidth {
			width = progressMinWidth
		}
		m.bar.Width = width
		return m, nil

	case SnapshotMsg:
		m.snap = batch.Snapshot(msg)
		return m, nil

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m ProgressModel) View() string {
	header := titleStyle.Render(fmt.Sprintf("Executing %d items", m.total))

	ratio := float64(m.snap.Percentage) / 100
	bar := m.bar.ViewAs(ratio)

	stats := statStyle.Render(fmt.Sprintf(
		"chunk %d/%d  completed %d  failed %d  eta %s",
		m.snap.CurrentChunk, m.snap.TotalChunks,
		m.snap.Completed, m.snap.Failed,
		m.snap.ETA.Round(time.Second),
	))

	view := header + "\n" + bar + "\n" + stats + "\n"
	if m.done {
		if m.err != nil {
			view += errStyle.Render(fmt.Sprintf("run stopped: %v", m.err)) + "\n"
		} else {
			view += titleStyle.Render("run complete") + "\n"
		}
	}

	return view
}

// Done reports whether the run finished, and with what error.
func (m ProgressModel) Done() (bool, error) {
	return m.done, m.err
}
