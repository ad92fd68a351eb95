package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/bulkhead/internal/engine/batch"
)

func TestProgressModel_Update(t *testing.T) {
	t.Run("snapshot updates the view", func(t *testing.T) {
		m := NewProgressModel(100)

		updated, cmd := m.Update(SnapshotMsg(batch.Snapshot{
			Total: 100, Completed: 40, Failed: 10,
			Percentage: 50, CurrentChunk: 2, TotalChunks: 4,
		}))
		assert.Nil(t, cmd)

		model, ok := updated.(ProgressModel)
		require.True(t, ok)
		view := model.View()
		assert.Contains(t, view, "chunk 2/4")
		assert.Contains(t, view, "completed 40")
		assert.Contains(t, view, "failed 10")
	})

	t.Run("done quits", func(t *testing.T) {
		m := NewProgressModel(10)

		updated, cmd := m.Update(DoneMsg{})
		require.NotNil(t, cmd)
		assert.Equal(t, tea.Quit(), cmd())

		model, ok := updated.(ProgressModel)
		require.True(t, ok)
		done, err := model.Done()
		assert.True(t, done)
		assert.NoError(t, err)
		assert.Contains(t, model.View(), "run complete")
	})

	t.Run("done with error", func(t *testing.T) {
		m := NewProgressModel(10)

		updated, _ := m.Update(DoneMsg{Err: errors.New("cancelled")})
		model, ok := updated.(ProgressModel)
		require.True(t, ok)
		assert.Contains(t, model.View(), "run stopped")
	})

	t.Run("ctrl+c quits", func(t *testing.T) {
		m := NewProgressModel(10)

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		require.NotNil(t, cmd)
		assert.Equal(t, tea.Quit(), cmd())
	})

	t.Run("window size clamps bar width", func(t *testing.T) {
		m := NewProgressModel(10)

		updated, _ := m.Update(tea.WindowSizeMsg{Width: 10, Height: 20})
		model, ok := updated.(ProgressModel)
		require.True(t, ok)
		assert.Equal(t, progressMinWidth, model.bar.Width)
	})
}
