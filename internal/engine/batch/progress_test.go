package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgress_Percentage(t *testing.T) {
	now := func() time.Time { return time.Unix(0, 0) }

	tests := []struct {
		name      string
		total     int
		completed int
		failed    int
		want      int
	}{
		{"empty", 0, 0, 0, 0},
		{"none done", 10, 0, 0, 0},
		{"one third rounds down", 3, 1, 0, 33},
		{"two thirds rounds up", 3, 1, 1, 67},
		{"failures count toward progress", 4, 1, 1, 50},
		{"all done", 8, 6, 2, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProgress(tt.total, 1, now)
			p.recordChunk(tt.completed, tt.failed, nil)
			assert.Equal(t, tt.want, p.Snapshot().Percentage)
		})
	}
}

func TestProgress_ETA(t *testing.T) {
	base := time.Unix(1000, 0)
	current := base
	now := func() time.Time { return current }

	p := newProgress(10, 2, now)

	// No items finished yet: no estimate.
	assert.Zero(t, p.Snapshot().ETA)

	// 5 of 10 items in 10 seconds → 10 more seconds for the rest.
	current = base.Add(10 * time.Second)
	p.recordChunk(5, 0, nil)
	assert.Equal(t, 10*time.Second, p.Snapshot().ETA)
	assert.InDelta(t, 0.5, p.Snapshot().ItemsPerSecond(), 0.001)
}

func TestProgress_ChunkTracking(t *testing.T) {
	now := func() time.Time { return time.Unix(0, 0) }
	p := newProgress(6, 3, now)

	p.beginChunk(1)
	assert.Equal(t, 1, p.Snapshot().CurrentChunk)
	assert.Equal(t, 3, p.Snapshot().TotalChunks)

	p.beginChunk(3)
	assert.Equal(t, 3, p.Snapshot().CurrentChunk)
}

func TestProgress_ErrorsAccumulate(t *testing.T) {
	now := func() time.Time { return time.Unix(0, 0) }
	p := newProgress(4, 2, now)

	p.recordChunk(1, 1, []ItemError{{ItemKey: "a", Message: "boom"}})
	p.recordChunk(1, 1, []ItemError{{ItemKey: "b", Message: "boom"}})

	snap := p.Snapshot()
	assert.Len(t, snap.Errors, 2)
	assert.Equal(t, "a", snap.Errors[0].ItemKey)
	assert.Equal(t, "b", snap.Errors[1].ItemKey)

	// The snapshot owns its error slice.
	snap.Errors[0].ItemKey = "mutated"
	assert.Equal(t, "a", p.Snapshot().Errors[0].ItemKey)
}
