package sync

import (
	"testing"

	"github.com/beach-sh/beach/pkg/cell"
	"github.com/beach-sh/beach/pkg/grid"
	"github.com/beach-sh/beach/pkg/wire"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	frames []wire.Frame
}

func (s *recordingSink) SendFrame(f wire.Frame) error {
	s.frames = append(s.frames, f)
	return nil
}

func (s *recordingSink) kinds() []wire.FrameKind {
	out := make([]wire.FrameKind, len(s.frames))
	for i, f := range s.frames {
		out[i] = f.Kind
	}
	return out
}

func newTestGrid(rows int) (*grid.Grid, *cell.StyleTable) {
	g := grid.New(grid.Options{Cols: 10, ViewportRows: 5, HistoryLimit: 10000})
	styles := cell.NewStyleTable()
	for r := 0; r < rows; r++ {
		_, _ = g.WriteCell(uint64(r), 0, cell.Pack('a', 0, 0, 0))
	}
	return g, styles
}

func TestSmallGridSnapshotsAllLanesThenDeltas(t *testing.T) {
	g, styles := newTestGrid(3)
	s := New(g, styles)
	sink := &recordingSink{}
	sub := NewSubscriber("v1", sink)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Tick(sub))
	}

	require.True(t, sub.allLanesSnapshotted())

	var sawForegroundChunk bool
	for _, f := range sink.frames {
		if f.Kind == wire.FrameSnapshotChunk && f.SnapshotChunk.Lane == uint8(LaneForeground) {
			sawForegroundChunk = true
		}
	}
	require.True(t, sawForegroundChunk)
}

func TestSnapshotThenDeltaDeliversNewWrite(t *testing.T) {
	g, styles := newTestGrid(3)
	s := New(g, styles)
	sink := &recordingSink{}
	sub := NewSubscriber("v1", sink)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Tick(sub))
	}
	sink.frames = nil

	_, err := g.WriteCell(2, 1, cell.Pack('z', 0, 0, 0))
	require.NoError(t, err)

	require.NoError(t, s.Tick(sub))

	require.Len(t, sink.frames, 1)
	require.Equal(t, wire.FrameDelta, sink.frames[0].Kind)
	require.Len(t, sink.frames[0].Delta.Updates, 1)
	require.Equal(t, 'z', sink.frames[0].Delta.Updates[0].Cell.CodePoint)
}

func TestLaneDoneFlagPreventsReplayOfSnapshottedRows(t *testing.T) {
	g, styles := newTestGrid(3)
	s := New(g, styles)
	sink := &recordingSink{}
	sub := NewSubscriber("v1", sink)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Tick(sub))
	}
	chunkCountAfterFirstPass := 0
	for _, f := range sink.frames {
		if f.Kind == wire.FrameSnapshotChunk {
			chunkCountAfterFirstPass++
		}
	}
	require.Greater(t, chunkCountAfterFirstPass, 0)

	sink.frames = nil
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Tick(sub))
	}

	for _, f := range sink.frames {
		require.NotEqual(t, wire.FrameSnapshotChunk, f.Kind, "snapshotted lanes must not replay")
	}
}

func TestBudgetLimitsChunkSize(t *testing.T) {
	g, styles := newTestGrid(50)
	s := New(g, styles).WithBudget(15)
	sink := &recordingSink{}
	sub := NewSubscriber("v1", sink)

	require.NoError(t, s.Tick(sub))

	// Recent covers rows 0-44, so History is empty and its SnapshotComplete
	// precedes the first Foreground chunk.
	require.Len(t, sink.frames, 2)
	require.LessOrEqual(t, len(sink.frames[1].SnapshotChunk.Rows), 2)
}

func TestWatermarkTooOldTriggersReset(t *testing.T) {
	g, styles := newTestGrid(3)
	s := New(g, styles)
	sink := &recordingSink{}
	sub := NewSubscriber("v1", sink)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Tick(sub))
	}
	// Overflow the grid's 1<<16-entry update log so the subscriber's
	// watermark falls behind the oldest retained entry.
	for i := 0; i < 1<<16+10; i++ {
		_, _ = g.WriteCell(0, 0, cell.Pack('b', 0, 0, 0))
	}

	require.NoError(t, s.Tick(sub))
	require.True(t, sub.resetPending)
}

func TestStyleDefsAccompanySnapshotChunk(t *testing.T) {
	g, styles := newTestGrid(0)
	id, _ := styles.Intern(cell.Style{Attrs: cell.AttrBold})
	_, err := g.WriteCell(0, 0, cell.Pack('a', id, 0, 0))
	require.NoError(t, err)

	s := New(g, styles)
	sink := &recordingSink{}
	sub := NewSubscriber("v1", sink)

	require.NoError(t, s.Tick(sub))

	// Recent and History are empty for a one-row grid, so their
	// SnapshotComplete frames come first, then the Foreground chunk and
	// its own SnapshotComplete.
	require.Len(t, sink.frames, 4)
	require.Len(t, sink.frames[2].SnapshotChunk.Styles, 1)
	require.Equal(t, id, sink.frames[2].SnapshotChunk.Styles[0].ID)
}
