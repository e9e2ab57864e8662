package grid

import (
	"testing"

	"github.com/beach-sh/beach/pkg/cell"
	"github.com/beach-sh/beach/pkg/update"
	"github.com/stretchr/testify/require"
)

func TestWriteCellExtendsNextRow(t *testing.T) {
	g := New(Options{Cols: 80, ViewportRows: 24, HistoryLimit: 10})

	_, err := g.WriteCell(0, 0, cell.Pack('a', 0, 0, 0))
	require.NoError(t, err)
	require.Equal(t, uint64(1), g.NextRow())
	require.Equal(t, uint64(0), g.RowOffset())
}

func TestTrimAtExactlyHistoryLimit(t *testing.T) {
	g := New(Options{Cols: 10, ViewportRows: 5, HistoryLimit: 10})

	for r := uint64(0); r < 10; r++ {
		_, err := g.WriteCell(r, 0, cell.Pack('x', 0, 0, 0))
		require.NoError(t, err)
	}
	require.Equal(t, uint64(0), g.RowOffset())
	require.Empty(t, g.DrainTrimEvents())

	// The 11th row write (absolute index 10) overflows capacity 10 and
	// must trigger exactly one trim with new_floor = row_offset + 1.
	_, err := g.WriteCell(10, 0, cell.Pack('y', 0, 0, 0))
	require.NoError(t, err)

	trims := g.DrainTrimEvents()
	require.Len(t, trims, 1)
	require.Equal(t, update.KindTrim, trims[0].Kind)
	require.Equal(t, uint64(1), trims[0].NewFloor)
	require.Equal(t, uint64(1), g.RowOffset())
}

func TestReadRowBelowOffsetReturnsFalse(t *testing.T) {
	g := New(Options{Cols: 4, ViewportRows: 2, HistoryLimit: 2})

	for r := uint64(0); r < 5; r++ {
		_, err := g.WriteCell(r, 0, cell.Pack('z', 0, 0, 0))
		require.NoError(t, err)
	}

	_, ok := g.ReadRow(0)
	require.False(t, ok)

	cells, ok := g.ReadRow(g.RowOffset())
	require.True(t, ok)
	require.Len(t, cells, 4)
}

func TestRowOutOfRangeIsFatal(t *testing.T) {
	g := New(Options{Cols: 4, ViewportRows: 2, HistoryLimit: 2, MaxRow: 5})

	_, err := g.WriteCell(5, 0, cell.Pack('z', 0, 0, 0))
	require.Error(t, err)

	var oor RowOutOfRange
	require.ErrorAs(t, err, &oor)
}

func TestLastWriterWinsOnHighestSeq(t *testing.T) {
	g := New(Options{Cols: 4, ViewportRows: 2, HistoryLimit: 4})

	_, err := g.WriteCell(0, 0, cell.Pack('a', 0, 0, 0))
	require.NoError(t, err)
	_, err = g.WriteCell(0, 0, cell.Pack('b', 0, 0, 0))
	require.NoError(t, err)

	cells, ok := g.ReadRow(0)
	require.True(t, ok)
	require.Equal(t, 'b', cells[0].CodePoint)
}

func TestUpdatesSinceWatermark(t *testing.T) {
	g := New(Options{Cols: 4, ViewportRows: 2, HistoryLimit: 4})

	u1, err := g.WriteCell(0, 0, cell.Pack('a', 0, 0, 0))
	require.NoError(t, err)
	u2, err := g.WriteCell(0, 1, cell.Pack('b', 0, 0, 0))
	require.NoError(t, err)

	updates, ok := g.UpdatesSince(u1.Seq)
	require.True(t, ok)
	require.Len(t, updates, 1)
	require.Equal(t, u2.Seq, updates[0].Seq)
}

func TestSnapshotViewportReturnsTrailingViewportRows(t *testing.T) {
	g := New(Options{Cols: 4, ViewportRows: 3, HistoryLimit: 5})
	for r := uint64(0); r < 8; r++ {
		_, err := g.WriteCell(r, 0, cell.Pack('x', 0, 0, 0))
		require.NoError(t, err)
	}

	first, rows := g.SnapshotViewport()
	require.Equal(t, uint64(5), first)
	require.Len(t, rows, 3)
}
