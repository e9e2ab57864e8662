package wire

import (
	"testing"

	"github.com/beach-sh/beach/pkg/cell"
	"github.com/beach-sh/beach/pkg/update"
	"github.com/stretchr/testify/require"
)

func TestHelloRoundTrip(t *testing.T) {
	f := Frame{Kind: FrameHello, Hello: Hello{ProtocolVersion: Version, SessionID: "sess-1", Role: "viewer"}}
	buf := Encode(f)

	decoded, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, f.Hello, decoded.Hello)
}

func TestGridInfoRoundTrip(t *testing.T) {
	f := Frame{Kind: FrameGrid, Grid: GridInfo{Cols: 120, Rows: 40, HistoryLimit: 100000}}
	buf := Encode(f)

	decoded, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, f.Grid, decoded.Grid)
}

func TestDeltaRoundTripPreservesUpdateOrder(t *testing.T) {
	c := cell.Pack('x', 3, 7, cell.FlagWide)
	updates := []update.Update{
		update.NewCell(1, 10, 2, c),
		update.NewRowSegment(2, 10, 0, []cell.Cell{c, c}),
		update.NewStyle(3, 3, cell.Style{Fg: cell.Color{Kind: cell.ColorRGB, R: 1, G: 2, B: 3}, Attrs: cell.AttrBold}),
		update.NewTrim(4, 500),
	}
	f := Frame{Kind: FrameDelta, Delta: Delta{Lane: 1, Updates: updates}}
	buf := Encode(f)

	decoded, err := Decode(buf)
	require.NoError(t, err)
	require.Len(t, decoded.Delta.Updates, len(updates))
	for i, u := range updates {
		require.Equal(t, u.Kind, decoded.Delta.Updates[i].Kind)
		require.Equal(t, u.Seq, decoded.Delta.Updates[i].Seq)
	}
	require.Equal(t, c.CodePoint, decoded.Delta.Updates[0].Cell.CodePoint)
	require.Equal(t, uint32(500), uint32(decoded.Delta.Updates[3].NewFloor))
}

func TestInputRoundTrip(t *testing.T) {
	f := Frame{Kind: FrameInput, Input: Input{Seq: 42, Data: []byte("ls -la\n")}}
	buf := Encode(f)

	decoded, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, f.Input, decoded.Input)
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	buf := []byte{Version, 0xEE}
	_, err := Decode(buf)
	require.Error(t, err)
	var unk ErrUnknownFrameKind
	require.ErrorAs(t, err, &unk)
}

func TestDecodeRejectsTruncatedFrame(t *testing.T) {
	f := Frame{Kind: FrameInput, Input: Input{Seq: 1, Data: []byte("abc")}}
	buf := Encode(f)
	_, err := Decode(buf[:len(buf)-2])
	require.ErrorIs(t, err, ErrShortFrame)
}

func TestSnapshotChunkRoundTrip(t *testing.T) {
	row := []cell.Cell{cell.Default(), cell.Pack('a', 1, 0, 0)}
	f := Frame{
		Kind: FrameSnapshotChunk,
		SnapshotChunk: SnapshotChunk{
			Lane:     0,
			FirstRow: 100,
			Rows:     [][]cell.Cell{row},
			Styles:   []StyleDef{{ID: 1, Def: cell.Style{Attrs: cell.AttrBold}}},
		},
	}
	buf := Encode(f)

	decoded, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, uint64(100), decoded.SnapshotChunk.FirstRow)
	require.Len(t, decoded.SnapshotChunk.Rows, 1)
	require.Len(t, decoded.SnapshotChunk.Rows[0], 2)
	require.Equal(t, 'a', decoded.SnapshotChunk.Rows[0][1].CodePoint)
	require.Equal(t, cell.AttrBold, decoded.SnapshotChunk.Styles[0].Def.Attrs)
}
