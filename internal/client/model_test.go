package client

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/beach-sh/beach/internal/beacherr"
	"github.com/beach-sh/beach/pkg/cell"
	"github.com/beach-sh/beach/pkg/update"
	"github.com/beach-sh/beach/pkg/wire"
)

func TestApplyHelloAcceptsMatchingVersion(t *testing.T) {
	m, _ := newTestModel(t)
	cmd := m.applyFrame(wire.Frame{Kind: wire.FrameHello, Hello: wire.Hello{ProtocolVersion: wire.Version, SessionID: "s", Role: "host"}})
	require.Nil(t, cmd)
	require.NoError(t, m.Err)
	require.False(t, m.quitting)
}

func TestApplyHelloQuitsOnVersionMismatch(t *testing.T) {
	m, _ := newTestModel(t)
	cmd := m.applyFrame(wire.Frame{Kind: wire.FrameHello, Hello: wire.Hello{ProtocolVersion: wire.Version + 1, SessionID: "s", Role: "host"}})
	require.NotNil(t, cmd)
	require.ErrorIs(t, m.Err, beacherr.KindProtocolVersionMismatch)
	require.True(t, m.quitting)
	require.Contains(t, m.statusText, "version mismatch")

	msg := cmd()
	require.IsType(t, tea.QuitMsg{}, msg)
}

func TestApplyDeltaTrimAdvancesFloorAndSetsStatus(t *testing.T) {
	m, _ := newTestModel(t)
	for r := uint64(0); r < 5; r++ {
		seedRow(t, m, r, "x")
	}

	m.applyDelta(wire.Delta{Updates: []update.Update{update.NewTrim(1, 3)}})

	require.Equal(t, uint64(3), m.grid.RowOffset())
	require.Equal(t, "history trimmed", m.statusText)
	_, ok := m.grid.ReadRow(2)
	require.False(t, ok)
}

func TestApplyDeltaTrimClampsCopyModeCursor(t *testing.T) {
	m, _ := newTestModel(t)
	for r := uint64(0); r < 5; r++ {
		seedRow(t, m, r, "x")
	}
	m.copy = &CopyMode{CursorRow: 1, AnchorRow: 0}

	m.applyDelta(wire.Delta{Updates: []update.Update{update.NewTrim(1, 3)}})

	require.Equal(t, uint64(3), m.copy.CursorRow)
	require.Equal(t, uint64(3), m.copy.AnchorRow)
}

func TestApplyDeltaRectFillsRange(t *testing.T) {
	m, _ := newTestModel(t)
	seedRow(t, m, 0, "hello")

	fill := cell.Cell{CodePoint: 'x'}
	rect := update.NewRect(1, update.RowRange{Start: 0, End: 0}, update.ColRange{Start: 0, End: 2}, fill)

	m.applyDelta(wire.Delta{Updates: []update.Update{rect}})

	got := m.renderRow(0)
	require.Equal(t, "xxxlo", got)
}
