package client

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/beach-sh/beach/internal/clipboard"
	"github.com/beach-sh/beach/pkg/cell"
)

func seedRow(t *testing.T, m *Model, row uint64, text string) {
	t.Helper()
	cells := make([]cell.Cell, m.grid.Cols())
	for i, r := range text {
		cells[i] = cell.Cell{CodePoint: r}
	}
	for i := len(text); i < len(cells); i++ {
		cells[i] = cell.Default()
	}
	_, err := m.grid.WriteRow(row, cells)
	require.NoError(t, err)
}

func newTestModel(t *testing.T) (*Model, *clipboard.Fake) {
	t.Helper()
	fake := &clipboard.Fake{}
	m := NewModel(nil, fake, 20, 5, 1000)
	return m, fake
}

func TestEnterCopyModeSwitchesViewportMode(t *testing.T) {
	m, _ := newTestModel(t)
	seedRow(t, m, 0, "hello")
	m.enterCopyMode()
	require.Equal(t, ModeCopyMode, m.viewport.Mode)
	require.NotNil(t, m.copy)
}

func TestCopyModeMovementStaysWithinBounds(t *testing.T) {
	m, _ := newTestModel(t)
	seedRow(t, m, 0, "hello")
	m.enterCopyMode()
	m.copy.CursorRow = m.grid.RowOffset()
	m.copy.CursorCol = 0

	got, _ := m.handleCopyModeKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")})
	require.Same(t, m, got)
	require.Equal(t, m.grid.RowOffset(), m.copy.CursorRow)

	_, _ = m.handleCopyModeKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("h")})
	require.Equal(t, 0, m.copy.CursorCol)
}

func TestYankCopiesSelectedLineToClipboard(t *testing.T) {
	m, fake := newTestModel(t)
	seedRow(t, m, 0, "hello world")
	m.enterCopyMode()
	m.copy.CursorRow = 0
	m.copy.CursorCol = 0

	_, _ = m.handleCopyModeKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})

	require.Equal(t, "hello world", fake.Text)
	require.Equal(t, ModeTail, m.viewport.Mode)
	require.Nil(t, m.copy)
}

func TestYankWithSelectionCopiesExactRange(t *testing.T) {
	m, fake := newTestModel(t)
	seedRow(t, m, 0, "hello world")
	m.enterCopyMode()
	m.copy.CursorRow = 0
	m.copy.CursorCol = 0
	_, _ = m.handleCopyModeKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("v")})
	m.copy.CursorCol = 4

	_, _ = m.handleCopyModeKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})

	require.Equal(t, "hello", fake.Text)
}

func TestEscapeExitsCopyModeWithoutYanking(t *testing.T) {
	m, fake := newTestModel(t)
	seedRow(t, m, 0, "hello")
	m.enterCopyMode()

	_, _ = m.handleCopyModeKey(tea.KeyMsg{Type: tea.KeyEsc})

	require.Empty(t, fake.Text)
	require.Equal(t, ModeTail, m.viewport.Mode)
	require.Nil(t, m.copy)
}
