package client

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// CopyMode holds the selection cursor and anchor for tmux-compatible
// copy-mode navigation and yanking (spec §4.I).
type CopyMode struct {
	CursorRow uint64
	CursorCol int

	Selecting   bool
	AnchorRow   uint64
	AnchorCol   int
}

// enterCopyMode switches the viewport to ModeCopyMode with the cursor
// starting at column 0 of the bottom row of the currently visible screen,
// mirroring tmux's `prefix [` behavior.
func (m *Model) enterCopyMode() {
	if m.viewport.Mode != ModeScrolled {
		m.viewport.Top = tailStart(m.grid)
	}
	row := m.viewport.Top + uint64(m.height) - 1
	m.viewport.Mode = ModeCopyMode
	m.copy = &CopyMode{CursorRow: row, CursorCol: 0}
}

func (m *Model) exitCopyMode() {
	m.copy = nil
	m.viewport.Mode = ModeTail
}

// handleCopyModeKey implements the tmux-compatible subset of copy-mode
// keybindings: hjkl/arrow movement, g/G for top/bottom, ctrl+u/ctrl+d for
// half-page scroll, v to start a selection, y to yank and exit, q/esc to
// cancel.
func (m *Model) handleCopyModeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := m.copy
	off := m.grid.RowOffset()
	next := m.grid.NextRow()

	switch msg.String() {
	case "q", "esc":
		m.exitCopyMode()
	case "h", "left":
		if c.CursorCol > 0 {
			c.CursorCol--
		}
	case "l", "right":
		if c.CursorCol < m.grid.Cols()-1 {
			c.CursorCol++
		}
	case "j", "down":
		if c.CursorRow+1 < next {
			c.CursorRow++
		}
	case "k", "up":
		if c.CursorRow > off {
			c.CursorRow--
		}
	case "g":
		c.CursorRow = off
	case "G":
		if next > 0 {
			c.CursorRow = next - 1
		}
	case "ctrl+u":
		c.CursorRow = clampRow(c.CursorRow, off, m.height/2, true)
	case "ctrl+d":
		c.CursorRow = clampRow(c.CursorRow, next-1, m.height/2, false)
	case "v", "space":
		c.Selecting = !c.Selecting
		if c.Selecting {
			c.AnchorRow, c.AnchorCol = c.CursorRow, c.CursorCol
		}
	case "y", "enter":
		m.yank()
		m.exitCopyMode()
	}

	m.viewport.Top = scrollToShow(c.CursorRow, m.viewport.Top, uint64(m.height), off)
	return m, nil
}

func clampRow(row, bound uint64, delta int, down bool) uint64 {
	if down {
		if row < uint64(delta) || row-uint64(delta) < bound {
			return bound
		}
		return row - uint64(delta)
	}
	if row+uint64(delta) > bound {
		return bound
	}
	return row + uint64(delta)
}

func scrollToShow(row, top, height, floor uint64) uint64 {
	if row < top {
		return row
	}
	if row >= top+height {
		return row - height + 1
	}
	if top < floor {
		return floor
	}
	return top
}

// yank copies the text between the selection anchor and cursor (or the
// cursor's current line if no selection is active) to the OS clipboard.
func (m *Model) yank() {
	c := m.copy
	if c == nil || m.clip == nil {
		return
	}

	startRow, endRow := c.AnchorRow, c.CursorRow
	startCol, endCol := c.AnchorCol, c.CursorCol
	if !c.Selecting {
		startRow, endRow = c.CursorRow, c.CursorRow
		startCol, endCol = 0, m.grid.Cols()-1
	}
	if startRow > endRow || (startRow == endRow && startCol > endCol) {
		startRow, endRow = endRow, startRow
		startCol, endCol = endCol, startCol
	}

	var b strings.Builder
	for r := startRow; r <= endRow; r++ {
		cells, ok := m.grid.ReadRow(r)
		if !ok {
			continue
		}
		from, to := 0, len(cells)-1
		if r == startRow {
			from = startCol
		}
		if r == endRow {
			to = endCol
		}
		for c := from; c <= to && c < len(cells); c++ {
			b.WriteRune(cells[c].CodePoint)
		}
		if r != endRow {
			b.WriteByte('\n')
		}
	}

	_ = m.clip.Write(strings.TrimRight(b.String(), " "))
}
