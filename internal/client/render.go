package client

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/beach-sh/beach/pkg/cell"
)

var (
	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("238")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	copyModeStyle = statusBarStyle.Copy().Background(lipgloss.Color("25"))

	selectionStyle = lipgloss.NewStyle().Reverse(true)
)

// render draws the current viewport as a single string: one line per
// screen row, followed by a one-line status bar, the way wandb-catnip's
// TUI composes a body view with bubbletea's lipgloss helpers.
func (m *Model) render() string {
	var b strings.Builder

	top := m.viewportTop()
	for i := 0; i < m.height-1; i++ {
		row := top + uint64(i)
		b.WriteString(m.renderRow(row))
		b.WriteByte('\n')
	}
	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m *Model) viewportTop() uint64 {
	switch m.viewport.Mode {
	case ModeTail:
		return tailStart(m.grid)
	default:
		return m.viewport.Top
	}
}

func (m *Model) renderRow(absRow uint64) string {
	cells, ok := m.grid.ReadRow(absRow)
	if !ok {
		return ""
	}

	var b strings.Builder
	for col, c := range cells {
		if c.IsContinuation() {
			continue
		}
		text := string(c.CodePoint)
		if m.inSelection(absRow, col) {
			b.WriteString(selectionStyle.Render(text))
			continue
		}
		b.WriteString(m.styleCell(c, text))
	}
	return strings.TrimRight(b.String(), " ")
}

func (m *Model) styleCell(c cell.Cell, text string) string {
	def, err := m.styles.ByID(c.StyleID)
	if err != nil || def == (cell.Style{}) {
		return text
	}
	style := lipgloss.NewStyle()
	style = applyColor(style, def.Fg, false)
	style = applyColor(style, def.Bg, true)
	if def.Attrs&cell.AttrBold != 0 {
		style = style.Bold(true)
	}
	if def.Attrs&cell.AttrDim != 0 {
		style = style.Faint(true)
	}
	if def.Attrs&cell.AttrItalic != 0 {
		style = style.Italic(true)
	}
	if def.Attrs&cell.AttrUnderline != 0 {
		style = style.Underline(true)
	}
	if def.Attrs&cell.AttrReverse != 0 {
		style = style.Reverse(true)
	}
	if def.Attrs&cell.AttrStrikethrough != 0 {
		style = style.Strikethrough(true)
	}
	if def.Attrs&cell.AttrHidden != 0 {
		return " "
	}
	return style.Render(text)
}

func applyColor(style lipgloss.Style, c cell.Color, background bool) lipgloss.Style {
	var col lipgloss.Color
	switch c.Kind {
	case cell.ColorIndexed:
		col = lipgloss.Color(fmt.Sprintf("%d", c.Index))
	case cell.ColorRGB:
		col = lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
	default:
		return style
	}
	if background {
		return style.Background(col)
	}
	return style.Foreground(col)
}

func (m *Model) inSelection(row uint64, col int) bool {
	if m.copy == nil || !m.copy.Selecting {
		return false
	}
	startRow, endRow := m.copy.AnchorRow, m.copy.CursorRow
	startCol, endCol := m.copy.AnchorCol, m.copy.CursorCol
	if startRow > endRow || (startRow == endRow && startCol > endCol) {
		startRow, endRow = endRow, startRow
		startCol, endCol = endCol, startCol
	}
	if row < startRow || row > endRow {
		return false
	}
	if row == startRow && col < startCol {
		return false
	}
	if row == endRow && col > endCol {
		return false
	}
	return true
}

func (m *Model) renderStatusBar() string {
	style := statusBarStyle
	mode := "TAIL"
	switch m.viewport.Mode {
	case ModeScrolled:
		mode = "SCROLL"
	case ModeCopyMode:
		mode = "COPY"
		style = copyModeStyle
	}

	state := connStateText(m.connState)

	text := fmt.Sprintf(" %s | %s | %d pending ", mode, state, len(m.predict.pending))
	if m.statusText != "" {
		text += "| " + m.statusText + " "
	}
	return style.Width(m.width).Render(text)
}
