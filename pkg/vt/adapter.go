package vt

import (
	"github.com/beach-sh/beach/pkg/cell"
	"github.com/beach-sh/beach/pkg/grid"
)

// damageSpan tracks the inclusive column range touched on a row since
// the last flush. An empty span (minCol > maxCol) means untouched.
type damageSpan struct {
	minCol, maxCol int
}

func (d *damageSpan) touch(col int) {
	if d.minCol > d.maxCol {
		d.minCol, d.maxCol = col, col
		return
	}
	if col < d.minCol {
		d.minCol = col
	}
	if col > d.maxCol {
		d.maxCol = col
	}
}

// Emulator feeds PTY bytes into the VT parser, maintains the live screen
// (cursor, SGR state, scroll region, alt-screen), tracks per-row damage,
// and flushes diffs into the shared grid (spec §4.C).
type Emulator struct {
	grid   *grid.Grid
	styles *cell.StyleTable
	parser *Parser

	cols, rows   int
	viewportBase uint64 // absolute row of local screen row 0

	cursorX, cursorY int
	cursorVisible    bool

	scrollTop, scrollBottom int // inclusive, local row indices

	curFg, curBg cell.Color
	curAttrs     cell.Attrs

	altScreen    bool
	savedScreen  [][]cell.Cell
	savedBase    uint64
	savedCursorX int
	savedCursorY int

	bracketedPaste bool

	screen [][]cell.Cell // rows x cols, the live local view
	damage map[uint64]*damageSpan

	localEcho *LocalEchoRing

	pendingStyles []pendingStyle
}

type pendingStyle struct {
	id  uint32
	def cell.Style
}

// NewEmulator constructs an Emulator bound to g and its style table,
// with a fresh blank screen of the given dimensions.
func NewEmulator(g *grid.Grid, styles *cell.StyleTable, cols, rows int) *Emulator {
	e := &Emulator{
		grid:          g,
		styles:        styles,
		cols:          cols,
		rows:          rows,
		scrollTop:     0,
		scrollBottom:  rows - 1,
		cursorVisible: true,
		screen:        make([][]cell.Cell, rows),
		damage:        make(map[uint64]*damageSpan),
		localEcho:     NewLocalEchoRing(),
	}
	for i := range e.screen {
		e.screen[i] = blankLine(cols)
	}

	e.parser = NewParser()
	e.parser.OnPrint = e.handlePrint
	e.parser.OnExecute = e.handleExecute
	e.parser.OnCsi = e.handleCsi
	e.parser.OnOsc = e.handleOsc
	e.parser.OnEscape = e.handleEscape
	return e
}

func blankLine(cols int) []cell.Cell {
	line := make([]cell.Cell, cols)
	for i := range line {
		line[i] = cell.Default()
	}
	return line
}

// LocalEchoRing exposes the ring so the PTY-writing side (the host's
// stdin forwarder) can record locally typed bytes.
func (e *Emulator) LocalEchoRing() *LocalEchoRing { return e.localEcho }

// Feed parses data, updating the live screen and damage tracking, and
// returns the subset of data that should still be mirrored to the host
// operator's own stdout after stripping any locally-echoed prefix.
// The full, unmodified data is always parsed into the emulator.
func (e *Emulator) Feed(data []byte) (mirror []byte) {
	mirror = e.localEcho.Consume(data)
	e.parser.Parse(data)
	return mirror
}

func (e *Emulator) absoluteRow(localRow int) uint64 {
	return e.viewportBase + uint64(localRow)
}

func (e *Emulator) markDamage(localRow, col int) {
	if localRow < 0 || localRow >= e.rows {
		return
	}
	abs := e.absoluteRow(localRow)
	d, ok := e.damage[abs]
	if !ok {
		d = &damageSpan{minCol: 1, maxCol: 0}
		e.damage[abs] = d
	}
	d.touch(col)
}

func (e *Emulator) markRowDamage(localRow int) {
	e.markDamage(localRow, 0)
	e.markDamage(localRow, e.cols-1)
}

// handlePrint places a printable rune at the cursor and advances it,
// wrapping and scrolling as needed. Wide glyphs occupy a primary cell
// plus a continuation cell.
func (e *Emulator) handlePrint(r rune) {
	width := cell.Width(r)
	if width <= 0 {
		width = 1
	}

	if e.cursorX+width > e.cols {
		e.cursorX = 0
		e.newline()
	}

	id, isNew := e.internCurrentStyle()
	if isNew {
		e.pendingStyles = append(e.pendingStyles, pendingStyle{id: id, def: e.currentStyleDef()})
	}

	if width == 2 && e.cursorX+1 < e.cols {
		primary, cont := cell.WidePair(r, id, 0)
		e.screen[e.cursorY][e.cursorX] = primary
		e.screen[e.cursorY][e.cursorX+1] = cont
		e.markDamage(e.cursorY, e.cursorX)
		e.markDamage(e.cursorY, e.cursorX+1)
		e.cursorX += 2
	} else {
		e.screen[e.cursorY][e.cursorX] = cell.Pack(r, id, 0, 0)
		e.markDamage(e.cursorY, e.cursorX)
		e.cursorX++
	}

	if e.cursorX >= e.cols {
		e.cursorX = e.cols - 1
	}
}

func (e *Emulator) internCurrentStyle() (uint32, bool) {
	return e.styles.Intern(e.currentStyleDef())
}

func (e *Emulator) currentStyleDef() cell.Style {
	return cell.Style{Fg: e.curFg, Bg: e.curBg, Attrs: e.curAttrs}
}

func (e *Emulator) handleExecute(b byte) {
	switch b {
	case '\r':
		e.cursorX = 0
	case '\n', '\v', '\f':
		e.newline()
	case '\b':
		if e.cursorX > 0 {
			e.cursorX--
		}
	case '\t':
		next := ((e.cursorX / 8) + 1) * 8
		if next >= e.cols {
			next = e.cols - 1
		}
		e.cursorX = next
	}
}

// newline advances the cursor to the next line, scrolling the scroll
// region (or the whole screen) when it falls off the bottom. Scrolling
// the bottom of the *whole* screen (not a restricted scroll region)
// introduces a brand-new absolute row rather than rewriting an old one,
// preserving absolute-row indexing (spec §9).
func (e *Emulator) newline() {
	if e.cursorY < e.scrollBottom {
		e.cursorY++
		return
	}
	e.scrollUp(1)
}

// scrollUp shifts the scroll region up by n lines. When the scroll
// region spans the whole screen, new lines are modeled as genuinely new
// absolute rows; when restricted, lines are shifted in place within the
// already-allocated screen and every touched row is marked fully dirty.
func (e *Emulator) scrollUp(n int) {
	whole := e.scrollTop == 0 && e.scrollBottom == e.rows-1
	for i := 0; i < n; i++ {
		if whole {
			e.Flush()
			e.viewportBase++
			e.screen = append(e.screen[1:], blankLine(e.cols))
			for r := 0; r < e.rows; r++ {
				e.markRowDamage(r)
			}
			continue
		}
		copy(e.screen[e.scrollTop:e.scrollBottom], e.screen[e.scrollTop+1:e.scrollBottom+1])
		e.screen[e.scrollBottom] = blankLine(e.cols)
		for r := e.scrollTop; r <= e.scrollBottom; r++ {
			e.markRowDamage(r)
		}
	}
}

func (e *Emulator) scrollDown(n int) {
	for i := 0; i < n; i++ {
		copy(e.screen[e.scrollTop+1:e.scrollBottom+1], e.screen[e.scrollTop:e.scrollBottom])
		e.screen[e.scrollTop] = blankLine(e.cols)
		for r := e.scrollTop; r <= e.scrollBottom; r++ {
			e.markRowDamage(r)
		}
	}
}

func paramOr(params []int, idx, def int) int {
	if idx >= len(params) || params[idx] < 0 {
		return def
	}
	return params[idx]
}

func (e *Emulator) handleCsi(params []int, intermediate []byte, final byte) {
	private := len(intermediate) > 0 && intermediate[0] == '?'

	switch final {
	case 'A':
		e.cursorY = clamp(e.cursorY-paramOr(params, 0, 1), 0, e.rows-1)
	case 'B':
		e.cursorY = clamp(e.cursorY+paramOr(params, 0, 1), 0, e.rows-1)
	case 'C':
		e.cursorX = clamp(e.cursorX+paramOr(params, 0, 1), 0, e.cols-1)
	case 'D':
		e.cursorX = clamp(e.cursorX-paramOr(params, 0, 1), 0, e.cols-1)
	case 'G', '`':
		e.cursorX = clamp(paramOr(params, 0, 1)-1, 0, e.cols-1)
	case 'd':
		e.cursorY = clamp(paramOr(params, 0, 1)-1, 0, e.rows-1)
	case 'H', 'f':
		e.cursorY = clamp(paramOr(params, 0, 1)-1, 0, e.rows-1)
		e.cursorX = clamp(paramOr(params, 1, 1)-1, 0, e.cols-1)
	case 'J':
		e.eraseDisplay(paramOr(params, 0, 0))
	case 'K':
		e.eraseLine(paramOr(params, 0, 0))
	case 'L':
		e.insertLines(paramOr(params, 0, 1))
	case 'M':
		e.deleteLines(paramOr(params, 0, 1))
	case 'P':
		e.deleteChars(paramOr(params, 0, 1))
	case '@':
		e.insertChars(paramOr(params, 0, 1))
	case 'S':
		e.scrollUp(paramOr(params, 0, 1))
	case 'T':
		e.scrollDown(paramOr(params, 0, 1))
	case 'r':
		top := paramOr(params, 0, 1) - 1
		bottom := paramOr(params, 1, e.rows) - 1
		if top < 0 {
			top = 0
		}
		if bottom >= e.rows {
			bottom = e.rows - 1
		}
		if top < bottom {
			e.scrollTop, e.scrollBottom = top, bottom
		} else {
			e.scrollTop, e.scrollBottom = 0, e.rows-1
		}
		e.cursorX, e.cursorY = 0, 0
	case 'm':
		e.handleSGR(params)
	case 'h':
		e.handleMode(params, private, true)
	case 'l':
		e.handleMode(params, private, false)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (e *Emulator) eraseDisplay(mode int) {
	switch mode {
	case 0:
		e.eraseLineFrom(e.cursorY, e.cursorX)
		for r := e.cursorY + 1; r < e.rows; r++ {
			e.screen[r] = blankLine(e.cols)
			e.markRowDamage(r)
		}
	case 1:
		e.eraseLineTo(e.cursorY, e.cursorX)
		for r := 0; r < e.cursorY; r++ {
			e.screen[r] = blankLine(e.cols)
			e.markRowDamage(r)
		}
	case 2, 3:
		for r := 0; r < e.rows; r++ {
			e.screen[r] = blankLine(e.cols)
			e.markRowDamage(r)
		}
	}
}

func (e *Emulator) eraseLine(mode int) {
	switch mode {
	case 0:
		e.eraseLineFrom(e.cursorY, e.cursorX)
	case 1:
		e.eraseLineTo(e.cursorY, e.cursorX)
	case 2:
		e.screen[e.cursorY] = blankLine(e.cols)
		e.markRowDamage(e.cursorY)
	}
}

func (e *Emulator) eraseLineFrom(row, col int) {
	for c := col; c < e.cols; c++ {
		e.screen[row][c] = cell.Default()
		e.markDamage(row, c)
	}
}

func (e *Emulator) eraseLineTo(row, col int) {
	for c := 0; c <= col && c < e.cols; c++ {
		e.screen[row][c] = cell.Default()
		e.markDamage(row, c)
	}
}

func (e *Emulator) insertLines(n int) {
	if e.cursorY < e.scrollTop || e.cursorY > e.scrollBottom {
		return
	}
	for i := 0; i < n && e.cursorY <= e.scrollBottom; i++ {
		copy(e.screen[e.cursorY+1:e.scrollBottom+1], e.screen[e.cursorY:e.scrollBottom])
		e.screen[e.cursorY] = blankLine(e.cols)
	}
	for r := e.cursorY; r <= e.scrollBottom; r++ {
		e.markRowDamage(r)
	}
}

func (e *Emulator) deleteLines(n int) {
	if e.cursorY < e.scrollTop || e.cursorY > e.scrollBottom {
		return
	}
	for i := 0; i < n && e.cursorY <= e.scrollBottom; i++ {
		copy(e.screen[e.cursorY:e.scrollBottom], e.screen[e.cursorY+1:e.scrollBottom+1])
		e.screen[e.scrollBottom] = blankLine(e.cols)
	}
	for r := e.cursorY; r <= e.scrollBottom; r++ {
		e.markRowDamage(r)
	}
}

func (e *Emulator) insertChars(n int) {
	row := e.screen[e.cursorY]
	end := e.cols - n
	if end > e.cursorX {
		copy(row[e.cursorX+n:], row[e.cursorX:end])
	}
	for c := e.cursorX; c < e.cursorX+n && c < e.cols; c++ {
		row[c] = cell.Default()
	}
	e.markRowDamage(e.cursorY)
}

func (e *Emulator) deleteChars(n int) {
	row := e.screen[e.cursorY]
	if e.cursorX+n < e.cols {
		copy(row[e.cursorX:], row[e.cursorX+n:])
	}
	for c := e.cols - n; c < e.cols; c++ {
		if c >= 0 {
			row[c] = cell.Default()
		}
	}
	e.markRowDamage(e.cursorY)
}

// handleSGR applies Select Graphic Rendition parameters to the current
// pen state used for subsequently printed cells.
func (e *Emulator) handleSGR(params []int) {
	if len(params) == 0 {
		params = []int{0}
	}
	for i := 0; i < len(params); i++ {
		p := params[i]
		if p < 0 {
			p = 0
		}
		switch {
		case p == 0:
			e.curFg, e.curBg, e.curAttrs = cell.Color{}, cell.Color{}, 0
		case p == 1:
			e.curAttrs |= cell.AttrBold
		case p == 2:
			e.curAttrs |= cell.AttrDim
		case p == 3:
			e.curAttrs |= cell.AttrItalic
		case p == 4:
			e.curAttrs |= cell.AttrUnderline
		case p == 5 || p == 6:
			e.curAttrs |= cell.AttrBlink
		case p == 7:
			e.curAttrs |= cell.AttrReverse
		case p == 8:
			e.curAttrs |= cell.AttrHidden
		case p == 9:
			e.curAttrs |= cell.AttrStrikethrough
		case p == 21:
			e.curAttrs &^= cell.AttrBold
		case p == 22:
			e.curAttrs &^= (cell.AttrBold | cell.AttrDim)
		case p == 23:
			e.curAttrs &^= cell.AttrItalic
		case p == 24:
			e.curAttrs &^= cell.AttrUnderline
		case p == 25:
			e.curAttrs &^= cell.AttrBlink
		case p == 27:
			e.curAttrs &^= cell.AttrReverse
		case p == 28:
			e.curAttrs &^= cell.AttrHidden
		case p == 29:
			e.curAttrs &^= cell.AttrStrikethrough
		case p >= 30 && p <= 37:
			e.curFg = cell.Color{Kind: cell.ColorIndexed, Index: uint8(p - 30)}
		case p == 38:
			consumed := e.readExtendedColor(params, i, true)
			i += consumed
		case p == 39:
			e.curFg = cell.Color{}
		case p >= 40 && p <= 47:
			e.curBg = cell.Color{Kind: cell.ColorIndexed, Index: uint8(p - 40)}
		case p == 48:
			consumed := e.readExtendedColor(params, i, false)
			i += consumed
		case p == 49:
			e.curBg = cell.Color{}
		case p >= 90 && p <= 97:
			e.curFg = cell.Color{Kind: cell.ColorIndexed, Index: uint8(p - 90 + 8)}
		case p >= 100 && p <= 107:
			e.curBg = cell.Color{Kind: cell.ColorIndexed, Index: uint8(p - 100 + 8)}
		}
	}
}

// readExtendedColor parses the "38;5;N" (indexed) or "38;2;R;G;B" (RGB)
// extended color forms starting at params[i+1]. It returns how many
// extra parameters it consumed so the caller's loop index can skip them.
func (e *Emulator) readExtendedColor(params []int, i int, fg bool) int {
	if i+1 >= len(params) {
		return 0
	}
	switch params[i+1] {
	case 5:
		if i+2 >= len(params) {
			return 1
		}
		c := cell.Color{Kind: cell.ColorIndexed, Index: uint8(params[i+2])}
		if fg {
			e.curFg = c
		} else {
			e.curBg = c
		}
		return 2
	case 2:
		if i+4 >= len(params) {
			return 1
		}
		c := cell.Color{Kind: cell.ColorRGB, R: uint8(params[i+2]), G: uint8(params[i+3]), B: uint8(params[i+4])}
		if fg {
			e.curFg = c
		} else {
			e.curBg = c
		}
		return 4
	}
	return 1
}

// handleMode applies DECSET/DECRST private modes used by vim/less/tmux:
// 25 (cursor visibility), 1049/47/1047 (alternate screen), 2004
// (bracketed paste).
func (e *Emulator) handleMode(params []int, private, set bool) {
	if !private {
		return
	}
	for _, p := range params {
		switch p {
		case 25:
			e.cursorVisible = set
		case 2004:
			e.bracketedPaste = set
		case 47, 1047, 1049:
			if set {
				e.enterAltScreen()
			} else {
				e.exitAltScreen()
			}
		}
	}
}

// enterAltScreen preserves the current screen and switches to a fresh
// blank one, per the majority terminal convention of not preserving
// alt-screen contents in scrollback history (spec §9 open question).
func (e *Emulator) enterAltScreen() {
	if e.altScreen {
		return
	}
	e.altScreen = true
	e.savedScreen = e.screen
	e.savedBase = e.viewportBase
	e.savedCursorX, e.savedCursorY = e.cursorX, e.cursorY

	e.screen = make([][]cell.Cell, e.rows)
	for i := range e.screen {
		e.screen[i] = blankLine(e.cols)
	}
	e.cursorX, e.cursorY = 0, 0
}

func (e *Emulator) exitAltScreen() {
	if !e.altScreen {
		return
	}
	e.altScreen = false
	e.screen = e.savedScreen
	e.viewportBase = e.savedBase
	e.cursorX, e.cursorY = e.savedCursorX, e.savedCursorY
	e.savedScreen = nil
	for r := 0; r < e.rows; r++ {
		e.markRowDamage(r)
	}
}

func (e *Emulator) handleOsc(params [][]byte) {
	// Window-title and similar OSC sequences are accepted and ignored;
	// Beach flattens to a cell grid (spec explicit non-goal).
}

func (e *Emulator) handleEscape(intermediate []byte, final byte) {
	switch final {
	case 'D': // IND - index (move down, scroll if needed)
		e.newline()
	case 'M': // RI - reverse index
		if e.cursorY > e.scrollTop {
			e.cursorY--
		} else {
			e.scrollDown(1)
		}
	case 'E': // NEL - next line
		e.cursorX = 0
		e.newline()
	}
}

// CursorVisible reports whether the cursor should currently be rendered.
func (e *Emulator) CursorVisible() bool { return e.cursorVisible }

// CursorPosition returns the cursor's absolute row and local column.
func (e *Emulator) CursorPosition() (absRow uint64, col int) {
	return e.absoluteRow(e.cursorY), e.cursorX
}

// BracketedPaste reports whether the shell has requested bracketed paste
// mode, which the client consults before sending pasted clipboard text.
func (e *Emulator) BracketedPaste() bool { return e.bracketedPaste }

// Resize adjusts the live screen dimensions, padding or truncating rows
// and columns and clamping the cursor, mirroring the grid's own Resize.
func (e *Emulator) Resize(cols, rows int) {
	if cols == e.cols && rows == e.rows {
		return
	}

	newScreen := make([][]cell.Cell, rows)
	for i := range newScreen {
		newScreen[i] = blankLine(cols)
	}
	minRows := min(rows, e.rows)
	minCols := min(cols, e.cols)
	for r := 0; r < minRows; r++ {
		copy(newScreen[r], e.screen[r][:minCols])
	}

	e.screen = newScreen
	e.cols, e.rows = cols, rows
	e.scrollTop, e.scrollBottom = 0, rows-1
	e.cursorX = clamp(e.cursorX, 0, cols-1)
	e.cursorY = clamp(e.cursorY, 0, rows-1)
	e.grid.Resize(cols)
	e.grid.SetViewportRows(rows)

	for r := 0; r < rows; r++ {
		e.markRowDamage(r)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Flush diffs every damaged row against the grid's current contents and
// writes only the changed column spans, per spec §4.C. It must be called
// after one or more Feed calls to push pending output onto the wire.
func (e *Emulator) Flush() {
	for _, ps := range e.pendingStyles {
		e.grid.EmitStyle(ps.id, ps.def)
	}
	e.pendingStyles = e.pendingStyles[:0]

	for absRow, span := range e.damage {
		if span.minCol > span.maxCol {
			continue
		}
		localRow := int(absRow - e.viewportBase)
		if localRow < 0 || localRow >= e.rows {
			continue
		}
		live := e.screen[localRow]

		existing, ok := e.grid.ReadRow(absRow)

		changeStart, changeEnd := -1, -1
		for c := span.minCol; c <= span.maxCol && c < len(live); c++ {
			var prev cell.Cell
			if ok && c < len(existing) {
				prev = existing[c]
			} else {
				prev = cell.Default()
			}
			if prev.CodePoint != live[c].CodePoint || prev.StyleID != live[c].StyleID || prev.Flags != live[c].Flags {
				if changeStart == -1 {
					changeStart = c
				}
				changeEnd = c
			}
		}

		if changeStart == -1 {
			continue
		}

		segment := make([]cell.Cell, changeEnd-changeStart+1)
		copy(segment, live[changeStart:changeEnd+1])
		_, _ = e.grid.WriteRowSegment(absRow, changeStart, segment)
	}

	e.damage = make(map[uint64]*damageSpan)
}
