// Package cell implements Beach's packed terminal cell and its interned
// style table (spec §4.A). A Cell is the fixed-width record the grid
// stores at every (row, col); a Style is content-addressed and referenced
// by an interned, unsigned identifier so that repeated cells need not
// repeat full style definitions on the wire.
package cell

import "github.com/unilibs/uniwidth"

// Flags is a bitset of per-cell rendering hints orthogonal to the style.
type Flags uint8

const (
	// FlagContinuation marks a cell as the trailing half of a wide glyph.
	// Renderers must treat continuation cells as visually owned by the
	// primary cell that precedes them.
	FlagContinuation Flags = 1 << iota
	// FlagWide marks the primary cell of a two-column glyph.
	FlagWide
)

// DefaultStyleID is pre-seeded into every StyleTable and never reassigned.
const DefaultStyleID uint32 = 0

// Cell is the fixed-width packed record stored in the grid: a Unicode
// scalar value, an interned style identifier, and the monotonic sequence
// number of the write that produced it (used for last-writer-wins).
type Cell struct {
	CodePoint rune
	StyleID   uint32
	Seq       uint64
	Flags     Flags
}

// Default returns the grid's default cell: a space in the default style,
// sequence zero, no flags.
func Default() Cell {
	return Cell{CodePoint: ' ', StyleID: DefaultStyleID}
}

// IsContinuation reports whether c is the trailing half of a wide glyph.
func (c Cell) IsContinuation() bool { return c.Flags&FlagContinuation != 0 }

// IsWide reports whether c is the primary cell of a two-column glyph.
func (c Cell) IsWide() bool { return c.Flags&FlagWide != 0 }

// Pack builds a Cell from its constituent fields. It exists alongside the
// Cell struct literal so callers that think in terms of the spec's
// pack/unpack pair (e.g. the emulator adapter translating VT output) have
// a single call site to instrument or validate.
func Pack(codePoint rune, styleID uint32, seq uint64, flags Flags) Cell {
	return Cell{CodePoint: codePoint, StyleID: styleID, Seq: seq, Flags: flags}
}

// Unpack is Pack's inverse.
func Unpack(c Cell) (codePoint rune, styleID uint32, seq uint64, flags Flags) {
	return c.CodePoint, c.StyleID, c.Seq, c.Flags
}

// Width reports the terminal column width of r: 0 for combining marks and
// most control codes, 1 for ordinary glyphs, 2 for wide CJK/emoji glyphs.
func Width(r rune) int {
	return uniwidth.RuneWidth(r)
}

// WidePair packs the two cells (primary + continuation) for a wide glyph
// at the given style, sequence and code point.
func WidePair(codePoint rune, styleID uint32, seq uint64) (primary, continuation Cell) {
	primary = Cell{CodePoint: codePoint, StyleID: styleID, Seq: seq, Flags: FlagWide}
	continuation = Cell{CodePoint: ' ', StyleID: styleID, Seq: seq, Flags: FlagContinuation}
	return
}
