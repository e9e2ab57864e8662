// Package update defines the typed, sequenced grid mutations that flow
// from the absolute grid through the synchronization engine to the wire
// (spec §4.D). Every update carries a monotonic sequence number assigned
// at insertion time and a cost used for budget enforcement when batching.
package update

import "github.com/beach-sh/beach/pkg/cell"

// Kind tags which variant an Update holds.
type Kind uint8

const (
	KindCell Kind = iota
	KindRowSegment
	KindRow
	KindRect
	KindStyle
	KindTrim
)

// fixedCost is the budget charge for updates whose cost does not scale
// with payload size (Style, Trim).
const fixedCost = 2

// RowRange is an inclusive absolute row range, used by Rect.
type RowRange struct{ Start, End uint64 }

// ColRange is an inclusive column range, used by Rect.
type ColRange struct{ Start, End int }

// Update is a tagged variant over the six mutation kinds the grid can
// emit. Exactly one of the payload fields is meaningful, selected by
// Kind; this mirrors the spec's description of Update as a tagged union
// without requiring six distinct wire message types downstream (pkg/wire
// encodes the Kind discriminant directly).
type Update struct {
	Kind Kind
	Seq  uint64

	// KindCell
	Row, Col uint64AsInt
	Cell     cell.Cell

	// KindRowSegment
	StartCol int
	Cells    []cell.Cell

	// KindRect
	RowRange RowRange
	ColRange ColRange

	// KindStyle
	StyleID  uint32
	StyleDef cell.Style

	// KindTrim
	NewFloor uint64
}

// uint64AsInt is an absolute row or column index. Rows are absolute
// (session-lifetime-wide per spec §3); columns are viewport-relative and
// always small, but both are represented the same width for symmetry
// with the grid's row-keyed storage.
type uint64AsInt = uint64

// Cost returns the budget charge for u, per spec §4.D: 1 for Cell,
// len(cells) for RowSegment/Row/Rect, a small fixed constant for
// Style/Trim.
func (u Update) Cost() int {
	switch u.Kind {
	case KindCell:
		return 1
	case KindRowSegment, KindRow:
		if len(u.Cells) == 0 {
			return 1
		}
		return len(u.Cells)
	case KindRect:
		rows := int(u.RowRange.End-u.RowRange.Start) + 1
		cols := u.ColRange.End - u.ColRange.Start + 1
		if rows < 1 {
			rows = 1
		}
		if cols < 1 {
			cols = 1
		}
		return rows * cols
	case KindStyle, KindTrim:
		return fixedCost
	default:
		return fixedCost
	}
}

// NewCell builds a Cell update.
func NewCell(seq, row uint64, col int, c cell.Cell) Update {
	return Update{Kind: KindCell, Seq: seq, Row: row, Col: uint64(col), Cell: c}
}

// NewRowSegment builds a RowSegment update covering cells[0] at startCol
// through cells[len(cells)-1] at startCol+len(cells)-1.
func NewRowSegment(seq, row uint64, startCol int, cells []cell.Cell) Update {
	return Update{Kind: KindRowSegment, Seq: seq, Row: row, StartCol: startCol, Cells: cells}
}

// NewRow builds a full-width Row update.
func NewRow(seq, row uint64, cells []cell.Cell) Update {
	return Update{Kind: KindRow, Seq: seq, Row: row, Cells: cells}
}

// NewRect builds a uniform-fill Rect update.
func NewRect(seq uint64, rows RowRange, cols ColRange, fill cell.Cell) Update {
	return Update{Kind: KindRect, Seq: seq, RowRange: rows, ColRange: cols, Cell: fill}
}

// NewStyle builds a Style update, emitted immediately before the first
// reference to a newly interned style identifier.
func NewStyle(seq uint64, id uint32, def cell.Style) Update {
	return Update{Kind: KindStyle, Seq: seq, StyleID: id, StyleDef: def}
}

// NewTrim builds a Trim update notifying subscribers that rows below
// newFloor have been evicted from the retention ring.
func NewTrim(seq, newFloor uint64) Update {
	return Update{Kind: KindTrim, Seq: seq, NewFloor: newFloor}
}

// ColOf returns the Cell update's column as an int; Row/Col are stored
// widened to uint64 so the struct has a single integer width, but every
// call site outside the grid works in ints.
func (u Update) ColOf() int { return int(u.Col) }
