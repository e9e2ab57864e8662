// Package wire implements Beach's binary framing over the data channel
// (spec §4.E, §6): a length-prefixed, non-JSON frame format plus a chunk
// envelope for payloads that exceed the SCTP message ceiling.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/beach-sh/beach/pkg/cell"
	"github.com/beach-sh/beach/pkg/update"
)

// Version is the wire protocol version byte. Bumping it is a breaking
// change; a mismatched Hello forces the client to disconnect rather than
// guess at an incompatible layout.
const Version byte = 1

// FrameKind discriminates the frame payloads exchanged over the data
// channel.
type FrameKind byte

const (
	FrameHello FrameKind = iota + 1
	FrameGrid
	FrameSnapshotChunk
	FrameSnapshotComplete
	FrameDelta
	FrameInput
	FrameInputAck
	FrameResize
	FrameHeartbeat
)

// ErrShortFrame is returned when a buffer ends before a frame's declared
// fields are fully present, which for the chunk reassembler means the
// wire is corrupt rather than merely incomplete (chunking is meant to
// solve that case already).
var ErrShortFrame = errors.New("wire: frame truncated")

// ErrUnknownFrameKind is returned by Decode for a byte it does not
// recognize, which the caller treats as a fatal protocol violation.
type ErrUnknownFrameKind struct{ Kind byte }

func (e ErrUnknownFrameKind) Error() string {
	return fmt.Sprintf("wire: unknown frame kind %d", e.Kind)
}

// Frame is the decoded, in-memory form of one logical message. Exactly
// one payload field is meaningful, selected by Kind.
type Frame struct {
	Kind FrameKind

	Hello          Hello
	Grid           GridInfo
	SnapshotChunk  SnapshotChunk
	SnapshotDone   SnapshotComplete
	Delta          Delta
	Input          Input
	InputAck       InputAck
	Resize         Resize
}

// Hello is the first frame the host sends to a new subscriber,
// advertising protocol version and session identity.
type Hello struct {
	ProtocolVersion byte
	SessionID       string
	Role            string // "host" or "viewer"
}

// GridInfo announces the negotiated terminal dimensions and history
// retention, sent once after Hello and again on every resize.
type GridInfo struct {
	Cols, Rows   uint32
	HistoryLimit uint64
}

// SnapshotChunk carries one lane's worth of rows for the initial
// catch-up handshake (spec §4.D snapshot-once-per-lane).
type SnapshotChunk struct {
	Lane     uint8
	FirstRow uint64
	Rows     [][]cell.Cell
	Styles   []StyleDef
}

// StyleDef pairs an interned style identifier with its definition, used
// to seed a subscriber's StyleTable alongside a snapshot.
type StyleDef struct {
	ID  uint32
	Def cell.Style
}

// SnapshotComplete marks the end of a lane's snapshot. The synchronizer
// begins sending ordinary delta batches once every lane has completed.
type SnapshotComplete struct {
	Lane uint8
}

// Delta carries a batch of ordinary grid updates. The synchronizer sends
// one delta stream for all lanes and tags it with the Foreground lane.
type Delta struct {
	Lane    uint8
	Updates []update.Update
}

// Input carries raw bytes the viewer wants forwarded to the PTY.
type Input struct {
	Seq  uint64
	Data []byte
}

// InputAck confirms the host has applied input up through Seq, which the
// client uses to retire predictive-echo entries (spec §4.H).
type InputAck struct {
	Seq uint64
}

// Resize carries a viewer-requested or host-observed terminal resize.
type Resize struct {
	Cols, Rows uint32
}

// Encode serializes f into a self-contained, length-prefixed frame body
// (without the outer chunk envelope — see pkg/transport for chunking).
func Encode(f Frame) []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, Version, byte(f.Kind))

	switch f.Kind {
	case FrameHello:
		buf = appendString(buf, f.Hello.SessionID)
		buf = appendString(buf, f.Hello.Role)
		buf = append(buf, f.Hello.ProtocolVersion)
	case FrameGrid:
		buf = appendU32(buf, f.Grid.Cols)
		buf = appendU32(buf, f.Grid.Rows)
		buf = appendU64(buf, f.Grid.HistoryLimit)
	case FrameSnapshotChunk:
		buf = append(buf, f.SnapshotChunk.Lane)
		buf = appendU64(buf, f.SnapshotChunk.FirstRow)
		buf = appendU32(buf, uint32(len(f.SnapshotChunk.Styles)))
		for _, s := range f.SnapshotChunk.Styles {
			buf = appendU32(buf, s.ID)
			buf = appendStyle(buf, s.Def)
		}
		buf = appendU32(buf, uint32(len(f.SnapshotChunk.Rows)))
		for _, row := range f.SnapshotChunk.Rows {
			buf = appendRow(buf, row)
		}
	case FrameSnapshotComplete:
		buf = append(buf, f.SnapshotDone.Lane)
	case FrameDelta:
		buf = append(buf, f.Delta.Lane)
		buf = appendU32(buf, uint32(len(f.Delta.Updates)))
		for _, u := range f.Delta.Updates {
			buf = appendUpdate(buf, u)
		}
	case FrameInput:
		buf = appendU64(buf, f.Input.Seq)
		buf = appendBytes(buf, f.Input.Data)
	case FrameInputAck:
		buf = appendU64(buf, f.InputAck.Seq)
	case FrameResize:
		buf = appendU32(buf, f.Resize.Cols)
		buf = appendU32(buf, f.Resize.Rows)
	case FrameHeartbeat:
		// no payload
	}
	return buf
}

// Decode parses a frame body previously produced by Encode.
func Decode(buf []byte) (Frame, error) {
	if len(buf) < 2 {
		return Frame{}, ErrShortFrame
	}
	// Version is currently only checked by the caller (Hello exchange);
	// Decode itself tolerates any version so a version-mismatch can still
	// be reported cleanly via the decoded Hello frame.
	kind := FrameKind(buf[1])
	r := &reader{buf: buf[2:]}

	var f Frame
	f.Kind = kind

	switch kind {
	case FrameHello:
		f.Hello.SessionID = r.string()
		f.Hello.Role = r.string()
		f.Hello.ProtocolVersion = r.byte()
	case FrameGrid:
		f.Grid.Cols = r.u32()
		f.Grid.Rows = r.u32()
		f.Grid.HistoryLimit = r.u64()
	case FrameSnapshotChunk:
		f.SnapshotChunk.Lane = r.byte()
		f.SnapshotChunk.FirstRow = r.u64()
		nStyles := r.u32()
		f.SnapshotChunk.Styles = make([]StyleDef, 0, nStyles)
		for i := uint32(0); i < nStyles; i++ {
			id := r.u32()
			def := r.style()
			f.SnapshotChunk.Styles = append(f.SnapshotChunk.Styles, StyleDef{ID: id, Def: def})
		}
		nRows := r.u32()
		f.SnapshotChunk.Rows = make([][]cell.Cell, 0, nRows)
		for i := uint32(0); i < nRows; i++ {
			f.SnapshotChunk.Rows = append(f.SnapshotChunk.Rows, r.row())
		}
	case FrameSnapshotComplete:
		f.SnapshotDone.Lane = r.byte()
	case FrameDelta:
		f.Delta.Lane = r.byte()
		n := r.u32()
		f.Delta.Updates = make([]update.Update, 0, n)
		for i := uint32(0); i < n; i++ {
			f.Delta.Updates = append(f.Delta.Updates, r.update())
		}
	case FrameInput:
		f.Input.Seq = r.u64()
		f.Input.Data = r.bytes()
	case FrameInputAck:
		f.InputAck.Seq = r.u64()
	case FrameResize:
		f.Resize.Cols = r.u32()
		f.Resize.Rows = r.u32()
	case FrameHeartbeat:
		// no payload
	default:
		return Frame{}, ErrUnknownFrameKind{Kind: byte(kind)}
	}

	if r.err != nil {
		return Frame{}, r.err
	}
	return f, nil
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendBytes(buf, data []byte) []byte {
	buf = appendU32(buf, uint32(len(data)))
	return append(buf, data...)
}

func appendString(buf []byte, s string) []byte {
	return appendBytes(buf, []byte(s))
}

func appendStyle(buf []byte, s cell.Style) []byte {
	buf = appendColor(buf, s.Fg)
	buf = appendColor(buf, s.Bg)
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], uint16(s.Attrs))
	return append(buf, tmp[:]...)
}

func appendColor(buf []byte, c cell.Color) []byte {
	return append(buf, byte(c.Kind), c.Index, c.R, c.G, c.B)
}

func appendRow(buf []byte, row []cell.Cell) []byte {
	buf = appendU32(buf, uint32(len(row)))
	for _, c := range row {
		buf = appendCell(buf, c)
	}
	return buf
}

func appendCell(buf []byte, c cell.Cell) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(c.CodePoint))
	buf = append(buf, tmp[:]...)
	buf = appendU32(buf, c.StyleID)
	buf = append(buf, byte(c.Flags))
	return buf
}

func appendUpdate(buf []byte, u update.Update) []byte {
	buf = append(buf, byte(u.Kind))
	buf = appendU64(buf, u.Seq)
	switch u.Kind {
	case update.KindCell:
		buf = appendU64(buf, u.Row)
		buf = appendU64(buf, u.Col)
		buf = appendCell(buf, u.Cell)
	case update.KindRowSegment, update.KindRow:
		buf = appendU64(buf, u.Row)
		buf = appendU32(buf, uint32(u.StartCol))
		buf = appendRow(buf, u.Cells)
	case update.KindRect:
		buf = appendU64(buf, u.RowRange.Start)
		buf = appendU64(buf, u.RowRange.End)
		buf = appendU32(buf, uint32(u.ColRange.Start))
		buf = appendU32(buf, uint32(u.ColRange.End))
		buf = appendCell(buf, u.Cell)
	case update.KindStyle:
		buf = appendU32(buf, u.StyleID)
		buf = appendStyle(buf, u.StyleDef)
	case update.KindTrim:
		buf = appendU64(buf, u.NewFloor)
	}
	return buf
}

// reader is a small cursor over a decode buffer that records the first
// error encountered and becomes a no-op thereafter, so Decode's call
// sequence can stay linear and check r.err once at the end.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.off+n > len(r.buf) {
		r.err = ErrShortFrame
		return false
	}
	return true
}

func (r *reader) byte() byte {
	if !r.need(1) {
		return 0
	}
	b := r.buf[r.off]
	r.off++
	return b
}

func (r *reader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *reader) u64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v
}

func (r *reader) bytes() []byte {
	n := r.u32()
	if !r.need(int(n)) {
		return nil
	}
	b := make([]byte, n)
	copy(b, r.buf[r.off:r.off+int(n)])
	r.off += int(n)
	return b
}

func (r *reader) string() string {
	return string(r.bytes())
}

func (r *reader) color() cell.Color {
	if !r.need(5) {
		return cell.Color{}
	}
	c := cell.Color{
		Kind:  cell.ColorKind(r.buf[r.off]),
		Index: r.buf[r.off+1],
		R:     r.buf[r.off+2],
		G:     r.buf[r.off+3],
		B:     r.buf[r.off+4],
	}
	r.off += 5
	return c
}

func (r *reader) style() cell.Style {
	fg := r.color()
	bg := r.color()
	if !r.need(2) {
		return cell.Style{Fg: fg, Bg: bg}
	}
	attrs := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return cell.Style{Fg: fg, Bg: bg, Attrs: cell.Attrs(attrs)}
}

func (r *reader) cellValue() cell.Cell {
	if !r.need(4) {
		return cell.Cell{}
	}
	cp := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	id := r.u32()
	flags := r.byte()
	return cell.Cell{CodePoint: rune(cp), StyleID: id, Flags: cell.Flags(flags)}
}

func (r *reader) row() []cell.Cell {
	n := r.u32()
	row := make([]cell.Cell, 0, n)
	for i := uint32(0); i < n; i++ {
		row = append(row, r.cellValue())
	}
	return row
}

func (r *reader) update() update.Update {
	kind := update.Kind(r.byte())
	seq := r.u64()
	switch kind {
	case update.KindCell:
		row := r.u64()
		col := r.u64()
		c := r.cellValue()
		return update.NewCell(seq, row, int(col), c)
	case update.KindRowSegment:
		row := r.u64()
		startCol := int(r.u32())
		cells := r.row()
		return update.NewRowSegment(seq, row, startCol, cells)
	case update.KindRow:
		row := r.u64()
		_ = r.u32() // startCol unused for full rows, present for symmetry
		cells := r.row()
		return update.NewRow(seq, row, cells)
	case update.KindRect:
		start := r.u64()
		end := r.u64()
		colStart := int(r.u32())
		colEnd := int(r.u32())
		fill := r.cellValue()
		return update.NewRect(seq, update.RowRange{Start: start, End: end}, update.ColRange{Start: colStart, End: colEnd}, fill)
	case update.KindStyle:
		id := r.u32()
		def := r.style()
		return update.NewStyle(seq, id, def)
	case update.KindTrim:
		floor := r.u64()
		return update.NewTrim(seq, floor)
	}
	return update.Update{}
}
