// Package grid implements Beach's absolute, append-only row storage
// (spec §3, §4.B): a ring-buffered sequence of rows keyed by
// session-absolute row index, plus a bounded log of the updates that
// produced them, which the synchronization engine (pkg/sync) walks per
// subscriber.
package grid

import (
	"sync"

	"github.com/beach-sh/beach/pkg/cell"
	"github.com/beach-sh/beach/pkg/update"
)

// DefaultHistoryLimit is the default retention ring capacity in rows.
const DefaultHistoryLimit = 100_000

// defaultMaxAbsoluteRow guards against a runaway emulator writing rows
// far beyond any plausible session length; exceeding it is always a bug
// in the emulator adapter, not user input.
const defaultMaxAbsoluteRow = 1 << 40

// defaultLogCapacity bounds the in-memory update log independently of
// the row ring, since a single row can be rewritten many times (e.g. a
// progress bar) without evicting any rows.
const defaultLogCapacity = 1 << 16

// RowOutOfRange is returned by the write operations when row is beyond
// the configured absolute maximum. The emulator adapter must treat this
// as fatal for the session (spec §4.B).
type RowOutOfRange struct {
	Row, Max uint64
}

func (e RowOutOfRange) Error() string {
	return "grid: row out of range"
}

// Grid is the shared, append-only absolute row store. The emulator
// adapter is its only writer; any number of synchronizers read it
// concurrently. All mutation goes through the exported Write* methods,
// which hold a short exclusive lock; reads hold a short shared lock.
type Grid struct {
	mu sync.RWMutex

	cols         int
	viewportRows int
	historyLimit uint64
	maxRow       uint64

	rowOffset uint64 // lowest retained absolute row index
	nextRow   uint64 // first absolute index not yet written
	ring      []row  // circular buffer, len == historyLimit

	seq uint64 // monotonic update sequence counter

	log        []update.Update // bounded log of emitted updates, oldest first
	logFloor   uint64          // seq of the oldest entry still in log (0 if log empty and seq==0)
	logHead    int             // logical offset into log for the ring-style trim
	pendingTrims []update.Update
}

type row struct {
	cells []cell.Cell
	valid bool
}

// Options configures a new Grid.
type Options struct {
	Cols         int
	ViewportRows int
	HistoryLimit uint64 // 0 uses DefaultHistoryLimit
	MaxRow       uint64 // 0 uses defaultMaxAbsoluteRow
}

// New creates an empty grid with the given column width and retention.
func New(opts Options) *Grid {
	limit := opts.HistoryLimit
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	maxRow := opts.MaxRow
	if maxRow == 0 {
		maxRow = defaultMaxAbsoluteRow
	}
	return &Grid{
		cols:         opts.Cols,
		viewportRows: opts.ViewportRows,
		historyLimit: limit,
		maxRow:       maxRow,
		ring:         make([]row, limit),
		log:          make([]update.Update, 0, defaultLogCapacity),
	}
}

// Cols returns the negotiated terminal column count.
func (g *Grid) Cols() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cols
}

// HistoryLimit returns the configured retention ring capacity in rows.
func (g *Grid) HistoryLimit() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.historyLimit
}

// RowOffset returns the lowest retained absolute row index.
func (g *Grid) RowOffset() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rowOffset
}

// NextRow returns the first absolute index not yet written.
func (g *Grid) NextRow() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nextRow
}

// blankRow returns a freshly allocated row of default cells.
func (g *Grid) blankRow() []cell.Cell {
	cells := make([]cell.Cell, g.cols)
	for i := range cells {
		cells[i] = cell.Default()
	}
	return cells
}

// ensureRow grows the ring so that absoluteRow is addressable, evicting
// and recording trim events as necessary. Caller must hold the write lock.
func (g *Grid) ensureRow(absoluteRow uint64) {
	for absoluteRow >= g.nextRow {
		idx := g.nextRow % g.historyLimit
		g.ring[idx] = row{cells: g.blankRow(), valid: true}
		g.nextRow++

		if g.nextRow-g.rowOffset > g.historyLimit {
			g.rowOffset++
			g.seq++
			trim := update.NewTrim(g.seq, g.rowOffset)
			g.pendingTrims = append(g.pendingTrims, trim)
			g.appendLog(trim)
		}
	}
}

// appendLog records u in the bounded update log, evicting the oldest
// entry when full. Caller must hold the write lock.
func (g *Grid) appendLog(u update.Update) {
	if len(g.log) >= defaultLogCapacity {
		g.log = g.log[1:]
	}
	g.log = append(g.log, u)
}

// WriteCell writes a single cell, per spec §4.B. It is tagged with a
// fresh monotonic sequence number.
func (g *Grid) WriteCell(absoluteRow uint64, col int, c cell.Cell) (update.Update, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if absoluteRow >= g.maxRow {
		return update.Update{}, RowOutOfRange{Row: absoluteRow, Max: g.maxRow}
	}

	g.ensureRow(absoluteRow)

	if absoluteRow < g.rowOffset {
		// Row already evicted by the time this write landed; drop it.
		return update.Update{}, nil
	}

	g.seq++
	c.Seq = g.seq

	idx := absoluteRow % g.historyLimit
	r := g.ring[idx]
	if col >= 0 && col < len(r.cells) {
		if r.cells[col].Seq <= c.Seq {
			r.cells[col] = c
		}
	}
	g.ring[idx] = r

	u := update.NewCell(g.seq, absoluteRow, col, c)
	g.appendLog(u)
	return u, nil
}

// WriteRowSegment writes a contiguous column range of a row.
func (g *Grid) WriteRowSegment(absoluteRow uint64, startCol int, cells []cell.Cell) (update.Update, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if absoluteRow >= g.maxRow {
		return update.Update{}, RowOutOfRange{Row: absoluteRow, Max: g.maxRow}
	}
	g.ensureRow(absoluteRow)
	if absoluteRow < g.rowOffset {
		return update.Update{}, nil
	}

	g.seq++
	idx := absoluteRow % g.historyLimit
	r := g.ring[idx]
	for i, c := range cells {
		col := startCol + i
		if col < 0 || col >= len(r.cells) {
			continue
		}
		c.Seq = g.seq
		if r.cells[col].Seq <= c.Seq {
			r.cells[col] = c
		}
		cells[i] = c
	}
	g.ring[idx] = r

	u := update.NewRowSegment(g.seq, absoluteRow, startCol, cells)
	g.appendLog(u)
	return u, nil
}

// WriteRow replaces an entire row.
func (g *Grid) WriteRow(absoluteRow uint64, cells []cell.Cell) (update.Update, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if absoluteRow >= g.maxRow {
		return update.Update{}, RowOutOfRange{Row: absoluteRow, Max: g.maxRow}
	}
	g.ensureRow(absoluteRow)
	if absoluteRow < g.rowOffset {
		return update.Update{}, nil
	}

	g.seq++
	full := make([]cell.Cell, g.cols)
	copy(full, cells)
	for i := range full {
		full[i].Seq = g.seq
	}
	g.ring[absoluteRow%g.historyLimit] = row{cells: full, valid: true}

	u := update.NewRow(g.seq, absoluteRow, full)
	g.appendLog(u)
	return u, nil
}

// FillRect uniformly fills a rectangular region.
func (g *Grid) FillRect(rows update.RowRange, cols update.ColRange, fill cell.Cell) (update.Update, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if rows.End >= g.maxRow {
		return update.Update{}, RowOutOfRange{Row: rows.End, Max: g.maxRow}
	}
	g.ensureRow(rows.End)

	g.seq++
	fill.Seq = g.seq
	for r := rows.Start; r <= rows.End; r++ {
		if r < g.rowOffset {
			continue
		}
		idx := r % g.historyLimit
		ring := g.ring[idx]
		for c := cols.Start; c <= cols.End && c < len(ring.cells); c++ {
			if c < 0 {
				continue
			}
			if ring.cells[c].Seq <= fill.Seq {
				ring.cells[c] = fill
			}
		}
		g.ring[idx] = ring
	}

	u := update.NewRect(g.seq, rows, cols, fill)
	g.appendLog(u)
	return u, nil
}

// ReadRow returns a copy of the row at absoluteRow, or ok=false if the
// row has been evicted (below RowOffset) or not yet written.
func (g *Grid) ReadRow(absoluteRow uint64) (cells []cell.Cell, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if absoluteRow < g.rowOffset || absoluteRow >= g.nextRow {
		return nil, false
	}
	r := g.ring[absoluteRow%g.historyLimit]
	if !r.valid {
		return nil, false
	}
	out := make([]cell.Cell, len(r.cells))
	copy(out, r.cells)
	return out, true
}

// SnapshotViewport returns the live portion of the grid: the most recent
// ViewportRows rows, along with the absolute index of the first one.
func (g *Grid) SnapshotViewport() (firstRow uint64, rows [][]cell.Cell) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n := uint64(g.viewportRows)
	if n > g.nextRow {
		n = g.nextRow
	}
	first := g.nextRow - n
	if first < g.rowOffset {
		first = g.rowOffset
	}
	return first, g.snapshotRangeLocked(first, g.nextRow-1)
}

// SnapshotRange returns copies of every retained row in [start, end].
func (g *Grid) SnapshotRange(start, end uint64) [][]cell.Cell {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snapshotRangeLocked(start, end)
}

func (g *Grid) snapshotRangeLocked(start, end uint64) [][]cell.Cell {
	if start < g.rowOffset {
		start = g.rowOffset
	}
	if end >= g.nextRow {
		if g.nextRow == 0 {
			return nil
		}
		end = g.nextRow - 1
	}
	if start > end {
		return nil
	}

	out := make([][]cell.Cell, 0, end-start+1)
	for r := start; r <= end; r++ {
		ring := g.ring[r%g.historyLimit]
		cp := make([]cell.Cell, len(ring.cells))
		copy(cp, ring.cells)
		out = append(out, cp)
	}
	return out
}

// SetFloor advances rowOffset to newFloor if it is not already there,
// raising nextRow to the floor if it was below it, without touching the
// row ring itself. A subscriber applies
// this when it receives a Trim update from the host, so its local grid
// mirror's notion of the retained floor matches the host's even if the
// mirror's own write pattern never happened to trigger the same eviction
// (spec §8: no row below the new floor survives on the client).
func (g *Grid) SetFloor(newFloor uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if newFloor > g.rowOffset {
		g.rowOffset = newFloor
	}
	if g.rowOffset > g.nextRow {
		g.nextRow = g.rowOffset
	}
}

// DrainTrimEvents returns and clears any trim events accumulated since
// the last call.
func (g *Grid) DrainTrimEvents() []update.Update {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.pendingTrims) == 0 {
		return nil
	}
	out := g.pendingTrims
	g.pendingTrims = nil
	return out
}

// UpdatesSince returns every logged update with Seq > watermark, in seq
// order, along with ok=false if watermark is older than the oldest
// retained log entry (the caller has fallen too far behind and must
// resync via a fresh snapshot handshake).
func (g *Grid) UpdatesSince(watermark uint64) (updates []update.Update, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(g.log) == 0 {
		return nil, true
	}
	oldest := g.log[0].Seq
	if watermark > 0 && watermark < oldest-1 {
		return nil, false
	}

	out := make([]update.Update, 0)
	for _, u := range g.log {
		if u.Seq > watermark {
			out = append(out, u)
		}
	}
	return out, true
}

// EmitStyle records a Style update in the log without touching any row.
// The emulator adapter calls this immediately before the first reference
// to a newly interned style identifier (spec §4.C step 2).
func (g *Grid) EmitStyle(id uint32, def cell.Style) update.Update {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++
	u := update.NewStyle(g.seq, id, def)
	g.appendLog(u)
	return u
}

// LatestSeq returns the most recent monotonic update sequence assigned.
func (g *Grid) LatestSeq() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.seq
}

// Resize changes the grid's column width, padding or truncating every
// retained row. It does not change row retention; callers adjust
// ViewportRows separately via SetViewportRows.
func (g *Grid) Resize(cols int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cols == g.cols {
		return
	}
	for i := range g.ring {
		if !g.ring[i].valid {
			continue
		}
		resized := make([]cell.Cell, cols)
		for c := range resized {
			resized[c] = cell.Default()
		}
		n := cols
		if len(g.ring[i].cells) < n {
			n = len(g.ring[i].cells)
		}
		copy(resized, g.ring[i].cells[:n])
		g.ring[i].cells = resized
	}
	g.cols = cols
}

// SetViewportRows updates how many trailing rows make up the Foreground
// lane, used when the host operator's own terminal is resized.
func (g *Grid) SetViewportRows(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.viewportRows = n
}

// ViewportRows returns the current Foreground lane height.
func (g *Grid) ViewportRows() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.viewportRows
}
