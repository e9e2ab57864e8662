package sync

import (
	"github.com/beach-sh/beach/pkg/cell"
	"github.com/beach-sh/beach/pkg/grid"
	"github.com/beach-sh/beach/pkg/update"
	"github.com/beach-sh/beach/pkg/wire"
)

// DefaultBudget bounds the total update.Cost a single Tick may send to
// one subscriber, so one slow viewer catching up on history never
// starves the delta stream of every other viewer sharing the host's
// send loop (spec §4.D budget enforcement).
const DefaultBudget = 4096

// Synchronizer drains one Grid's rows and update log into per-subscriber
// frames, respecting lane priority and a per-tick cost budget. One
// Synchronizer is shared read-only across all subscribers of a session;
// all mutable progress lives on each Subscriber's lane cursors.
type Synchronizer struct {
	grid   *grid.Grid
	styles *cell.StyleTable
	budget int
}

// New returns a Synchronizer over g and styles with the default budget.
func New(g *grid.Grid, styles *cell.StyleTable) *Synchronizer {
	return &Synchronizer{grid: g, styles: styles, budget: DefaultBudget}
}

// WithBudget overrides the per-tick cost budget, primarily for tests.
func (s *Synchronizer) WithBudget(budget int) *Synchronizer {
	s.budget = budget
	return s
}

func subClamp(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// establishLaneBounds computes (once per snapshot cycle) the absolute
// row range each lane owns, from most recent (Foreground) to oldest
// (History). Bounds are fixed for the duration of the snapshot so the
// lane has a well-defined finish line even as the grid keeps growing
// underneath it.
func (s *Synchronizer) establishLaneBounds(sub *Subscriber) {
	off := s.grid.RowOffset()
	next := s.grid.NextRow()
	viewportRows := uint64(s.grid.ViewportRows())

	fgStart := subClamp(next, viewportRows)
	if fgStart < off {
		fgStart = off
	}
	fgEnd := subClamp(next, 1)

	recentStart := subClamp(fgStart, RecentRowSpan)
	if recentStart < off {
		recentStart = off
	}
	recentEnd := subClamp(fgStart, 1)

	histStart := off
	histEnd := subClamp(recentStart, 1)

	bounds := [laneCount]Bounds{
		LaneForeground: {Start: fgStart, End: fgEnd},
		LaneRecent:     {Start: recentStart, End: recentEnd},
		LaneHistory:    {Start: histStart, End: histEnd},
	}
	if recentStart >= fgStart {
		bounds[LaneRecent] = Bounds{Start: 1, End: 0}
	}
	if histStart >= recentStart {
		bounds[LaneHistory] = Bounds{Start: 1, End: 0}
	}
	for lane := range bounds {
		c := &sub.lanes[lane]
		c.Bounds = bounds[lane]
		c.nextRow = bounds[lane].Start
		c.snapshotDone = bounds[lane].Empty()
	}
}

func (s *Subscriber) allLanesSnapshotted() bool {
	for i := range s.lanes {
		if !s.lanes[i].snapshotDone {
			return false
		}
	}
	return true
}

// Tick advances sub's synchronization state by at most one budget's
// worth of work: either more of an in-progress lane snapshot, or (once
// every lane is caught up) the next batch of ordinary deltas.
func (s *Synchronizer) Tick(sub *Subscriber) error {
	if sub.resetPending {
		sub.lanes = [laneCount]LaneCursor{}
		sub.postSnapshotWatermark = 0
		sub.boundsEstablished = false
		sub.handshakeComplete = false
		sub.resetPending = false
	}

	if !sub.boundsEstablished {
		s.establishLaneBounds(sub)
		sub.boundsEstablished = true
		for lane := range sub.lanes {
			if sub.lanes[lane].Bounds.Empty() {
				if err := sub.Sink.SendFrame(wire.Frame{Kind: wire.FrameSnapshotComplete, SnapshotDone: wire.SnapshotComplete{Lane: uint8(lane)}}); err != nil {
					return err
				}
			}
		}
	}

	for lane := 0; lane < laneCount; lane++ {
		c := &sub.lanes[lane]
		if c.snapshotDone {
			continue
		}
		return s.sendSnapshotChunk(sub, Lane(lane), c)
	}

	sub.handshakeComplete = true
	return s.sendDeltas(sub)
}

func (s *Synchronizer) sendSnapshotChunk(sub *Subscriber, lane Lane, c *LaneCursor) error {
	spent := 0
	start := c.nextRow
	var rows [][]cell.Cell
	row := start
	for row <= c.Bounds.End && spent < s.budget {
		cells, ok := s.grid.ReadRow(row)
		if ok {
			rows = append(rows, cells)
			spent += len(cells)
		}
		row++
	}
	c.nextRow = row

	styleDefs := s.collectStyles(rows)

	if len(rows) > 0 || start <= c.Bounds.End {
		if err := sub.Sink.SendFrame(wire.Frame{
			Kind: wire.FrameSnapshotChunk,
			SnapshotChunk: wire.SnapshotChunk{
				Lane:     uint8(lane),
				FirstRow: start,
				Rows:     rows,
				Styles:   styleDefs,
			},
		}); err != nil {
			return err
		}
	}

	if c.nextRow > c.Bounds.End {
		c.snapshotDone = true
		if err := sub.Sink.SendFrame(wire.Frame{Kind: wire.FrameSnapshotComplete, SnapshotDone: wire.SnapshotComplete{Lane: uint8(lane)}}); err != nil {
			return err
		}
		if lane == LaneForeground {
			sub.postSnapshotWatermark = s.grid.LatestSeq()
		}
	}
	return nil
}

// collectStyles resolves the distinct style identifiers referenced by
// rows into their definitions, so a subscriber's fresh StyleTable can be
// seeded without waiting for an independent Style update to arrive.
func (s *Synchronizer) collectStyles(rows [][]cell.Cell) []wire.StyleDef {
	seen := make(map[uint32]bool)
	var defs []wire.StyleDef
	for _, row := range rows {
		for _, c := range row {
			if c.StyleID == cell.DefaultStyleID || seen[c.StyleID] {
				continue
			}
			seen[c.StyleID] = true
			def, err := s.styles.ByID(c.StyleID)
			if err != nil {
				continue
			}
			defs = append(defs, wire.StyleDef{ID: c.StyleID, Def: def})
		}
	}
	return defs
}

// sendDeltas forwards ordinary grid mutations logged since sub's
// watermark, in lane-agnostic order (spec §4.D: once every lane has
// snapshotted, subsequent mutations simply ride the live stream).
// If the subscriber has fallen behind the retained log window, it is
// reset to re-snapshot from scratch rather than silently miss updates.
func (s *Synchronizer) sendDeltas(sub *Subscriber) error {
	updates, ok := s.grid.UpdatesSince(sub.postSnapshotWatermark)
	if !ok {
		sub.Reset()
		return nil
	}
	if len(updates) == 0 {
		return nil
	}

	batch := make([]update.Update, 0, len(updates))
	spent := 0
	for _, u := range updates {
		cost := u.Cost()
		if spent > 0 && spent+cost > s.budget {
			break
		}
		batch = append(batch, u)
		spent += cost
		sub.postSnapshotWatermark = u.Seq
	}

	return sub.Sink.SendFrame(wire.Frame{Kind: wire.FrameDelta, Delta: wire.Delta{Lane: uint8(LaneForeground), Updates: batch}})
}
