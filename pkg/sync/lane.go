// Package sync implements Beach's per-subscriber synchronization engine
// (spec §4.D): three priority lanes snapshot once each and then stream
// bounded delta batches, so a slow or newly joined viewer catches up
// without starving foreground updates for everyone else.
package sync

// Lane orders the rows a subscriber receives by priority. Foreground is
// always caught up first so a viewer sees the live screen immediately;
// Recent and History fill in scrollback in the background.
type Lane uint8

const (
	LaneForeground Lane = iota
	LaneRecent
	LaneHistory

	laneCount = int(LaneHistory) + 1
)

// String names a lane for logging.
func (l Lane) String() string {
	switch l {
	case LaneForeground:
		return "foreground"
	case LaneRecent:
		return "recent"
	case LaneHistory:
		return "history"
	default:
		return "unknown"
	}
}

// Bounds describes the absolute row range a lane owns at the moment a
// subscriber's snapshot is taken. Recent and History bounds are computed
// once at snapshot time and held fixed even as the grid keeps growing,
// so the lane has a well-defined finish line (spec §4.D
// snapshot-once-per-lane).
type Bounds struct {
	Start, End uint64 // inclusive; End < Start means empty
}

// Empty reports whether the bounds contain no rows.
func (b Bounds) Empty() bool { return b.End < b.Start }

// RecentRowSpan is how many rows above the foreground viewport the
// Recent lane covers before handing off to History (spec §4.D default:
// the 500 most recent rows above the viewport).
const RecentRowSpan = 500
