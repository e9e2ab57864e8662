package sync

import "github.com/beach-sh/beach/pkg/wire"

// Sink is the minimal transport surface the synchronizer writes frames
// to. pkg/transport's data-channel wrapper implements this; tests use a
// simple in-memory recorder.
type Sink interface {
	SendFrame(f wire.Frame) error
}

// LaneCursor tracks one lane's progress for one subscriber: whether its
// one-time snapshot has completed, the absolute row bounds it owns, and
// (once snapshotting is done) the update-log watermark up to which
// deltas have been sent.
type LaneCursor struct {
	Bounds Bounds

	snapshotDone bool
	nextRow      uint64 // next absolute row to send during snapshotting
	watermark    uint64 // highest update.Seq already sent, once snapshotDone
}

// Done reports whether this lane has finished its one-time snapshot and
// moved on to steady-state delta streaming.
func (c *LaneCursor) Done() bool { return c.snapshotDone }

// Subscriber holds one viewer's per-lane progress and its send sink. The
// synchronizer is the only writer of a Subscriber's cursors; it is not
// safe to share a Subscriber across goroutines without external
// synchronization, matching one synchronizer goroutine per subscriber
// (spec §5).
type Subscriber struct {
	ID    string
	Sink  Sink
	lanes [laneCount]LaneCursor

	boundsEstablished     bool
	postSnapshotWatermark uint64
	resetPending          bool
	handshakeComplete     bool
}

// HandshakeComplete reports whether every lane has finished its initial
// snapshot, i.e. the host has sent Hello, Grid, and a full round of
// snapshot_chunk/snapshot_complete for every lane (spec §6 handshake).
// Once true, the synchronizer only ever sends this subscriber ordinary
// deltas until a Reset restarts the handshake from scratch.
func (s *Subscriber) HandshakeComplete() bool { return s.handshakeComplete }

// NewSubscriber returns a Subscriber with all lanes awaiting their
// initial snapshot.
func NewSubscriber(id string, sink Sink) *Subscriber {
	return &Subscriber{ID: id, Sink: sink}
}

// Reset marks every lane to restart its snapshot from scratch, used when
// the data channel had to be torn down and re-established and the
// client's own state cannot be trusted (spec §4.D reset_subscriber).
func (s *Subscriber) Reset() {
	s.resetPending = true
}
