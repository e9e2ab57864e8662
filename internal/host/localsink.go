package host

import "github.com/beach-sh/beach/pkg/wire"

// LocalSink implements beachsync.Sink over a Go channel instead of a data
// channel, giving an in-process preview viewer the exact same
// synchronizer/lane contract as a remote WebRTC subscriber (spec §4.H),
// grounded in the teacher's own dual-path delivery split between its
// processed and raw PTY output callbacks.
type LocalSink struct {
	frames chan wire.Frame
}

// NewLocalSink returns a LocalSink buffering up to capacity frames before
// SendFrame starts dropping, since a stalled local preview must never
// block the host's tick loop.
func NewLocalSink(capacity int) *LocalSink {
	if capacity <= 0 {
		capacity = 256
	}
	return &LocalSink{frames: make(chan wire.Frame, capacity)}
}

// SendFrame enqueues f, dropping it if the preview consumer has fallen
// behind rather than blocking the host's tick loop.
func (s *LocalSink) SendFrame(f wire.Frame) error {
	select {
	case s.frames <- f:
	default:
	}
	return nil
}

// Frames returns the channel the local preview consumer reads from.
func (s *LocalSink) Frames() <-chan wire.Frame { return s.frames }
