package host

import (
	"context"
	"testing"
	"time"

	"github.com/beach-sh/beach/pkg/wire"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	frames []wire.Frame
}

func (s *recordingSink) SendFrame(f wire.Frame) error {
	s.frames = append(s.frames, f)
	return nil
}

func TestHostStreamsShellOutputToSubscriber(t *testing.T) {
	h, err := New(Options{Shell: "/bin/sh", Args: []string{"-c", "printf hi"}, Cols: 20, Rows: 5})
	require.NoError(t, err)
	defer h.Close()

	sink := &recordingSink{}
	h.AddSubscriber("v1", sink)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_ = h.Run(ctx)

	require.NotEmpty(t, sink.frames)
}

func TestAddSubscriberSendsHelloThenGrid(t *testing.T) {
	h, err := New(Options{SessionID: "sess-1", Shell: "/bin/sh", Args: []string{"-c", "sleep 1"}, Cols: 20, Rows: 5})
	require.NoError(t, err)
	defer h.Close()

	sink := &recordingSink{}
	h.AddSubscriber("v1", sink)

	require.Len(t, sink.frames, 2)
	require.Equal(t, wire.FrameHello, sink.frames[0].Kind)
	require.Equal(t, "sess-1", sink.frames[0].Hello.SessionID)
	require.Equal(t, wire.Version, sink.frames[0].Hello.ProtocolVersion)
	require.Equal(t, wire.FrameGrid, sink.frames[1].Kind)
	require.Equal(t, uint32(20), sink.frames[1].Grid.Cols)
	require.Equal(t, uint32(5), sink.frames[1].Grid.Rows)
}

func TestResizePropagatesGridInfoToSubscribers(t *testing.T) {
	h, err := New(Options{Shell: "/bin/sh", Args: []string{"-c", "sleep 1"}, Cols: 20, Rows: 5})
	require.NoError(t, err)
	defer h.Close()

	sink := &recordingSink{}
	h.AddSubscriber("v1", sink)

	require.NoError(t, h.Resize(40, 10))

	var sawGrid bool
	for _, f := range sink.frames {
		if f.Kind == wire.FrameGrid && f.Grid.Cols == 40 && f.Grid.Rows == 10 {
			sawGrid = true
		}
	}
	require.True(t, sawGrid)
}

func TestResetSubscriberMarksPending(t *testing.T) {
	h, err := New(Options{Shell: "/bin/sh", Args: []string{"-c", "sleep 1"}, Cols: 20, Rows: 5})
	require.NoError(t, err)
	defer h.Close()

	sink := &recordingSink{}
	h.AddSubscriber("v1", sink)
	h.ResetSubscriber("v1")

	handle := h.subscribers["v1"]
	require.NotNil(t, handle)
}
