package transport

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

func TestMapStateCoversAllPionStates(t *testing.T) {
	cases := map[webrtc.PeerConnectionState]State{
		webrtc.PeerConnectionStateNew:          StateNew,
		webrtc.PeerConnectionStateConnecting:   StateConnecting,
		webrtc.PeerConnectionStateConnected:    StateConnected,
		webrtc.PeerConnectionStateDisconnected: StateDisconnected,
		webrtc.PeerConnectionStateFailed:       StateFailed,
		webrtc.PeerConnectionStateClosed:       StateClosed,
	}
	for in, want := range cases {
		require.Equal(t, want, mapState(in))
	}
}

func TestSendFrameBeforeOpenReturnsErrNotOpen(t *testing.T) {
	transport, _, err := NewOfferer(testContext(t), Config{})
	require.NoError(t, err)
	defer transport.Close()

	err = transport.SendFrame(helloFrame())
	require.ErrorIs(t, err, ErrNotOpen)
}

func TestSendFrameAfterCloseReturnsErrClosed(t *testing.T) {
	transport, _, err := NewOfferer(testContext(t), Config{})
	require.NoError(t, err)
	require.NoError(t, transport.Close())

	err = transport.SendFrame(helloFrame())
	require.ErrorIs(t, err, ErrClosed)
}
