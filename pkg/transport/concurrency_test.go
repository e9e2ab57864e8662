package transport

import (
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"github.com/beach-sh/beach/pkg/wire"
)

// connectLoopback wires two in-process Transports together by trickling
// each side's locally gathered ICE candidates straight to the other,
// without a signaling broker, and blocks until both data channels report
// open. This is the harness other in-process WebRTC tests in this
// package build on for anything that needs a live data channel rather
// than just the pre-open error paths already covered in webrtc_test.go.
func connectLoopback(t *testing.T) (offerer, answerer *Transport) {
	t.Helper()
	ctx := testContext(t)

	offerer, offerSDP, err := NewOfferer(ctx, Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = offerer.Close() })

	answerer, answerSDP, err := NewAnswerer(ctx, Config{}, offerSDP)
	require.NoError(t, err)
	t.Cleanup(func() { _ = answerer.Close() })

	offerer.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		_ = answerer.AddICECandidate(c.ToJSON())
	})
	answerer.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		_ = offerer.AddICECandidate(c.ToJSON())
	})

	require.NoError(t, offerer.SetRemoteDescription(answerSDP))

	require.Eventually(t, func() bool {
		return isOpen(offerer) && isOpen(answerer)
	}, 10*time.Second, 10*time.Millisecond, "data channel never opened")

	return offerer, answerer
}

func isOpen(t *Transport) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// TestOutboundWorkerServesConcurrentSendersWithoutLoss is the regression
// test for the lost-waker pathology documented in the package doc
// comment: pion's SCTP association can silently drop a send when
// DataChannel.Send is called from more than one goroutine at a time.
// Every SendFrame call here races against every other from N goroutines;
// since outboundWorker is the only goroutine that ever calls dc.Send,
// none should be lost.
func TestOutboundWorkerServesConcurrentSendersWithoutLoss(t *testing.T) {
	offerer, answerer := connectLoopback(t)

	const n = 64
	received := make(chan uint64, n)
	answerer.OnFrame(func(f wire.Frame) {
		if f.Kind == wire.FrameInput {
			received <- f.Input.Seq
		}
	})

	var wg sync.WaitGroup
	for i := uint64(0); i < n; i++ {
		wg.Add(1)
		go func(seq uint64) {
			defer wg.Done()
			err := offerer.SendFrame(wire.Frame{Kind: wire.FrameInput, Input: wire.Input{Seq: seq, Data: []byte("x")}})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool, n)
	timeout := time.After(10 * time.Second)
	for len(seen) < n {
		select {
		case seq := <-received:
			seen[seq] = true
		case <-timeout:
			t.Fatalf("only received %d/%d frames before timeout", len(seen), n)
		}
	}
	require.Len(t, seen, n)
}
