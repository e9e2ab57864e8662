// Package transport wraps an unreliable WebRTC data channel as the
// delta-sync wire's carrier (spec §4.E, §4.F). Every send, regardless of
// which goroutine produced it, is funneled through one dedicated worker
// goroutine per Transport: pion's SCTP association has a documented
// history of dropping a send when Send is called concurrently from
// multiple goroutines while the association's internal waker is
// mid-flight, so Beach never calls DataChannel.Send from more than one
// place.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"

	"github.com/beach-sh/beach/pkg/wire"
)

// BufferedAmountLowThreshold is the data channel buffered-amount
// watermark below which the outbound worker resumes sending after
// having paused for back-pressure (spec §4.E back-pressure handling).
const BufferedAmountLowThreshold = 1 << 20 // 1 MiB

// BufferedAmountHighWatermark pauses the outbound worker once the
// channel's buffered amount reaches this size, so a slow or stalled
// viewer cannot grow Beach's own memory without bound.
const BufferedAmountHighWatermark = 4 << 20 // 4 MiB

// State mirrors the subset of webrtc.PeerConnectionState the rest of
// Beach needs to observe.
type State string

const (
	StateNew          State = "new"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateFailed       State = "failed"
	StateClosed       State = "closed"
)

// ErrClosed is returned by SendFrame once the transport has been closed.
var ErrClosed = errors.New("transport: closed")

// ErrNotOpen is returned by SendFrame before the data channel has
// reached the open state.
var ErrNotOpen = errors.New("transport: data channel not open")

// Transport wraps one peer connection and its single ordered-false,
// unreliable data channel (spec §4.E: unreliable by design, since a
// dropped delta is superseded by the next snapshot/delta in the same
// lane).
type Transport struct {
	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	reassembler *wire.Reassembler
	messageID   atomic.Uint32

	outbound chan []byte
	bufLow   chan struct{}

	onFrame     func(wire.Frame)
	onStateChg  func(State)
	onICECand   func(*webrtc.ICECandidate)

	closeOnce sync.Once
	closed    chan struct{}

	mu   sync.Mutex
	open bool
}

// Config carries the ICE servers the signaling broker hands out (spec
// §6), forwarded verbatim into webrtc.Configuration.
type Config struct {
	ICEServers []webrtc.ICEServer
}

func newPeerConnection(cfg Config) (*webrtc.PeerConnection, error) {
	api := webrtc.NewAPI()
	return api.NewPeerConnection(webrtc.Configuration{ICEServers: cfg.ICEServers})
}

// NewOfferer creates a peer connection with a fresh outbound data
// channel (the host side always offers, per spec §6) and returns the
// local SDP offer to hand to the signaling broker.
func NewOfferer(ctx context.Context, cfg Config) (*Transport, string, error) {
	pc, err := newPeerConnection(cfg)
	if err != nil {
		return nil, "", fmt.Errorf("transport: new peer connection: %w", err)
	}

	ordered := false
	maxRetransmits := uint16(0)
	dc, err := pc.CreateDataChannel("beach", &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &maxRetransmits,
	})
	if err != nil {
		_ = pc.Close()
		return nil, "", fmt.Errorf("transport: create data channel: %w", err)
	}

	t := newTransport(pc, dc)

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		_ = pc.Close()
		return nil, "", fmt.Errorf("transport: create offer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		_ = pc.Close()
		return nil, "", fmt.Errorf("transport: set local description: %w", err)
	}

	select {
	case <-gatherComplete:
	case <-ctx.Done():
		_ = pc.Close()
		return nil, "", ctx.Err()
	}

	return t, pc.LocalDescription().SDP, nil
}

// NewAnswerer creates a peer connection from a remote offer (the client
// side always answers) and returns the local SDP answer.
func NewAnswerer(ctx context.Context, cfg Config, offerSDP string) (*Transport, string, error) {
	pc, err := newPeerConnection(cfg)
	if err != nil {
		return nil, "", fmt.Errorf("transport: new peer connection: %w", err)
	}

	t := newTransport(pc, nil)

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		t.bindDataChannel(dc)
	})

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerSDP}); err != nil {
		_ = pc.Close()
		return nil, "", fmt.Errorf("transport: set remote description: %w", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		_ = pc.Close()
		return nil, "", fmt.Errorf("transport: create answer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		_ = pc.Close()
		return nil, "", fmt.Errorf("transport: set local description: %w", err)
	}

	select {
	case <-gatherComplete:
	case <-ctx.Done():
		_ = pc.Close()
		return nil, "", ctx.Err()
	}

	return t, pc.LocalDescription().SDP, nil
}

func newTransport(pc *webrtc.PeerConnection, dc *webrtc.DataChannel) *Transport {
	t := &Transport{
		pc:          pc,
		reassembler: wire.NewReassembler(),
		outbound:    make(chan []byte, 256),
		bufLow:      make(chan struct{}, 1),
		closed:      make(chan struct{}),
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		if t.onICECand != nil {
			t.onICECand(c)
		}
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		if t.onStateChg != nil {
			t.onStateChg(mapState(s))
		}
	})

	if dc != nil {
		t.bindDataChannel(dc)
	}

	go t.outboundWorker()
	return t
}

func mapState(s webrtc.PeerConnectionState) State {
	switch s {
	case webrtc.PeerConnectionStateNew:
		return StateNew
	case webrtc.PeerConnectionStateConnecting:
		return StateConnecting
	case webrtc.PeerConnectionStateConnected:
		return StateConnected
	case webrtc.PeerConnectionStateDisconnected:
		return StateDisconnected
	case webrtc.PeerConnectionStateFailed:
		return StateFailed
	case webrtc.PeerConnectionStateClosed:
		return StateClosed
	default:
		return StateNew
	}
}

func (t *Transport) bindDataChannel(dc *webrtc.DataChannel) {
	t.mu.Lock()
	t.dc = dc
	t.mu.Unlock()

	dc.SetBufferedAmountLowThreshold(BufferedAmountLowThreshold)
	dc.OnBufferedAmountLow(func() {
		select {
		case t.bufLow <- struct{}{}:
		default:
		}
	})

	dc.OnOpen(func() {
		t.mu.Lock()
		t.open = true
		t.mu.Unlock()
	})
	dc.OnClose(func() {
		t.mu.Lock()
		t.open = false
		t.mu.Unlock()
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		body, ok, err := t.reassembler.Feed(msg.Data)
		if err != nil || !ok {
			return
		}
		f, err := wire.Decode(body)
		if err != nil {
			return
		}
		if t.onFrame != nil {
			t.onFrame(f)
		}
	})
}

// OnFrame registers the callback invoked for every fully reassembled,
// decoded frame received on the data channel.
func (t *Transport) OnFrame(f func(wire.Frame)) { t.onFrame = f }

// OnStateChange registers the callback invoked on peer connection state
// transitions.
func (t *Transport) OnStateChange(f func(State)) { t.onStateChg = f }

// OnICECandidate registers the callback invoked for each locally
// gathered trickle ICE candidate to forward to the signaling broker.
func (t *Transport) OnICECandidate(f func(*webrtc.ICECandidate)) { t.onICECand = f }

// SetRemoteDescription applies the remote SDP answer (offerer side
// only).
func (t *Transport) SetRemoteDescription(sdp string) error {
	return t.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
}

// AddICECandidate applies one trickled remote ICE candidate.
func (t *Transport) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(candidate)
}

// SendFrame encodes f, chunks it if necessary, and enqueues it on the
// outbound worker. It blocks only while the outbound queue is full;
// ErrClosed/ErrNotOpen surface
// synchronously, everything else is delivered best-effort per the
// unreliable channel's contract.
func (t *Transport) SendFrame(f wire.Frame) error {
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}

	t.mu.Lock()
	open := t.open
	t.mu.Unlock()
	if !open {
		return ErrNotOpen
	}

	body := wire.Encode(f)
	id := t.messageID.Add(1)
	for _, chunk := range wire.Chunks(id, body) {
		select {
		case t.outbound <- chunk:
		case <-t.closed:
			return ErrClosed
		}
	}
	return nil
}

// outboundWorker is the single goroutine permitted to call dc.Send,
// serializing every outbound chunk and honoring buffered-amount
// back-pressure before sending the next one.
func (t *Transport) outboundWorker() {
	for {
		select {
		case <-t.closed:
			return
		case chunk := <-t.outbound:
			t.waitForRoom()
			t.mu.Lock()
			dc := t.dc
			t.mu.Unlock()
			if dc == nil {
				continue
			}
			_ = dc.Send(chunk)
		}
	}
}

func (t *Transport) waitForRoom() {
	t.mu.Lock()
	dc := t.dc
	t.mu.Unlock()
	if dc == nil {
		return
	}
	for dc.BufferedAmount() > BufferedAmountHighWatermark {
		select {
		case <-t.bufLow:
		case <-t.closed:
			return
		}
	}
}

// Close tears down the data channel and peer connection.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		if t.dc != nil {
			err = t.dc.Close()
		}
		if cerr := t.pc.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}

// PendingReassembly reports how many inbound messages are waiting on
// missing chunks, exposed for the diagnostics endpoint.
func (t *Transport) PendingReassembly() int { return t.reassembler.Pending() }
