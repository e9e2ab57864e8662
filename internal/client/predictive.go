package client

import "time"

// PredictionTimeout is the age past which Expire drops an
// unacknowledged prediction as stale.
const PredictionTimeout = 500 * time.Millisecond

// prediction is one speculative local echo of typed bytes, pending the
// host's InputAck for the same sequence number.
type prediction struct {
	seq   uint64
	data  []byte
	sent  time.Time
}

// Predictive holds the in-flight predicted-echo queue. Entries are
// retired in order once the host acknowledges input up through their
// sequence number (spec §4.H: InputAck carries a cumulative watermark,
// not a per-keystroke ack).
type Predictive struct {
	pending []prediction
}

// NewPredictive returns an empty predictive-echo queue.
func NewPredictive() *Predictive {
	return &Predictive{}
}

// Record adds a freshly sent input as a pending prediction.
func (p *Predictive) Record(seq uint64, data []byte, now time.Time) {
	cp := make([]byte, len(data))
	copy(cp, data)
	p.pending = append(p.pending, prediction{seq: seq, data: cp, sent: now})
}

// Ack retires every pending prediction with seq <= ack, since the host
// has now applied and echoed them through the real grid.
func (p *Predictive) Ack(ack uint64) {
	i := 0
	for i < len(p.pending) && p.pending[i].seq <= ack {
		i++
	}
	p.pending = p.pending[i:]
}

// Pending returns the bytes of every still-unacknowledged prediction, in
// send order. The renderer does not draw predicted bytes on screen; its
// status bar shows only how many predictions are pending.
func (p *Predictive) Pending() []byte {
	var out []byte
	for _, pr := range p.pending {
		out = append(out, pr.data...)
	}
	return out
}

// Expire drops predictions older than PredictionTimeout relative to now,
// since the renderer should stop trusting a prediction the host has
// suspiciously never acknowledged.
func (p *Predictive) Expire(now time.Time) {
	i := 0
	for i < len(p.pending) && now.Sub(p.pending[i].sent) > PredictionTimeout {
		i++
	}
	p.pending = p.pending[i:]
}
