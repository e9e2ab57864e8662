package wire

import (
	"encoding/binary"
	"fmt"
)

// MaxChunkPayload is conservatively below SCTP's ~16KiB per-message
// ceiling (spec §4.E), leaving room for the envelope header and any
// intermediate transport overhead.
const MaxChunkPayload = 15 * 1024

const (
	envelopeSingle byte = 0x00
	envelopeChunk  byte = 0xFF
)

// ErrBadEnvelope is returned when a received buffer's outer envelope
// byte or chunk header does not parse.
type ErrBadEnvelope struct{ Reason string }

func (e ErrBadEnvelope) Error() string { return "wire: bad envelope: " + e.Reason }

// WrapSingle wraps a frame body small enough to send in one data channel
// message.
func WrapSingle(body []byte) []byte {
	out := make([]byte, 0, len(body)+1)
	out = append(out, envelopeSingle)
	return append(out, body...)
}

// Chunks splits body into one or more envelope-wrapped messages no
// larger than MaxChunkPayload each, tagged with messageID so the
// receiver can reassemble them regardless of interleaving with other
// messages on the same channel.
func Chunks(messageID uint32, body []byte) [][]byte {
	if len(body) <= MaxChunkPayload {
		return [][]byte{WrapSingle(body)}
	}

	var chunks [][]byte
	total := (len(body) + MaxChunkPayload - 1) / MaxChunkPayload
	for i := 0; i < total; i++ {
		start := i * MaxChunkPayload
		end := start + MaxChunkPayload
		if end > len(body) {
			end = len(body)
		}
		header := make([]byte, 9)
		header[0] = envelopeChunk
		binary.BigEndian.PutUint32(header[1:5], messageID)
		binary.BigEndian.PutUint16(header[5:7], uint16(i))
		binary.BigEndian.PutUint16(header[7:9], uint16(total))
		chunks = append(chunks, append(header, body[start:end]...))
	}
	return chunks
}

// Reassembler accumulates chunk envelopes across multiple messageIDs and
// yields a complete body once every chunk of a message has arrived.
// An incomplete message's entry stays until its last chunk arrives or
// Evict is called for its messageID.
type Reassembler struct {
	pending map[uint32]*partial
}

type partial struct {
	total int
	have  int
	parts [][]byte
}

// NewReassembler returns an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{pending: make(map[uint32]*partial)}
}

// Feed processes one received envelope-wrapped message. It returns the
// reassembled body and ok=true when msg completes a message (single or
// final chunk); otherwise ok is false and the caller should wait for
// more chunks.
func (r *Reassembler) Feed(msg []byte) (body []byte, ok bool, err error) {
	if len(msg) == 0 {
		return nil, false, ErrBadEnvelope{Reason: "empty message"}
	}
	switch msg[0] {
	case envelopeSingle:
		return msg[1:], true, nil
	case envelopeChunk:
		if len(msg) < 9 {
			return nil, false, ErrBadEnvelope{Reason: "chunk header truncated"}
		}
		messageID := binary.BigEndian.Uint32(msg[1:5])
		index := binary.BigEndian.Uint16(msg[5:7])
		total := binary.BigEndian.Uint16(msg[7:9])
		payload := msg[9:]

		p, exists := r.pending[messageID]
		if !exists {
			p = &partial{total: int(total), parts: make([][]byte, total)}
			r.pending[messageID] = p
		}
		if int(index) >= len(p.parts) {
			return nil, false, ErrBadEnvelope{Reason: fmt.Sprintf("chunk index %d out of range for total %d", index, total)}
		}
		if p.parts[index] == nil {
			p.have++
		}
		p.parts[index] = payload

		if p.have < p.total {
			return nil, false, nil
		}

		full := make([]byte, 0)
		for _, part := range p.parts {
			full = append(full, part...)
		}
		delete(r.pending, messageID)
		return full, true, nil
	default:
		return nil, false, ErrBadEnvelope{Reason: fmt.Sprintf("unknown envelope byte 0x%02x", msg[0])}
	}
}

// Evict drops any in-flight reassembly state for messageID.
func (r *Reassembler) Evict(messageID uint32) {
	delete(r.pending, messageID)
}

// Pending reports how many messages are partially reassembled, exposed
// for the diagnostics endpoint.
func (r *Reassembler) Pending() int { return len(r.pending) }
