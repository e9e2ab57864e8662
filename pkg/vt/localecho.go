package vt

// LocalEchoRing is the small FIFO of bytes recently typed into the local
// stdin forwarder (spec §4.C). When PTY output begins with bytes that
// match the head of the ring, those bytes are consumed and stripped from
// local-stdout mirroring only — the emulator's grid always sees the
// shell's real output.
type LocalEchoRing struct {
	buf []byte
}

// NewLocalEchoRing returns an empty ring.
func NewLocalEchoRing() *LocalEchoRing {
	return &LocalEchoRing{}
}

// Record appends locally typed bytes awaiting an echo from the shell.
func (r *LocalEchoRing) Record(b []byte) {
	r.buf = append(r.buf, b...)
}

// Consume strips the longest prefix of data that matches the head of the
// ring and removes that many bytes from the ring. It returns the
// remaining bytes of data that should still be mirrored to local stdout.
func (r *LocalEchoRing) Consume(data []byte) []byte {
	n := 0
	for n < len(data) && n < len(r.buf) && data[n] == r.buf[n] {
		n++
	}
	if n == 0 {
		return data
	}
	r.buf = r.buf[n:]
	return data[n:]
}

// Len reports how many unmatched bytes remain in the ring.
func (r *LocalEchoRing) Len() int { return len(r.buf) }
