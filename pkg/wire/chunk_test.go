package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapSingleRoundTrip(t *testing.T) {
	body := []byte("small frame")
	msg := WrapSingle(body)

	r := NewReassembler()
	got, ok, err := r.Feed(msg)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, body, got)
}

func TestChunksSplitsLargeBody(t *testing.T) {
	body := bytes.Repeat([]byte("x"), MaxChunkPayload*3+17)
	chunks := Chunks(1, body)
	require.Len(t, chunks, 4)
}

func TestReassemblerReconstructsOutOfOrderChunks(t *testing.T) {
	body := bytes.Repeat([]byte("y"), MaxChunkPayload*2+5)
	chunks := Chunks(7, body)
	require.Len(t, chunks, 3)

	r := NewReassembler()
	var got []byte
	var ok bool
	for i := len(chunks) - 1; i >= 0; i-- {
		var err error
		got, ok, err = r.Feed(chunks[i])
		require.NoError(t, err)
		if i > 0 {
			require.False(t, ok)
		}
	}
	require.True(t, ok)
	require.Equal(t, body, got)
	require.Equal(t, 0, r.Pending())
}

func TestReassemblerHandlesInterleavedMessages(t *testing.T) {
	bodyA := bytes.Repeat([]byte("a"), MaxChunkPayload+10)
	bodyB := bytes.Repeat([]byte("b"), MaxChunkPayload+10)
	chunksA := Chunks(1, bodyA)
	chunksB := Chunks(2, bodyB)
	require.Len(t, chunksA, 2)
	require.Len(t, chunksB, 2)

	r := NewReassembler()
	_, ok, err := r.Feed(chunksA[0])
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = r.Feed(chunksB[0])
	require.NoError(t, err)
	require.False(t, ok)

	gotA, ok, err := r.Feed(chunksA[1])
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, bodyA, gotA)

	gotB, ok, err := r.Feed(chunksB[1])
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, bodyB, gotB)
}

func TestReassemblerEvictDropsPartialState(t *testing.T) {
	body := bytes.Repeat([]byte("z"), MaxChunkPayload*2)
	chunks := Chunks(9, body)

	r := NewReassembler()
	_, _, _ = r.Feed(chunks[0])
	require.Equal(t, 1, r.Pending())

	r.Evict(9)
	require.Equal(t, 0, r.Pending())
}

func TestReassemblerRejectsBadEnvelope(t *testing.T) {
	r := NewReassembler()
	_, _, err := r.Feed([]byte{0x42})
	require.Error(t, err)
	var bad ErrBadEnvelope
	require.ErrorAs(t, err, &bad)
}
