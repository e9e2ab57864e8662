package vt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParserPrintsPlainASCII(t *testing.T) {
	p := NewParser()
	var got []rune
	p.OnPrint = func(r rune) { got = append(got, r) }

	p.Parse([]byte("hello"))
	require.Equal(t, []rune("hello"), got)
}

func TestParserDecodesMultibyteUTF8(t *testing.T) {
	p := NewParser()
	var got []rune
	p.OnPrint = func(r rune) { got = append(got, r) }

	p.Parse([]byte("héllo 日本語"))
	require.Equal(t, []rune("héllo 日本語"), got)
}

func TestParserExecutesControlBytes(t *testing.T) {
	p := NewParser()
	var got []byte
	p.OnExecute = func(b byte) { got = append(got, b) }

	p.Parse([]byte("\r\n\t"))
	require.Equal(t, []byte("\r\n\t"), got)
}

func TestParserCsiWithParams(t *testing.T) {
	p := NewParser()
	var params []int
	var final byte
	p.OnCsi = func(p_ []int, intermediate []byte, f byte) {
		params = p_
		final = f
	}

	p.Parse([]byte("\x1b[1;31m"))
	require.Equal(t, []int{1, 31}, params)
	require.Equal(t, byte('m'), final)
}

func TestParserCsiPrivateMode(t *testing.T) {
	p := NewParser()
	var intermed []byte
	var final byte
	p.OnCsi = func(params []int, i []byte, f byte) {
		intermed = i
		final = f
	}

	p.Parse([]byte("\x1b[?25l"))
	require.Equal(t, []byte("?"), intermed)
	require.Equal(t, byte('l'), final)
}

func TestParserCsiDefaultParamIsNegativeOne(t *testing.T) {
	p := NewParser()
	var params []int
	p.OnCsi = func(p_ []int, intermediate []byte, f byte) { params = p_ }

	p.Parse([]byte("\x1b[H"))
	require.Equal(t, []int{-1}, params)
}

func TestParserOscSplitsOnSemicolon(t *testing.T) {
	p := NewParser()
	var parts [][]byte
	p.OnOsc = func(p_ [][]byte) { parts = p_ }

	p.Parse([]byte("\x1b]0;window title\x07"))
	require.Len(t, parts, 2)
	require.Equal(t, "0", string(parts[0]))
	require.Equal(t, "window title", string(parts[1]))
}

func TestParserEscapeSequence(t *testing.T) {
	p := NewParser()
	var final byte
	p.OnEscape = func(intermediate []byte, f byte) { final = f }

	p.Parse([]byte("\x1bD"))
	require.Equal(t, byte('D'), final)
}

func TestParserMixedStreamPreservesOrder(t *testing.T) {
	p := NewParser()
	var events []string
	p.OnPrint = func(r rune) { events = append(events, "print:"+string(r)) }
	p.OnCsi = func(params []int, intermediate []byte, f byte) { events = append(events, "csi:"+string(f)) }

	p.Parse([]byte("a\x1b[2Jb"))
	require.Equal(t, []string{"print:a", "csi:J", "print:b"}, events)
}
