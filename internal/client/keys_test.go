package client

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

func TestKeyToBytesTranslatesPrintableRunes(t *testing.T) {
	got := keyToBytes(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hi")})
	require.Equal(t, []byte("hi"), got)
}

func TestKeyToBytesTranslatesArrowKeys(t *testing.T) {
	require.Equal(t, []byte("\x1b[A"), keyToBytes(tea.KeyMsg{Type: tea.KeyUp}))
	require.Equal(t, []byte("\x1b[B"), keyToBytes(tea.KeyMsg{Type: tea.KeyDown}))
}

func TestKeyToBytesTranslatesEnterAndBackspace(t *testing.T) {
	require.Equal(t, []byte{'\r'}, keyToBytes(tea.KeyMsg{Type: tea.KeyEnter}))
	require.Equal(t, []byte{0x7f}, keyToBytes(tea.KeyMsg{Type: tea.KeyBackspace}))
}

func TestKeyToBytesTranslatesCtrlLetterToControlCode(t *testing.T) {
	got := keyToBytes(tea.KeyMsg{Type: tea.KeyCtrlA})
	require.Equal(t, []byte{0x01}, got)
}
