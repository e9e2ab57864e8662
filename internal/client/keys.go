package client

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// keyToBytes translates a bubbletea key event into the raw byte sequence a
// real terminal would have sent the PTY, since the host only ever speaks
// in terms of bytes written to its PTY master (spec §4.G input channel).
func keyToBytes(msg tea.KeyMsg) []byte {
	switch msg.Type {
	case tea.KeyRunes:
		return []byte(string(msg.Runes))
	case tea.KeySpace:
		return []byte{' '}
	case tea.KeyEnter:
		return []byte{'\r'}
	case tea.KeyTab:
		return []byte{'\t'}
	case tea.KeyBackspace:
		return []byte{0x7f}
	case tea.KeyEsc:
		return []byte{0x1b}
	case tea.KeyUp:
		return []byte("\x1b[A")
	case tea.KeyDown:
		return []byte("\x1b[B")
	case tea.KeyRight:
		return []byte("\x1b[C")
	case tea.KeyLeft:
		return []byte("\x1b[D")
	case tea.KeyHome:
		return []byte("\x1b[H")
	case tea.KeyEnd:
		return []byte("\x1b[F")
	case tea.KeyPgUp:
		return []byte("\x1b[5~")
	case tea.KeyPgDown:
		return []byte("\x1b[6~")
	case tea.KeyDelete:
		return []byte("\x1b[3~")
	}

	// Ctrl+letter combinations map to their ASCII control code (ctrl+a ==
	// 0x01 through ctrl+z == 0x1a), the same translation a real terminal
	// driver performs before the PTY ever sees the byte.
	s := msg.String()
	if strings.HasPrefix(s, "ctrl+") && len(s) == 6 {
		letter := s[5]
		if letter >= 'a' && letter <= 'z' {
			return []byte{letter - 'a' + 1}
		}
	}
	return nil
}
