// Package clipboard wraps atotto/clipboard for the client's copy-mode
// yank action (spec §4.I) behind a narrow interface so tests can swap in
// a fake instead of touching the OS clipboard.
package clipboard

import "github.com/atotto/clipboard"

// Clipboard reads and writes the OS clipboard.
type Clipboard interface {
	Write(text string) error
	Read() (string, error)
}

// System is the real OS clipboard.
type System struct{}

// Write copies text to the OS clipboard.
func (System) Write(text string) error { return clipboard.WriteAll(text) }

// Read returns the OS clipboard's current text contents.
func (System) Read() (string, error) { return clipboard.ReadAll() }

// Fake is an in-memory Clipboard for tests and headless environments
// where atotto/clipboard has no backend (e.g. CI without xclip/xsel).
type Fake struct {
	Text string
}

// Write stores text in memory.
func (f *Fake) Write(text string) error {
	f.Text = text
	return nil
}

// Read returns the last written text.
func (f *Fake) Read() (string, error) { return f.Text, nil }
