package client

// ViewportMode selects how the client interprets scroll input and which
// rows the renderer draws (spec §4.H).
type ViewportMode int

const (
	// ModeTail always renders the grid's live tail; scrolling switches
	// to ModeScrolled.
	ModeTail ViewportMode = iota
	// ModeScrolled pins the view to an absolute row the viewer scrolled
	// to, independent of new output arriving below it.
	ModeScrolled
	// ModeCopyMode is ModeScrolled plus an active selection cursor and
	// tmux-compatible keybindings for moving and yanking text.
	ModeCopyMode
)

// Viewport tracks which absolute row is drawn at the top of the screen
// and which mode governs scroll/selection input.
type Viewport struct {
	Mode ViewportMode
	Top  uint64 // absolute row index at screen row 0, meaningful outside ModeTail
}
