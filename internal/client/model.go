// Package client implements Beach's bubbletea-based viewer TUI (spec
// §4.H, §4.I): an absolute-indexed ring-buffer renderer with Tail,
// Scrolled, and CopyMode viewport states, predictive echo, and OS
// clipboard integration, built the way wandb-catnip's TUI layers a
// Model/View pair over bubbletea.
package client

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/beach-sh/beach/internal/beacherr"
	"github.com/beach-sh/beach/internal/clipboard"
	"github.com/beach-sh/beach/pkg/cell"
	"github.com/beach-sh/beach/pkg/grid"
	"github.com/beach-sh/beach/pkg/update"
	"github.com/beach-sh/beach/pkg/wire"
)

// Sender is the narrow interface the model uses to push Input/Resize
// frames back to the host; pkg/transport's Transport satisfies it.
type Sender interface {
	SendFrame(f wire.Frame) error
}

// ConnectionState summarizes the data channel's lifecycle for the status
// line.
type ConnectionState int

const (
	StateConnecting ConnectionState = iota
	StateSyncing
	StateLive
	StateReconnecting
	StateDisconnected
)

// Model is the bubbletea root model for the viewer TUI.
type Model struct {
	sender Sender
	clip   clipboard.Clipboard

	grid   *grid.Grid
	styles *cell.StyleTable

	width, height int

	viewport Viewport
	copy     *CopyMode
	predict  *Predictive

	connState  ConnectionState
	statusText string

	laneDone [3]bool

	inputSeq uint64

	bracketedPaste bool

	quitting bool

	// Err is set when applyFrame encounters a fatal protocol condition
	// (e.g. a Hello version mismatch); the caller checks it once
	// tea.Program.Run returns.
	Err error
}

// NewModel builds a viewer Model bound to a fresh local grid mirror of
// cols x historyLimit and the given Sender for outbound frames.
func NewModel(sender Sender, clip clipboard.Clipboard, cols, rows int, historyLimit uint64) *Model {
	g := grid.New(grid.Options{Cols: cols, ViewportRows: rows, HistoryLimit: historyLimit})
	styles := cell.NewStyleTable()
	return &Model{
		sender:    sender,
		clip:      clip,
		grid:      g,
		styles:    styles,
		width:     cols,
		height:    rows,
		viewport:  Viewport{Mode: ModeTail},
		predict:   NewPredictive(),
		connState: StateConnecting,
	}
}

// Init satisfies tea.Model.
func (m *Model) Init() tea.Cmd { return nil }

// FrameMsg wraps an inbound wire.Frame for the bubbletea update loop.
type FrameMsg struct{ Frame wire.Frame }

// ConnStateMsg reports a transport connection state transition.
type ConnStateMsg struct{ State ConnectionState }

// Update satisfies tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if m.sender != nil {
			_ = m.sender.SendFrame(wire.Frame{Kind: wire.FrameResize, Resize: wire.Resize{Cols: uint32(msg.Width), Rows: uint32(msg.Height)}})
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case FrameMsg:
		return m, m.applyFrame(msg.Frame)
	case ConnStateMsg:
		m.connState = msg.State
		return m, nil
	}
	return m, nil
}

// View satisfies tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	return m.render()
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.copy != nil {
		return m.handleCopyModeKey(msg)
	}

	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "ctrl+b":
		m.enterCopyMode()
		return m, nil
	case "pgup":
		m.scrollUp(m.height)
		return m, nil
	case "pgdown":
		m.scrollDown(m.height)
		return m, nil
	}

	return m, m.sendInput([]byte(keyToBytes(msg)))
}

// sendInput forwards raw bytes to the host, records them as pending
// predictions until the host's InputAck, and returns a tea.Cmd that performs
// the actual network send so Update itself stays side-effect-light.
func (m *Model) sendInput(data []byte) tea.Cmd {
	if len(data) == 0 || m.sender == nil {
		return nil
	}
	m.inputSeq++
	seq := m.inputSeq
	m.predict.Record(seq, data, time.Now())

	return func() tea.Msg {
		_ = m.sender.SendFrame(wire.Frame{Kind: wire.FrameInput, Input: wire.Input{Seq: seq, Data: data}})
		return nil
	}
}

// applyFrame folds one inbound wire.Frame into the local grid mirror,
// style table, and connection/lane bookkeeping. It returns a tea.Cmd for
// the rare frame that needs to act on the bubbletea runtime directly
// (currently only a fatal Hello version mismatch).
func (m *Model) applyFrame(f wire.Frame) tea.Cmd {
	switch f.Kind {
	case wire.FrameHello:
		return m.applyHello(f.Hello)
	case wire.FrameGrid:
		m.grid.Resize(int(f.Grid.Cols))
		m.grid.SetViewportRows(int(f.Grid.Rows))
	case wire.FrameSnapshotChunk:
		for _, s := range f.SnapshotChunk.Styles {
			m.styles.Define(s.ID, s.Def)
		}
		for i, row := range f.SnapshotChunk.Rows {
			_, _ = m.grid.WriteRow(f.SnapshotChunk.FirstRow+uint64(i), row)
		}
	case wire.FrameSnapshotComplete:
		if int(f.SnapshotDone.Lane) < len(m.laneDone) {
			m.laneDone[f.SnapshotDone.Lane] = true
		}
		if m.allLanesDone() {
			m.connState = StateLive
		}
	case wire.FrameDelta:
		m.applyDelta(f.Delta)
	case wire.FrameInputAck:
		m.predict.Ack(f.InputAck.Seq)
	}
	return nil
}

// applyHello validates the host's protocol version advertisement, the
// first frame the host sends to a new subscriber (spec §6 handshake). A mismatch is fatal per spec §7: the client surfaces it on
// the status line and quits rather than risk misinterpreting a wire
// format it doesn't speak.
func (m *Model) applyHello(h wire.Hello) tea.Cmd {
	if h.ProtocolVersion != wire.Version {
		m.Err = fmt.Errorf("client: host speaks protocol version %d, client wants %d: %w",
			h.ProtocolVersion, wire.Version, beacherr.KindProtocolVersionMismatch)
		m.SetStatusText("version mismatch: please update")
		m.quitting = true
		return tea.Quit
	}
	return nil
}

func (m *Model) allLanesDone() bool {
	for _, done := range m.laneDone {
		if !done {
			return false
		}
	}
	return true
}

func (m *Model) applyDelta(d wire.Delta) {
	for _, u := range d.Updates {
		switch u.Kind {
		case update.KindCell:
			_, _ = m.grid.WriteCell(u.Row, u.ColOf(), u.Cell)
		case update.KindRowSegment:
			_, _ = m.grid.WriteRowSegment(u.Row, u.StartCol, u.Cells)
		case update.KindRow:
			_, _ = m.grid.WriteRow(u.Row, u.Cells)
		case update.KindRect:
			_, _ = m.grid.FillRect(u.RowRange, u.ColRange, u.Cell)
		case update.KindStyle:
			m.styles.Define(u.StyleID, u.StyleDef)
		case update.KindTrim:
			m.applyTrim(u.NewFloor)
		}
	}
}

// applyTrim advances the local grid mirror's floor to match a Trim
// update from the host, clamps any viewport/copy-mode cursor state that
// now points below the floor, and surfaces the change on the status
// line (spec §8: no row below the new floor survives on the client).
func (m *Model) applyTrim(newFloor uint64) {
	m.grid.SetFloor(newFloor)

	if m.viewport.Top < newFloor {
		m.viewport.Top = newFloor
	}
	if m.copy != nil {
		if m.copy.CursorRow < newFloor {
			m.copy.CursorRow = newFloor
		}
		if m.copy.AnchorRow < newFloor {
			m.copy.AnchorRow = newFloor
		}
	}
	m.SetStatusText("history trimmed")
}

func (m *Model) scrollUp(n int) {
	if m.viewport.Mode == ModeTail {
		m.viewport.Top = tailStart(m.grid)
	}
	m.viewport.Mode = ModeScrolled
	if m.viewport.Top < uint64(n) {
		m.viewport.Top = m.grid.RowOffset()
		return
	}
	m.viewport.Top -= uint64(n)
	if m.viewport.Top < m.grid.RowOffset() {
		m.viewport.Top = m.grid.RowOffset()
	}
}

func (m *Model) scrollDown(n int) {
	m.viewport.Top += uint64(n)
	tailStart := tailStart(m.grid)
	if m.viewport.Top >= tailStart {
		m.viewport.Mode = ModeTail
		m.viewport.Top = tailStart
	}
}

func tailStart(g *grid.Grid) uint64 {
	next := g.NextRow()
	rows := uint64(g.ViewportRows())
	if next < rows {
		return g.RowOffset()
	}
	return next - rows
}
