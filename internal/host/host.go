// Package host implements Beach's host-side runtime (spec §4.G): it owns
// the PTY, feeds its output through the terminal emulator into the
// shared grid, and drives one synchronizer+transport pair per connected
// viewer.
package host

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	stdsync "sync"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"

	"github.com/beach-sh/beach/internal/beacherr"
	"github.com/beach-sh/beach/internal/diag"
	"github.com/beach-sh/beach/internal/logging"
	"github.com/beach-sh/beach/pkg/cell"
	"github.com/beach-sh/beach/pkg/grid"
	beachsync "github.com/beach-sh/beach/pkg/sync"
	"github.com/beach-sh/beach/pkg/vt"
	"github.com/beach-sh/beach/pkg/wire"
)

// TickInterval is how often the host drains the PTY's output buffer into
// the emulator and flushes damage into the grid, and also how often each
// subscriber's synchronizer is ticked.
const TickInterval = 16 * time.Millisecond

// Options configures a Host.
type Options struct {
	SessionID    string
	Shell        string
	Args         []string
	Env          []string
	Cols, Rows   int
	HistoryLimit uint64
}

// Host owns one PTY-backed shell session and the shared grid/style table
// every subscriber synchronizes from.
type Host struct {
	sessionID string
	cmd       *exec.Cmd
	ptyFile   *os.File

	grid         *grid.Grid
	styles       *cell.StyleTable
	emulator     *vt.Emulator
	synchronizer *beachsync.Synchronizer

	mu          stdsync.RWMutex
	subscribers map[string]*subscriberHandle

	counters *logging.Counters

	done chan struct{}
}

// subscriberHandle pairs a beachsync.Subscriber with the sink it writes
// through, so lookups by id don't need to reach into the Subscriber's
// unexported fields.
type subscriberHandle struct {
	sub  *beachsync.Subscriber
	sink beachsync.Sink
}

// New spawns the shell under a PTY and prepares the grid/emulator. It
// does not yet accept subscribers or run the tick loop; call Run for
// that.
func New(opts Options) (*Host, error) {
	if opts.Shell == "" {
		opts.Shell = defaultShell()
	}
	if opts.Cols == 0 {
		opts.Cols = 80
	}
	if opts.Rows == 0 {
		opts.Rows = 24
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}

	cmd := exec.Command(opts.Shell, opts.Args...)
	cmd.Env = opts.Env
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}

	ptyFile, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("host: start pty: %w", beacherr.KindPTYSpawnFailed)
	}
	if err := pty.Setsize(ptyFile, &pty.Winsize{Rows: uint16(opts.Rows), Cols: uint16(opts.Cols)}); err != nil {
		_ = ptyFile.Close()
		return nil, fmt.Errorf("host: set initial pty size: %w", err)
	}

	g := grid.New(grid.Options{Cols: opts.Cols, ViewportRows: opts.Rows, HistoryLimit: opts.HistoryLimit})
	styles := cell.NewStyleTable()
	emulator := vt.NewEmulator(g, styles, opts.Cols, opts.Rows)

	h := &Host{
		sessionID:    opts.SessionID,
		cmd:          cmd,
		ptyFile:      ptyFile,
		grid:         g,
		styles:       styles,
		emulator:     emulator,
		synchronizer: beachsync.New(g, styles),
		subscribers:  make(map[string]*subscriberHandle),
		counters:     &logging.Counters{},
		done:         make(chan struct{}),
	}
	return h, nil
}

func defaultShell() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// AddSubscriber registers a new viewer's sink, sends it Hello followed
// by the current Grid announcement, and lets it begin receiving snapshot
// and delta frames on the next tick (spec §6 handshake: "send Hello,
// then Grid, then loop snapshot_chunk").
func (h *Host) AddSubscriber(id string, sink beachsync.Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[id] = &subscriberHandle{sub: beachsync.NewSubscriber(id, sink), sink: sink}

	_ = sink.SendFrame(wire.Frame{Kind: wire.FrameHello, Hello: wire.Hello{
		ProtocolVersion: wire.Version,
		SessionID:       h.sessionID,
		Role:            "host",
	}})
	_ = sink.SendFrame(wire.Frame{Kind: wire.FrameGrid, Grid: wire.GridInfo{
		Cols:         uint32(h.grid.Cols()),
		Rows:         uint32(h.grid.ViewportRows()),
		HistoryLimit: h.grid.HistoryLimit(),
	}})
}

// RemoveSubscriber drops a viewer, freeing its lane cursors.
func (h *Host) RemoveSubscriber(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, id)
}

// ResetSubscriber forces id to re-snapshot from scratch, used after its
// data channel is torn down and re-established (spec §4.D
// reset_subscriber).
func (h *Host) ResetSubscriber(id string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if handle, ok := h.subscribers[id]; ok {
		handle.sub.Reset()
	}
}

// HandleInput forwards viewer-originated bytes to the PTY.
func (h *Host) HandleInput(data []byte) error {
	_, err := h.ptyFile.Write(data)
	return err
}

// RecordLocalEcho tells the emulator's local-echo ring to expect data to
// be echoed back by the shell, so the host's own terminal does not
// double-print operator-typed input (spec §4.C).
func (h *Host) RecordLocalEcho(data []byte) {
	h.emulator.LocalEchoRing().Record(data)
}

// Resize propagates a new terminal size to the PTY, the emulator, and
// the grid, and announces it to every subscriber.
func (h *Host) Resize(cols, rows int) error {
	if err := pty.Setsize(h.ptyFile, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		return fmt.Errorf("host: resize pty: %w", err)
	}
	h.emulator.Resize(cols, rows)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, handle := range h.subscribers {
		_ = handle.sink.SendFrame(wire.Frame{Kind: wire.FrameGrid, Grid: wire.GridInfo{
			Cols: uint32(cols), Rows: uint32(rows),
		}})
	}
	return nil
}

// Run drives the PTY-read/emulator-flush/subscriber-tick loop until ctx
// is canceled or the shell process exits. It is the Host's main
// goroutine; callers typically run it in its own goroutine and select on
// Done().
func (h *Host) Run(ctx context.Context) error {
	readErrCh := make(chan error, 1)
	go h.readLoop(readErrCh)

	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	if logging.ProfileEnabled() {
		logging.StartProfiling("host", h.counters, 5*time.Second, h.done)
	}

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			return ctx.Err()
		case err := <-readErrCh:
			close(h.done)
			return err
		case <-ticker.C:
			h.tick()
		}
	}
}

// readLoop copies PTY output into the emulator and mirrors unsuppressed
// bytes to the host operator's own stdout, matching vibetunnel's direct
// PTY-output callback model but driven from a blocking read loop instead
// of a callback registry, since Beach has exactly one emulator per host
// session rather than many spawned-session listeners.
func (h *Host) readLoop(errCh chan<- error) {
	buf := make([]byte, 64*1024)
	for {
		n, err := h.ptyFile.Read(buf)
		if n > 0 {
			h.counters.PTYBytesRead.Add(int64(n))
			mirror := h.emulator.Feed(buf[:n])
			if len(mirror) > 0 {
				_, _ = os.Stdout.Write(mirror)
			}
		}
		if err != nil {
			errCh <- err
			return
		}
	}
}

func (h *Host) tick() {
	h.emulator.Flush()
	h.counters.DamageFlushes.Add(1)

	h.mu.RLock()
	handles := make([]*subscriberHandle, 0, len(h.subscribers))
	for _, handle := range h.subscribers {
		handles = append(handles, handle)
	}
	h.mu.RUnlock()

	for _, handle := range handles {
		if err := h.synchronizer.Tick(handle.sub); err == nil {
			h.counters.TransportSends.Add(1)
		}
	}
}

// Status reports a diagnostics snapshot for internal/diag. Each
// SubscriberRow carries only the subscriber's ID; its other fields are
// left at their zero values.
func (h *Host) Status() diag.Status {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rows := make([]diag.SubscriberRow, 0, len(h.subscribers))
	for id := range h.subscribers {
		rows = append(rows, diag.SubscriberRow{ID: id})
	}
	return diag.Status{
		SessionID:   h.sessionID,
		Cols:        h.grid.Cols(),
		Rows:        h.grid.ViewportRows(),
		Subscribers: rows,
		HistoryRows: h.grid.NextRow(),
	}
}

// Close terminates the shell process and releases the PTY.
func (h *Host) Close() error {
	_ = h.ptyFile.Close()
	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
	return h.cmd.Wait()
}

// Done returns a channel closed once Run has returned.
func (h *Host) Done() <-chan struct{} { return h.done }
