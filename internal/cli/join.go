package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/beach-sh/beach/internal/clipboard"
	beachclient "github.com/beach-sh/beach/internal/client"
	"github.com/beach-sh/beach/internal/logging"
	"github.com/beach-sh/beach/pkg/signaling"
	"github.com/beach-sh/beach/pkg/transport"
	"github.com/beach-sh/beach/pkg/wire"
)

var passcodeFlag string

var joinCmd = &cobra.Command{
	Use:   "join SESSION_ID",
	Short: "Attach to a shared session as a viewer",
	Args:  cobra.ExactArgs(1),
	RunE:  runJoin,
}

func init() {
	joinCmd.Flags().StringVar(&sessionServerFlag, "session-server", "", "signaling broker base URL")
	joinCmd.Flags().StringVar(&passcodeFlag, "passcode", "", "session passcode")
}

func runJoin(cmd *cobra.Command, args []string) error {
	sessionID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if sessionServerFlag != "" {
		cfg.SessionServer = sessionServerFlag
	}

	if _, err := logging.Init(logging.Options{
		Level:   cfg.LogLevel,
		LogFile: cfg.LogFile,
		Filter:  logging.ParseFilter(cfg.LogFilter),
	}); err != nil {
		return err
	}
	log := logging.Component("cli")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	sig := signaling.New(cfg.SessionServer)
	if _, err := sig.JoinSession(ctx, sessionID, passcodeFlag); err != nil {
		return fmt.Errorf("join session: %w", err)
	}

	offerSDP, err := waitForOffer(ctx, sig, sessionID)
	if err != nil {
		return err
	}

	t, answerSDP, err := transport.NewAnswerer(ctx, transport.Config{}, offerSDP)
	if err != nil {
		return fmt.Errorf("create answerer: %w", err)
	}
	defer t.Close()

	t.OnICECandidate(func(c *webrtc.ICECandidate) {
		go func() {
			j := c.ToJSON()
			_ = sig.PostCandidate(ctx, sessionID, signaling.RoleAnswerer, signaling.Candidate{
				Candidate:     j.Candidate,
				SDPMid:        j.SDPMid,
				SDPMLineIndex: j.SDPMLineIndex,
			})
		}()
	})

	if err := sig.PostAnswer(ctx, sessionID, answerSDP); err != nil {
		return fmt.Errorf("post answer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
				drainRemoteCandidates(ctx, sig, sessionID, signaling.RoleOfferer, t)
			}
		}
	}()

	cols, rows := 80, 24
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		cols, rows = w, h
	}

	model := beachclient.NewModel(t, clipboard.System{}, cols, rows, cfg.HistoryLimit)
	program := tea.NewProgram(model, tea.WithAltScreen())

	t.OnFrame(func(f wire.Frame) {
		program.Send(beachclient.FrameMsg{Frame: f})
	})
	t.OnStateChange(func(s transport.State) {
		switch s {
		case transport.StateConnected:
			program.Send(beachclient.ConnStateMsg{State: beachclient.StateSyncing})
		case transport.StateDisconnected:
			program.Send(beachclient.ConnStateMsg{State: beachclient.StateReconnecting})
		case transport.StateFailed, transport.StateClosed:
			program.Send(beachclient.ConnStateMsg{State: beachclient.StateDisconnected})
		}
	})

	log.Info().Str("session", sessionID.String()).Msg("joined session")

	_, err = program.Run()
	if err != nil {
		return err
	}
	return model.Err
}

// waitForOffer polls the broker for the host's published SDP offer until
// one is available or ctx is canceled.
func waitForOffer(ctx context.Context, sig *signaling.Client, sessionID uuid.UUID) (string, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		sdp, ok, err := sig.GetOffer(ctx, sessionID)
		if err != nil {
			return "", fmt.Errorf("poll offer: %w", err)
		}
		if ok {
			return sdp, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}
