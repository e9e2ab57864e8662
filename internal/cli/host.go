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
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/beach-sh/beach/internal/diag"
	"github.com/beach-sh/beach/internal/host"
	"github.com/beach-sh/beach/internal/logging"
	"github.com/beach-sh/beach/pkg/signaling"
	"github.com/beach-sh/beach/pkg/transport"
	"github.com/beach-sh/beach/pkg/wire"
)

// pollInterval is how often the host polls the broker for the viewer's
// SDP answer and trickled ICE candidates (spec §5 timeouts).
const pollInterval = 250 * time.Millisecond

// handshakeRefresh re-posts the offer if no answer has arrived yet, in
// case the broker dropped the original publish.
const handshakeRefresh = 60 * time.Second

// connectedTimeout bounds how long the peer connection may take to reach
// Connected before the host declares the handshake failed.
const connectedTimeout = 30 * time.Second

var (
	sessionServerFlag string
	localPreview      bool
	diagPort          int
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Create a session and share this terminal",
	RunE:  runHost,
}

func init() {
	hostCmd.Flags().StringVar(&sessionServerFlag, "session-server", "", "signaling broker base URL")
	hostCmd.Flags().BoolVar(&localPreview, "local-preview", false, "attach an in-process preview subscriber, viewable at /preview on the --diag-port endpoint")
	hostCmd.Flags().IntVar(&diagPort, "diag-port", 0, "loopback port for the status/preview debug endpoint (0 disables it)")
}

func runHost(cmd *cobra.Command, args []string) error {
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
	session, err := sig.CreateSession(ctx, "")
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	fmt.Printf("Session ID:  %s\n", session.ID)
	fmt.Printf("Passcode:    %s\n", session.Passcode)
	fmt.Printf("Share with:  beach join %s --passcode %s\n", session.ID, session.Passcode)

	h, err := host.New(host.Options{
		SessionID:    session.ID.String(),
		HistoryLimit: cfg.HistoryLimit,
	})
	if err != nil {
		return fmt.Errorf("start host: %w", err)
	}
	defer h.Close()

	if diagPort != 0 {
		diagSrv := diag.New(h)
		if localPreview {
			sink := host.NewLocalSink(256)
			h.AddSubscriber("local-preview", sink)
			diagSrv.RegisterPreview(sink)
			log.Info().Msg("local preview enabled")
		}
		go func() {
			if err := diagSrv.Serve(diagPort); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("diag server stopped")
			}
		}()
		defer diagSrv.Close()
	} else if localPreview {
		h.AddSubscriber("local-preview", host.NewLocalSink(256))
		log.Info().Msg("local preview enabled (no diag endpoint to view it; pass --diag-port)")
	}

	go acceptViewer(ctx, log, sig, session.ID, h)

	runErr := h.Run(ctx)
	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("host run loop: %w", runErr)
	}
	return nil
}

// acceptViewer runs the host side of one WebRTC handshake against the
// broker: publish the offer, trickle local candidates, apply remote
// candidates as they arrive, and wire the resulting transport into h as a
// subscriber once the data channel opens (spec §6, §5 timeouts).
func acceptViewer(ctx context.Context, log zerolog.Logger, sig *signaling.Client, sessionID uuid.UUID, h *host.Host) {
	t, offerSDP, err := transport.NewOfferer(ctx, transport.Config{})
	if err != nil {
		log.Error().Err(err).Msg("create offerer")
		return
	}

	t.OnICECandidate(func(c *webrtc.ICECandidate) {
		go func() {
			j := c.ToJSON()
			_ = sig.PostCandidate(ctx, sessionID, signaling.RoleOfferer, signaling.Candidate{
				Candidate:     j.Candidate,
				SDPMid:        j.SDPMid,
				SDPMLineIndex: j.SDPMLineIndex,
			})
		}()
	})

	if err := sig.PostOffer(ctx, sessionID, offerSDP); err != nil {
		log.Error().Err(err).Msg("post offer")
		_ = t.Close()
		return
	}

	subscriberID := "viewer-" + uuid.NewString()

	deadline := time.Now().Add(connectedTimeout)
	refreshAt := time.Now().Add(handshakeRefresh)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	gotAnswer := false
	for !gotAnswer {
		select {
		case <-ctx.Done():
			_ = t.Close()
			return
		case now := <-ticker.C:
			if now.After(deadline) {
				log.Warn().Msg("handshake timed out waiting for answer")
				_ = t.Close()
				return
			}
			if now.After(refreshAt) {
				_ = sig.PostOffer(ctx, sessionID, offerSDP)
				refreshAt = now.Add(handshakeRefresh)
			}
			drainRemoteCandidates(ctx, sig, sessionID, signaling.RoleAnswerer, t)

			answer, ok, err := sig.GetAnswer(ctx, sessionID)
			if err != nil || !ok {
				continue
			}
			if err := t.SetRemoteDescription(answer); err != nil {
				log.Error().Err(err).Msg("set remote description")
				continue
			}
			gotAnswer = true
		}
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
				drainRemoteCandidates(ctx, sig, sessionID, signaling.RoleAnswerer, t)
			}
		}
	}()

	t.OnStateChange(func(s transport.State) {
		if s == transport.StateClosed || s == transport.StateFailed {
			h.RemoveSubscriber(subscriberID)
		}
	})
	t.OnFrame(func(f wire.Frame) {
		switch f.Kind {
		case wire.FrameInput:
			if err := h.HandleInput(f.Input.Data); err == nil {
				_ = t.SendFrame(wire.Frame{Kind: wire.FrameInputAck, InputAck: wire.InputAck{Seq: f.Input.Seq}})
			}
		case wire.FrameResize:
			_ = h.Resize(int(f.Resize.Cols), int(f.Resize.Rows))
		}
	})

	h.AddSubscriber(subscriberID, t)
	log.Info().Str("subscriber", subscriberID).Msg("viewer connected")
}

func drainRemoteCandidates(ctx context.Context, sig *signaling.Client, sessionID uuid.UUID, role signaling.Role, t *transport.Transport) {
	cands, err := sig.PollCandidates(ctx, sessionID, role)
	if err != nil {
		return
	}
	for _, c := range cands {
		_ = t.AddICECandidate(webrtc.ICECandidateInit{
			Candidate:     c.Candidate,
			SDPMid:        c.SDPMid,
			SDPMLineIndex: c.SDPMLineIndex,
		})
	}
}
