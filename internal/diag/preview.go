package diag

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/beach-sh/beach/pkg/wire"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const previewWriteWait = 10 * time.Second

// FrameSource is implemented by internal/host.LocalSink: a channel of the
// frames queued for one in-process preview subscriber.
type FrameSource interface {
	Frames() <-chan wire.Frame
}

// previewHandler relays one local-preview subscriber's frame stream to a
// browser over a raw websocket, adapted from vibetunnel's direct PTY
// relay (RawTerminalWebSocketHandler) but carrying Beach's binary
// wire.Frame encoding instead of raw PTY bytes — there is no JSON
// terminal-buffer snapshot in Beach's design, so the relay forwards the
// same encoded frames the WebRTC data channel would have carried.
type previewHandler struct {
	source FrameSource
}

func (h *previewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("diag: preview upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for f := range h.source.Frames() {
		_ = conn.SetWriteDeadline(time.Now().Add(previewWriteWait))
		if err := conn.WriteMessage(websocket.BinaryMessage, wire.Encode(f)); err != nil {
			return
		}
	}
}

// RegisterPreview adds a /preview websocket endpoint that streams source's
// frames for out-of-band debugging (e.g. watching a session from a
// browser without going through the WebRTC signaling handshake). Safe to
// call at most once per Server.
func (s *Server) RegisterPreview(source FrameSource) {
	s.router.Handle("/preview", &previewHandler{source: source}).Methods(http.MethodGet)
}
