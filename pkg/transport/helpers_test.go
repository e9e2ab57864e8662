package transport

import (
	"context"
	"testing"
	"time"

	"github.com/beach-sh/beach/pkg/wire"
)

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func helloFrame() wire.Frame {
	return wire.Frame{Kind: wire.FrameHello, Hello: wire.Hello{ProtocolVersion: wire.Version, SessionID: "s", Role: "viewer"}}
}
