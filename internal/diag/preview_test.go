package diag

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/beach-sh/beach/pkg/wire"
)

type fakeFrameSource struct {
	frames chan wire.Frame
}

func (f fakeFrameSource) Frames() <-chan wire.Frame { return f.frames }

func TestPreviewEndpointStreamsEncodedFrames(t *testing.T) {
	src := fakeFrameSource{frames: make(chan wire.Frame, 1)}
	src.frames <- wire.Frame{Kind: wire.FrameHeartbeat}
	close(src.frames)

	srv := New(fakeProvider{})
	srv.RegisterPreview(src)

	httpSrv := httptest.NewServer(srv.http.Handler)
	defer httpSrv.Close()
	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/preview"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, kind)

	got, err := wire.Decode(data)
	require.NoError(t, err)
	require.Equal(t, wire.FrameHeartbeat, got.Kind)
}
