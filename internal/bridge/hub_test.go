package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialHub spins up a test server around the hub and connects to it the way
// an injected script would.
func dialHub(t *testing.T, hub *Hub, projectID string) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWS(w, r, projectID)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Wait for the hub to register the connection.
	require.Eventually(t, func() bool { return hub.Connected(projectID) }, time.Second, 5*time.Millisecond)
	return conn
}

func TestSendWithoutConnection(t *testing.T) {
	hub := NewHub()

	err := hub.Send("proj-1", Message{Type: TypeToggleMode, Enabled: true})

	assert.ErrorIs(t, err, ErrNoPreviewConnection)
}

func TestSendDeliversToApp(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "proj-1")

	require.NoError(t, hub.Send("proj-1", Message{Type: TypeToggleMode, Enabled: true}))

	var got Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, TypeToggleMode, got.Type)
	assert.True(t, got.Enabled)
}

func TestRequestRoundTrip(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "proj-1")

	// Emulate the app: answer the capture request with a reply.
	go func() {
		var req Message
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		_ = conn.WriteJSON(Message{Type: TypeScreenshotCaptured, Data: "data:image/png;base64,AAAA"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	reply, err := hub.Request(ctx, "proj-1", Message{Type: TypeCaptureScreenshot}, TypeScreenshotCaptured, TypeScreenshotError)

	require.NoError(t, err)
	assert.Equal(t, TypeScreenshotCaptured, reply.Type)
	assert.Equal(t, "data:image/png;base64,AAAA", reply.Data)
}

func TestRequestErrorReply(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "proj-1")

	go func() {
		var req Message
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		_ = conn.WriteJSON(Message{Type: TypeScreenshotError, Error: "no rendered content"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	reply, err := hub.Request(ctx, "proj-1", Message{Type: TypeCaptureScreenshot}, TypeScreenshotCaptured, TypeScreenshotError)

	require.NoError(t, err)
	assert.Equal(t, TypeScreenshotError, reply.Type)
}

func TestRequestTimeoutDeregistersWaiter(t *testing.T) {
	hub := NewHub()
	dialHub(t, hub, "proj-1")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := hub.Request(ctx, "proj-1", Message{Type: TypeCaptureScreenshot}, TypeScreenshotCaptured)
	assert.ErrorIs(t, err, ErrReplyTimeout)

	// A timed-out waiter must not linger and swallow the next reply.
	hub.mu.Lock()
	remaining := len(hub.waiters["proj-1"])
	hub.mu.Unlock()
	assert.Zero(t, remaining)
}

func TestRepeatedRequestsAfterTimeout(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "proj-1")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	_, err := hub.Request(ctx, "proj-1", Message{Type: TypeCaptureScreenshot}, TypeScreenshotCaptured)
	cancel()
	require.ErrorIs(t, err, ErrReplyTimeout)

	go func() {
		for {
			var req Message
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if req.Type == TypeCaptureScreenshot {
				_ = conn.WriteJSON(Message{Type: TypeScreenshotCaptured, Data: "data:image/png;base64,BBBB"})
			}
		}
	}()

	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	reply, err := hub.Request(ctx2, "proj-1", Message{Type: TypeCaptureScreenshot}, TypeScreenshotCaptured)

	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,BBBB", reply.Data)
}

func TestInvalidInboundMessageDropped(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "proj-1")

	go func() {
		var req Message
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		// Malformed reply first, then the real one.
		_ = conn.WriteJSON(Message{Type: "bogus"})
		_ = conn.WriteJSON(Message{Type: TypeScreenshotCaptured, Data: "data:image/png;base64,CCCC"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	reply, err := hub.Request(ctx, "proj-1", Message{Type: TypeCaptureScreenshot}, TypeScreenshotCaptured)

	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,CCCC", reply.Data)
}

func TestNewConnectionReplacesOld(t *testing.T) {
	hub := NewHub()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWS(w, r, "proj-1")
	}))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer first.Close()
	require.Eventually(t, func() bool { return hub.Connected("proj-1") }, time.Second, 5*time.Millisecond)

	second, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer second.Close()

	// The replacement connection receives sends; the old one is closed.
	require.Eventually(t, func() bool {
		if err := hub.Send("proj-1", Message{Type: TypeToggleMode, Enabled: true}); err != nil {
			return false
		}
		var got Message
		_ = second.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		return second.ReadJSON(&got) == nil && got.Type == TypeToggleMode
	}, 2*time.Second, 10*time.Millisecond)
}
