package chat

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"previewd/internal/types"
)

func sseServer(t *testing.T, events []string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		for _, ev := range events {
			fmt.Fprint(w, ev)
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func collect(t *testing.T, ch <-chan StreamEvent) []StreamEvent {
	t.Helper()
	var out []StreamEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out collecting stream events")
		}
	}
}

func TestStreamMessage(t *testing.T) {
	srv := sseServer(t, []string{
		"event: start\ndata: {\"session_id\": 7}\n\n",
		"event: interaction\ndata: {\"interaction\": {\"type\": \"thought\", \"agent\": \"coder\", \"content\": \"planning\"}}\n\n",
		"event: complete\ndata: {\"message_id\": 42, \"content\": \"Navbar added.\", \"code_changed\": true}\n\n",
	})
	client := NewClient(srv.URL)

	ch, err := client.StreamMessage(context.Background(), "proj-1", types.ChatRequest{Message: "add a navbar"})
	require.NoError(t, err)
	events := collect(t, ch)

	require.Len(t, events, 3)
	assert.Equal(t, StreamStart, events[0].Type)
	assert.Equal(t, int64(7), events[0].SessionID)
	assert.Equal(t, StreamInteraction, events[1].Type)
	require.NotNil(t, events[1].Interaction)
	assert.Equal(t, "thought", events[1].Interaction.Type)
	assert.Equal(t, StreamComplete, events[2].Type)
	assert.True(t, events[2].CodeChanged)
}

func TestStreamMessageDetectsReservedToken(t *testing.T) {
	srv := sseServer(t, []string{
		"event: complete\ndata: {\"message_id\": 9, \"content\": \"All done. TERMINATE\"}\n\n",
	})
	client := NewClient(srv.URL)

	ch, err := client.StreamMessage(context.Background(), "proj-1", types.ChatRequest{Message: "finish up"})
	require.NoError(t, err)
	events := collect(t, ch)

	require.Len(t, events, 1)
	assert.True(t, events[0].CodeChanged, "embedded token counts as a code-changed signal")
	assert.Equal(t, "All done.", events[0].Content)
}

func TestStreamMessageStopsAfterError(t *testing.T) {
	srv := sseServer(t, []string{
		"event: error\ndata: {\"error\": \"model overloaded\"}\n\n",
		"event: interaction\ndata: {\"interaction\": {\"type\": \"thought\"}}\n\n",
	})
	client := NewClient(srv.URL)

	ch, err := client.StreamMessage(context.Background(), "proj-1", types.ChatRequest{Message: "hi"})
	require.NoError(t, err)
	events := collect(t, ch)

	require.Len(t, events, 1, "nothing is emitted past the error event")
	assert.Equal(t, StreamError, events[0].Type)
	assert.Equal(t, "model overloaded", events[0].Error)
}

func TestStreamMessageServiceDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	client := NewClient(srv.URL)

	_, err := client.StreamMessage(context.Background(), "proj-1", types.ChatRequest{Message: "hi"})

	assert.ErrorIs(t, err, ErrChatUnavailable)
}

func TestStreamMessageAbort(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)
	client := NewClient(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := client.StreamMessage(ctx, "proj-1", types.ChatRequest{Message: "hi"})
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel closes after abort")
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after context cancellation")
	}
}

func TestReconnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/proj-1/sessions/7/reconnect", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("since_message_id"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"session_id": 7, "project_id": "proj-1", "new_messages": [{"id": 43, "session_id": 7, "role": "assistant", "content": "done"}], "has_more": true}`)
	}))
	defer srv.Close()
	client := NewClient(srv.URL)

	resp, err := client.Reconnect(context.Background(), "proj-1", 7, 42)

	require.NoError(t, err)
	assert.True(t, resp.HasMore)
	require.Len(t, resp.NewMessages, 1)
	assert.Equal(t, int64(43), resp.NewMessages[0].ID)
}

func TestReconnectNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	client := NewClient(srv.URL)

	_, err := client.Reconnect(context.Background(), "proj-1", 7, 42)

	assert.ErrorIs(t, err, ErrChatUnavailable)
	assert.Contains(t, err.Error(), "404")
}
