package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"previewd/internal/types"
)

// Stream event types emitted by the chat collaborator.
const (
	StreamStart       = "start"
	StreamInteraction = "interaction"
	StreamComplete    = "complete"
	StreamError       = "error"
)

// Custom error types for chat client operations
var (
	ErrChatUnavailable = errors.New("chat service unavailable")
	ErrStreamClosed    = errors.New("chat stream closed before completion")
)

// StreamEvent is one event from the chat message stream.
type StreamEvent struct {
	Type        string                       `json:"type"`
	SessionID   int64                        `json:"session_id,omitempty"`
	MessageID   int64                        `json:"message_id,omitempty"`
	Content     string                       `json:"content,omitempty"`
	Interaction *types.AgentInteractionEvent `json:"interaction,omitempty"`
	CodeChanged bool                         `json:"code_changed,omitempty"`
	Error       string                       `json:"error,omitempty"`
}

// Client talks to the external chat collaborator.
type Client struct {
	baseURL    string
	httpClient *http.Client
	authToken  string
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		// No client timeout: streams are open-ended, cancellation is the
		// caller's context.
		httpClient: &http.Client{Timeout: 0},
	}
}

func (c *Client) SetAuthToken(token string) {
	c.authToken = token
}

// StreamMessage posts a message and returns a channel of stream events.
// The channel closes after a complete or error event, or when ctx is
// cancelled. Cancelling ctx is the only way to abort an in-flight stream.
func (c *Client) StreamMessage(ctx context.Context, projectID string, req types.ChatRequest) (<-chan StreamEvent, error) {
	if ctx == nil {
		return nil, errors.New("nil context provided")
	}
	if projectID == "" {
		return nil, errors.New("project ID cannot be empty")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/chat/%s/message/stream", c.baseURL, url.PathEscape(projectID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	if c.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChatUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", ErrChatUnavailable, resp.StatusCode)
	}

	events := make(chan StreamEvent, 16)
	go c.readStream(ctx, resp, events)
	return events, nil
}

func (c *Client) readStream(ctx context.Context, resp *http.Response, events chan<- StreamEvent) {
	defer close(events)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventType string
	var data string

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := scanner.Text()
		if line == "" {
			if data != "" {
				ev := StreamEvent{Type: eventType}
				if err := json.Unmarshal([]byte(data), &ev); err != nil {
					log.Printf("[chat] dropping undecodable stream event: %v", err)
				} else {
					if eventType != "" {
						ev.Type = eventType
					}
					// The reserved token in content counts as a completion
					// signal even without an explicit flag.
					if ev.Type == StreamComplete && IsTerminal(ev.Content) {
						ev.CodeChanged = true
						ev.Content = StripTerminal(ev.Content)
					}
					select {
					case events <- ev:
					case <-ctx.Done():
						return
					}
					if ev.Type == StreamComplete || ev.Type == StreamError {
						return
					}
				}
			}
			eventType = ""
			data = ""
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "event:") {
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		log.Printf("[chat] stream read error: %v", err)
	}
}

// Reconnect replays messages created after the watermark for a session
// interrupted by a page teardown.
func (c *Client) Reconnect(ctx context.Context, projectID string, sessionID, sinceMessageID int64) (*types.ReconnectResponse, error) {
	if ctx == nil {
		return nil, errors.New("nil context provided")
	}

	endpoint := fmt.Sprintf("%s/api/chat/%s/sessions/%d/reconnect?since_message_id=%d",
		c.baseURL, url.PathEscape(projectID), sessionID, sinceMessageID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create reconnect request: %w", err)
	}
	if c.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChatUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: reconnect returned status %d", ErrChatUnavailable, resp.StatusCode)
	}

	var out types.ReconnectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode reconnect response: %w", err)
	}
	return &out, nil
}
