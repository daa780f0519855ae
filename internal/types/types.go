package types

import "time"

// Shared request and response types to avoid circular imports

// FileSet is a flat mapping from relative path (forward-slash separated,
// no leading slash) to text content. Immutable snapshot per bundle fetch.
type FileSet map[string]string

type LoadPreviewRequest struct {
	ForceReinstall bool `json:"force_reinstall"`
}

type LoadPreviewResponse struct {
	ProjectID string `json:"project_id"`
	URL       string `json:"url"`
	Status    string `json:"status"`
}

type SyncRequest struct {
	Files FileSet `json:"files" binding:"required"`
}

type SyncResponse struct {
	ProjectID string `json:"project_id"`
	Updated   int    `json:"updated"`
	Deleted   int    `json:"deleted"`
	Message   string `json:"message,omitempty"`
}

type PreviewStatusResponse struct {
	ProjectID       string `json:"project_id"`
	Status          string `json:"status"`
	URL             string `json:"url,omitempty"`
	ContainerID     string `json:"container_id,omitempty"`
	ContainerStatus string `json:"container_status,omitempty"`
	Message         string `json:"message,omitempty"`
}

type ScreenshotResponse struct {
	ProjectID string `json:"project_id"`
	Data      string `json:"data,omitempty"`
	Captured  bool   `json:"captured"`
	Message   string `json:"message,omitempty"`
}

type ToggleEditModeRequest struct {
	Enabled bool `json:"enabled"`
}

type UpdateStyleRequest struct {
	Property string `json:"property" binding:"required"`
	Value    string `json:"value" binding:"required"`
}

// SelectedElement describes a user-picked DOM node in the previewed app.
// Ephemeral; replaced on each new selection.
type SelectedElement struct {
	ElementID  string            `json:"elementId"`
	TagName    string            `json:"tagName"`
	ClassName  string            `json:"className"`
	Selector   string            `json:"selector"`
	InnerText  string            `json:"innerText"`
	Attributes map[string]string `json:"attributes,omitempty"`
	SourceHint string            `json:"sourceHint,omitempty"`
}

// StreamMarker is the crash-journal record written before the client page
// may be destroyed while an AI response is still streaming. Read once and
// deleted on the next initialization.
type StreamMarker struct {
	InProgress    bool      `json:"in_progress" bson:"in_progress"`
	SessionID     int64     `json:"session_id" bson:"session_id"`
	LastMessageID int64     `json:"last_message_id" bson:"last_message_id"`
	StartedAt     time.Time `json:"started_at" bson:"started_at"`
}

type SuspendStreamRequest struct {
	SessionID     int64 `json:"session_id" binding:"required"`
	LastMessageID int64 `json:"last_message_id"`
}

type ChatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID int64  `json:"session_id,omitempty"`
}

// ChatMessage is one transcript entry, as returned by the chat
// collaborator's reconnect endpoint.
type ChatMessage struct {
	ID           int64                   `json:"id"`
	SessionID    int64                   `json:"session_id"`
	Role         string                  `json:"role"`
	Content      string                  `json:"content"`
	Interactions []AgentInteractionEvent `json:"agent_interactions,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
}

// AgentInteractionEvent is one element of the ordered interaction sequence
// attached to an assistant message: a thought, a tool call, or a tool
// response. tool_call/tool_response pair by stream position.
type AgentInteractionEvent struct {
	Type      string    `json:"type"`
	Agent     string    `json:"agent"`
	Content   string    `json:"content,omitempty"`
	ToolName  string    `json:"tool_name,omitempty"`
	ToolArgs  string    `json:"tool_args,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ReconnectResponse struct {
	SessionID   int64         `json:"session_id"`
	ProjectID   string        `json:"project_id"`
	NewMessages []ChatMessage `json:"new_messages"`
	HasMore     bool          `json:"has_more"`
}

type FileUpdate struct {
	Path    string `json:"path" binding:"required"`
	Content string `json:"content"`
}

type PushFilesRequest struct {
	Files []FileUpdate `json:"files" binding:"required"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
