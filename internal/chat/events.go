// Package chat consumes the external chat collaborator: the streaming
// message endpoint, the reconnect endpoint, and the crash-journal marker
// that bridges the two across a page teardown.
package chat

import (
	"strings"

	"previewd/internal/types"
)

// Interaction event types carried on assistant messages.
const (
	EventThought      = "thought"
	EventToolCall     = "tool_call"
	EventToolResponse = "tool_response"
)

// TerminateToken is the reserved completion marker agents embed in message
// content. Its presence is equivalent to an explicit code-changed signal.
const TerminateToken = "TERMINATE"

// IsTerminal reports whether the content carries the reserved completion
// token.
func IsTerminal(content string) bool {
	return strings.Contains(content, TerminateToken)
}

// StripTerminal removes the reserved completion token from content shown
// to the user.
func StripTerminal(content string) string {
	return strings.TrimSpace(strings.ReplaceAll(content, TerminateToken, ""))
}

// ToolExchange is a tool call matched with its response.
type ToolExchange struct {
	Call     types.AgentInteractionEvent
	Response *types.AgentInteractionEvent
}

// PairToolEvents matches tool_call events with tool_response events by
// stream position: the nth response answers the nth call. A trailing call
// with no response yet is returned with a nil Response.
func PairToolEvents(events []types.AgentInteractionEvent) []ToolExchange {
	var calls []types.AgentInteractionEvent
	var responses []types.AgentInteractionEvent
	for _, ev := range events {
		switch ev.Type {
		case EventToolCall:
			calls = append(calls, ev)
		case EventToolResponse:
			responses = append(responses, ev)
		}
	}

	exchanges := make([]ToolExchange, 0, len(calls))
	for i, call := range calls {
		ex := ToolExchange{Call: call}
		if i < len(responses) {
			resp := responses[i]
			ex.Response = &resp
		}
		exchanges = append(exchanges, ex)
	}
	return exchanges
}
