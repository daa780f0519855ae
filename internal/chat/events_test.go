package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"previewd/internal/types"
)

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"bare token", "TERMINATE", true},
		{"token at end", "All tasks completed successfully! TERMINATE", true},
		{"token mid-sentence", "Done. TERMINATE\n", true},
		{"no token", "still working on the navbar", false},
		{"lowercase is not the token", "terminate", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTerminal(tt.content))
		})
	}
}

func TestStripTerminal(t *testing.T) {
	assert.Equal(t, "All tasks completed successfully!", StripTerminal("All tasks completed successfully! TERMINATE"))
	assert.Equal(t, "", StripTerminal("TERMINATE"))
	assert.Equal(t, "untouched", StripTerminal("untouched"))
}

func TestPairToolEventsByPosition(t *testing.T) {
	events := []types.AgentInteractionEvent{
		{Type: EventThought, Agent: "coder", Content: "need to read the file"},
		{Type: EventToolCall, Agent: "coder", ToolName: "read_file", ToolArgs: `{"path":"src/App.jsx"}`},
		{Type: EventToolResponse, Agent: "coder", Content: "export default ..."},
		{Type: EventToolCall, Agent: "coder", ToolName: "write_file", ToolArgs: `{"path":"src/App.jsx"}`},
		{Type: EventToolResponse, Agent: "coder", Content: "ok"},
	}

	exchanges := PairToolEvents(events)

	require.Len(t, exchanges, 2)
	assert.Equal(t, "read_file", exchanges[0].Call.ToolName)
	require.NotNil(t, exchanges[0].Response)
	assert.Equal(t, "export default ...", exchanges[0].Response.Content)
	assert.Equal(t, "write_file", exchanges[1].Call.ToolName)
	require.NotNil(t, exchanges[1].Response)
	assert.Equal(t, "ok", exchanges[1].Response.Content)
}

func TestPairToolEventsTrailingCall(t *testing.T) {
	events := []types.AgentInteractionEvent{
		{Type: EventToolCall, ToolName: "run_tests"},
	}

	exchanges := PairToolEvents(events)

	require.Len(t, exchanges, 1)
	assert.Nil(t, exchanges[0].Response, "a call without a response yet pairs with nil")
}

func TestPairToolEventsIgnoresThoughts(t *testing.T) {
	events := []types.AgentInteractionEvent{
		{Type: EventThought, Content: "a"},
		{Type: EventThought, Content: "b"},
	}

	assert.Empty(t, PairToolEvents(events))
}
