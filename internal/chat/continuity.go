package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"previewd/internal/types"
)

// Resumption outcomes. Whatever the outcome, the consumed marker is never
// rewritten: resumption is attempted at most once per marker.
const (
	OutcomeNone            = "none"
	OutcomeRecovered       = "recovered"
	OutcomeStillProcessing = "still_processing"
	OutcomeFailed          = "failed"
)

// MarkerStore persists stream markers with read-once semantics: Take
// returns a marker at most once, deleting it in the same operation.
type MarkerStore interface {
	PutMarker(ctx context.Context, projectID string, marker types.StreamMarker) error
	TakeMarker(ctx context.Context, projectID string) (*types.StreamMarker, error)
}

// Reconnector replays messages after a watermark.
type Reconnector interface {
	Reconnect(ctx context.Context, projectID string, sessionID, sinceMessageID int64) (*types.ReconnectResponse, error)
}

// Resumption is the result of a resume attempt.
type Resumption struct {
	Outcome     string              `json:"outcome"`
	SessionID   int64               `json:"session_id,omitempty"`
	NewMessages []types.ChatMessage `json:"new_messages,omitempty"`
}

// Manager implements stream continuity across a page teardown: a marker is
// journaled before the page may be destroyed mid-stream, and consumed
// exactly once on the next initialization.
type Manager struct {
	store  MarkerStore
	client Reconnector
}

func NewManager(store MarkerStore, client Reconnector) *Manager {
	return &Manager{store: store, client: client}
}

// Suspend journals an in-progress stream before the page is torn down.
// The caller aborts the in-flight request itself by cancelling its stream
// context; Suspend only records what was in flight.
func (m *Manager) Suspend(ctx context.Context, projectID string, sessionID, lastMessageID int64) error {
	if ctx == nil {
		return errors.New("nil context provided")
	}
	if projectID == "" {
		return errors.New("project ID cannot be empty")
	}

	marker := types.StreamMarker{
		InProgress:    true,
		SessionID:     sessionID,
		LastMessageID: lastMessageID,
		StartedAt:     time.Now().UTC(),
	}
	if err := m.store.PutMarker(ctx, projectID, marker); err != nil {
		return fmt.Errorf("failed to journal stream marker: %w", err)
	}
	log.Printf("[chat] journaled in-flight stream for project %s (session %d, watermark %d)",
		projectID, sessionID, lastMessageID)
	return nil
}

// Resume consumes any journaled marker for the project and, if one
// recorded an in-progress stream, replays messages after its watermark.
// The marker is deleted by the read itself, so every path out of here
// leaves no marker behind.
func (m *Manager) Resume(ctx context.Context, projectID string) (*Resumption, error) {
	if ctx == nil {
		return nil, errors.New("nil context provided")
	}
	if projectID == "" {
		return nil, errors.New("project ID cannot be empty")
	}

	marker, err := m.store.TakeMarker(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to read stream marker: %w", err)
	}
	if marker == nil || !marker.InProgress {
		return &Resumption{Outcome: OutcomeNone}, nil
	}

	resp, err := m.client.Reconnect(ctx, projectID, marker.SessionID, marker.LastMessageID)
	if err != nil {
		log.Printf("[chat] reconnect failed for project %s session %d: %v", projectID, marker.SessionID, err)
		return &Resumption{Outcome: OutcomeFailed, SessionID: marker.SessionID}, nil
	}

	if len(resp.NewMessages) == 0 {
		return &Resumption{Outcome: OutcomeStillProcessing, SessionID: marker.SessionID}, nil
	}

	// A recovered stream can end mid-tool-call when the teardown raced the
	// agent. Surface the dangling call so the gap is diagnosable.
	last := resp.NewMessages[len(resp.NewMessages)-1]
	for _, ex := range PairToolEvents(last.Interactions) {
		if ex.Response == nil {
			log.Printf("[chat] recovered session %d ended with an unanswered %s call", marker.SessionID, ex.Call.ToolName)
		}
	}

	return &Resumption{
		Outcome:     OutcomeRecovered,
		SessionID:   marker.SessionID,
		NewMessages: resp.NewMessages,
	}, nil
}
