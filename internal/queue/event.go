package queue

import (
	"encoding/json"
	"fmt"
)

// EventType identifies which hook produced an event. The set is closed:
// unknown types are rejected at enqueue time instead of being carried
// through as opaque blobs.
type EventType string

const (
	EventToolUse      EventType = "tool_use"
	EventUserPrompt   EventType = "user_prompt"
	EventSessionStart EventType = "session_start"
	EventSessionStop  EventType = "session_stop"
	EventSessionEnd   EventType = "session_end"
)

// State is the queue lifecycle state of an event. Transitions are monotonic:
// pending → processing → completed, or pending → processing → failed
// (→ pending again on retry).
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// ToolUsePayload carries a single tool invocation.
type ToolUsePayload struct {
	ToolName     string          `json:"tool_name"`
	ToolInput    json.RawMessage `json:"tool_input,omitempty"`
	ToolResponse string          `json:"tool_response,omitempty"`
}

// PromptPayload carries a submitted user prompt.
type PromptPayload struct {
	Prompt string `json:"prompt"`
}

// SessionPayload carries session lifecycle details. Used by the
// session_start, session_stop, and session_end event types.
type SessionPayload struct {
	TranscriptPath string `json:"transcript_path,omitempty"`
	Summary        string `json:"summary,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// Event is a queued hook event. ID and EnqueuedAt are assigned by Enqueue.
type Event struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"event_type"`
	SessionID  string          `json:"session_id"`
	Payload    json.RawMessage `json:"payload"`
	State      State           `json:"state"`
	Attempts   int             `json:"attempts"`
	LastError  string          `json:"last_error,omitempty"`
	EnqueuedAt int64           `json:"enqueued_at"` // epoch ms
	UpdatedAt  int64           `json:"updated_at"`  // epoch ms
}

// ToolUse decodes the payload of a tool_use event.
func (e *Event) ToolUse() (*ToolUsePayload, error) {
	if e.Type != EventToolUse {
		return nil, fmt.Errorf("event %s is %s, not tool_use", e.ID, e.Type)
	}
	var p ToolUsePayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode tool_use payload: %w", err)
	}
	return &p, nil
}

// Prompt decodes the payload of a user_prompt event.
func (e *Event) Prompt() (*PromptPayload, error) {
	if e.Type != EventUserPrompt {
		return nil, fmt.Errorf("event %s is %s, not user_prompt", e.ID, e.Type)
	}
	var p PromptPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode user_prompt payload: %w", err)
	}
	return &p, nil
}

// Session decodes the payload of a session lifecycle event.
func (e *Event) Session() (*SessionPayload, error) {
	switch e.Type {
	case EventSessionStart, EventSessionStop, EventSessionEnd:
	default:
		return nil, fmt.Errorf("event %s is %s, not a session event", e.ID, e.Type)
	}
	var p SessionPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode session payload: %w", err)
	}
	return &p, nil
}

// validatePayload checks that a payload decodes as the tagged shape for its
// event type. Runs once at the ingestion boundary.
func validatePayload(typ EventType, payload json.RawMessage) error {
	switch typ {
	case EventToolUse:
		var p ToolUsePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("tool_use payload: %w", err)
		}
		if p.ToolName == "" {
			return fmt.Errorf("tool_use payload: tool_name required")
		}
	case EventUserPrompt:
		var p PromptPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("user_prompt payload: %w", err)
		}
		if p.Prompt == "" {
			return fmt.Errorf("user_prompt payload: prompt required")
		}
	case EventSessionStart, EventSessionStop, EventSessionEnd:
		var p SessionPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("%s payload: %w", typ, err)
		}
	default:
		return fmt.Errorf("unknown event type %q", typ)
	}
	return nil
}
