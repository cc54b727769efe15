// Package hooks adapts agent hook invocations into queue events. Handlers
// are thin: parse stdin, map the hook to an event type, enqueue, exit. All
// processing happens later in the daemon's drain loop.
package hooks

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dean0x/devlog/internal/queue"
)

// Handle reads HookInput from the reader and enqueues the corresponding
// event. Returns the enqueued id ("" when the event was intentionally
// skipped). Callers treat errors as advisory: hook handlers must never
// crash the agent.
func Handle(q *queue.Queue, event string, stdin io.Reader) (string, error) {
	var input HookInput
	if err := json.NewDecoder(stdin).Decode(&input); err != nil {
		return "", fmt.Errorf("decode stdin: %w", err)
	}
	if input.SessionID == "" {
		return "", fmt.Errorf("hook %s: session_id missing", event)
	}

	typ, payload, err := mapEvent(event, &input)
	if err != nil {
		return "", err
	}
	if typ == "" {
		return "", nil // skipped
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	id, err := q.Enqueue(typ, input.SessionID, data)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", typ, err)
	}
	return id, nil
}

// mapEvent translates a hook name plus its input into a queue event type and
// payload. An empty type means the input should be dropped.
func mapEvent(event string, input *HookInput) (queue.EventType, any, error) {
	switch event {
	case "start":
		return queue.EventSessionStart, queue.SessionPayload{
			TranscriptPath: input.TranscriptPath,
		}, nil
	case "submit":
		if input.Prompt == "" {
			return "", nil, nil
		}
		return queue.EventUserPrompt, queue.PromptPayload{
			Prompt: input.Prompt,
		}, nil
	case "tool":
		if input.ShouldSkipTool() {
			return "", nil, nil
		}
		return queue.EventToolUse, queue.ToolUsePayload{
			ToolName:     input.ToolName,
			ToolInput:    input.ToolInput,
			ToolResponse: string(input.ToolResponse),
		}, nil
	case "stop":
		return queue.EventSessionStop, queue.SessionPayload{
			TranscriptPath: input.TranscriptPath,
			Summary:        input.LastAssistantMessage,
		}, nil
	case "end":
		return queue.EventSessionEnd, queue.SessionPayload{
			TranscriptPath: input.TranscriptPath,
			Reason:         input.Reason,
		}, nil
	}
	return "", nil, fmt.Errorf("unknown hook event: %s", event)
}
