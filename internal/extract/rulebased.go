package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dean0x/devlog/internal/memory"
	"github.com/dean0x/devlog/internal/queue"
)

// RuleBased is a deterministic extractor that derives observation drafts
// from event payloads without an LLM. It keeps the shipped binary useful on
// its own; richer extractors plug in through the same interface.
type RuleBased struct{}

// NewRuleBased returns the default extractor.
func NewRuleBased() *RuleBased { return &RuleBased{} }

// Extract maps an event to draft entries:
//
//	tool_use     → a "pattern" observation of the tool invocation
//	user_prompt  → a "preference" observation for directive prompts
//	session_stop → a "fact" observation of the session summary, if any
//
// Session start/end events produce nothing.
func (r *RuleBased) Extract(_ context.Context, event *queue.Event) ([]memory.Entry, error) {
	switch event.Type {
	case queue.EventToolUse:
		p, err := event.ToolUse()
		if err != nil {
			return nil, err
		}
		return []memory.Entry{{
			Type:      memory.TypePattern,
			Content:   fmt.Sprintf("uses %s tool", p.ToolName),
			SessionID: event.SessionID,
		}}, nil

	case queue.EventUserPrompt:
		p, err := event.Prompt()
		if err != nil {
			return nil, err
		}
		prompt := strings.TrimSpace(p.Prompt)
		if !isDirective(prompt) {
			return nil, nil
		}
		return []memory.Entry{{
			Type:      memory.TypePreference,
			Content:   truncate(prompt, 200),
			SessionID: event.SessionID,
		}}, nil

	case queue.EventSessionStop:
		p, err := event.Session()
		if err != nil {
			return nil, err
		}
		summary := strings.TrimSpace(p.Summary)
		if summary == "" {
			return nil, nil
		}
		return []memory.Entry{{
			Type:      memory.TypeFact,
			Content:   truncate(summary, 500),
			SessionID: event.SessionID,
		}}, nil

	case queue.EventSessionStart, queue.EventSessionEnd:
		return nil, nil
	}
	return nil, fmt.Errorf("extract: unhandled event type %q", event.Type)
}

// directivePrefixes mark prompts that state a standing instruction rather
// than a one-off request.
var directivePrefixes = []string{
	"always", "never", "prefer", "don't", "do not", "use ", "avoid",
	"remember", "from now on",
}

func isDirective(prompt string) bool {
	lower := strings.ToLower(prompt)
	for _, p := range directivePrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
