package hooks

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/dean0x/devlog/internal/queue"
	"github.com/dean0x/devlog/internal/store"
)

func openTestQueue(t *testing.T) *queue.Queue {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "devlog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return queue.New(db)
}

func TestHandleToolEnqueues(t *testing.T) {
	q := openTestQueue(t)

	stdin := strings.NewReader(`{
		"session_id": "s1",
		"tool_name": "Edit",
		"tool_input": {"file_path": "main.go"},
		"tool_response": "ok"
	}`)

	id, err := Handle(q, "tool", stdin)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if id == "" {
		t.Fatal("tool event was skipped")
	}

	e, err := q.Read(id)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if e.Type != queue.EventToolUse || e.State != queue.StatePending {
		t.Errorf("event = %+v", e)
	}
	p, err := e.ToolUse()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.ToolName != "Edit" {
		t.Errorf("tool_name = %q, want Edit", p.ToolName)
	}
}

func TestHandleSkipsNoiseTools(t *testing.T) {
	q := openTestQueue(t)

	id, err := Handle(q, "tool", strings.NewReader(`{"session_id":"s1","tool_name":"TodoWrite"}`))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if id != "" {
		t.Error("noise tool was enqueued")
	}
	stats, _ := q.GetStats()
	if stats.Pending != 0 {
		t.Errorf("pending = %d, want 0", stats.Pending)
	}
}

func TestHandleStopCarriesSummary(t *testing.T) {
	q := openTestQueue(t)

	id, err := Handle(q, "stop", strings.NewReader(
		`{"session_id":"s1","transcript_path":"/tmp/t.jsonl","last_assistant_message":"refactored the parser"}`))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	e, _ := q.Read(id)
	if e.Type != queue.EventSessionStop {
		t.Fatalf("type = %s, want session_stop", e.Type)
	}
	p, err := e.Session()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.Summary != "refactored the parser" || p.TranscriptPath != "/tmp/t.jsonl" {
		t.Errorf("payload = %+v", p)
	}
}

func TestHandleEmptyPromptSkipped(t *testing.T) {
	q := openTestQueue(t)

	id, err := Handle(q, "submit", strings.NewReader(`{"session_id":"s1"}`))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if id != "" {
		t.Error("empty prompt was enqueued")
	}
}

func TestHandleRejectsBadInput(t *testing.T) {
	q := openTestQueue(t)

	if _, err := Handle(q, "tool", strings.NewReader(`not json`)); err == nil {
		t.Error("expected error for malformed stdin")
	}
	if _, err := Handle(q, "tool", strings.NewReader(`{"tool_name":"Bash"}`)); err == nil {
		t.Error("expected error for missing session_id")
	}
	if _, err := Handle(q, "teleport", strings.NewReader(`{"session_id":"s1"}`)); err == nil {
		t.Error("expected error for unknown hook event")
	}
}
