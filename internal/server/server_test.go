package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/dean0x/devlog/internal/memory"
	"github.com/dean0x/devlog/internal/queue"
	"github.com/dean0x/devlog/internal/store"
)

func newTestServer(t *testing.T) (*Server, *queue.Queue, *memory.Store) {
	t.Helper()
	base := t.TempDir()
	db, err := store.Open(filepath.Join(base, "devlog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	mem, err := memory.NewStore(base)
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	q := queue.New(db)
	return New(q, mem, "test"), q, mem
}

func get(t *testing.T, s *Server, path string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v (%s)", path, err, rec.Body.String())
		}
	}
	return rec.Code
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)

	var body map[string]any
	if code := get(t, s, "/api/health", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestStats(t *testing.T) {
	s, q, _ := newTestServer(t)

	payload, _ := json.Marshal(queue.ToolUsePayload{ToolName: "Bash"})
	id, _ := q.Enqueue(queue.EventToolUse, "s1", payload)
	q.Enqueue(queue.EventToolUse, "s2", payload)
	q.MarkProcessing(id)
	q.MarkCompleted(id)

	var stats queue.Stats
	if code := get(t, s, "/api/stats", &stats); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if stats.Pending != 1 || stats.Completed != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestMemoryEndpoints(t *testing.T) {
	s, _, mem := newTestServer(t)

	mem.AppendShortTerm(&memory.Entry{Type: memory.TypePattern, Content: "uses Edit tool", SessionID: "s1"})
	mem.AppendLongTerm(&memory.Entry{ID: "ltm_1", Type: memory.TypeFact, Content: "project uses Go"})

	var body struct {
		Entries []memory.Entry `json:"entries"`
		Skipped int            `json:"skipped"`
	}
	if code := get(t, s, "/api/memory/short-term", &body); code != http.StatusOK {
		t.Fatalf("short-term status = %d", code)
	}
	if len(body.Entries) != 1 || body.Entries[0].Content != "uses Edit tool" {
		t.Errorf("short-term = %+v", body)
	}

	body.Entries = nil
	if code := get(t, s, "/api/memory/long-term", &body); code != http.StatusOK {
		t.Fatalf("long-term status = %d", code)
	}
	if len(body.Entries) != 1 || body.Entries[0].ID != "ltm_1" {
		t.Errorf("long-term = %+v", body)
	}

	var cands struct {
		Candidates []memory.Candidate `json:"candidates"`
	}
	if code := get(t, s, "/api/candidates", &cands); code != http.StatusOK {
		t.Fatalf("candidates status = %d", code)
	}
	if len(cands.Candidates) != 0 {
		t.Errorf("candidates = %+v", cands.Candidates)
	}
}
