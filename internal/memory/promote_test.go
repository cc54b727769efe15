package memory

import (
	"testing"
	"time"

	"github.com/dean0x/devlog/internal/config"
)

func openPromotionEngine(t *testing.T) (*PromotionEngine, *Store) {
	t.Helper()
	s, _ := openTestStore(t)
	return NewPromotionEngine(s, config.Default().Promotion), s
}

func addPattern(t *testing.T, s *Store, session, content string) *Entry {
	t.Helper()
	e := &Entry{Type: TypePattern, Content: content, SessionID: session}
	if err := s.AppendShortTerm(e); err != nil {
		t.Fatalf("append: %v", err)
	}
	return e
}

func TestPromotionAtOccurrenceThreshold(t *testing.T) {
	engine, s := openPromotionEngine(t)
	now := time.Now()

	// Default threshold is 4 distinct sessions.
	for _, session := range []string{"s1", "s2", "s3"} {
		addPattern(t, s, session, "uses Edit tool for refactors")
	}

	res, err := engine.Sweep(now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Promoted != 0 {
		t.Fatalf("promoted %d below threshold", res.Promoted)
	}
	if res.Candidates != 1 {
		t.Fatalf("candidates = %d, want 1", res.Candidates)
	}
	cands, _ := s.ReadCandidates()
	if cands[0].Occurrences != 3 {
		t.Errorf("occurrences = %d, want 3", cands[0].Occurrences)
	}

	// Fourth session crosses the threshold.
	addPattern(t, s, "s4", "uses Edit tool for refactors")
	res, err = engine.Sweep(now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Promoted != 1 {
		t.Fatalf("promoted = %d, want 1", res.Promoted)
	}

	long, _, _ := s.ReadLongTerm()
	if len(long) != 1 {
		t.Fatalf("long-term entries = %d, want 1", len(long))
	}
	if long[0].Type != TypePattern || len(long[0].SourceSessions) != 4 {
		t.Errorf("promoted entry: %+v", long[0])
	}

	// Candidate and its contributing entries are consumed.
	cands, _ = s.ReadCandidates()
	if len(cands) != 0 {
		t.Errorf("candidates remain after promotion: %+v", cands)
	}
	short, _, _ := s.ReadShortTerm()
	if len(short) != 0 {
		t.Errorf("short-term entries remain after promotion: %+v", short)
	}
}

func TestPromotionExactlyOnce(t *testing.T) {
	engine, s := openPromotionEngine(t)
	now := time.Now()

	var entries []Entry
	for _, session := range []string{"s1", "s2", "s3", "s4"} {
		e := addPattern(t, s, session, "uses Edit tool for refactors")
		entries = append(entries, *e)
	}

	if _, err := engine.Sweep(now); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	// Replaying the same entries (a retried batch, say) rebuilds the
	// candidate, but the ledger id-presence check blocks the second append.
	if _, err := engine.Evaluate(entries, now); err != nil {
		t.Fatalf("replay: %v", err)
	}

	long, _, _ := s.ReadLongTerm()
	if len(long) != 1 {
		t.Fatalf("long-term entries after replay = %d, want 1", len(long))
	}
}

func TestPromotionByAccumulatedScore(t *testing.T) {
	s, _ := openTestStore(t)
	cfg := config.Default().Promotion
	cfg.OccurrenceThreshold = 10
	cfg.ScoreThreshold = 2.5
	engine := NewPromotionEngine(s, cfg)

	for _, session := range []string{"s1", "s2", "s3"} {
		addPattern(t, s, session, "prefers explicit error wrapping")
	}

	res, err := engine.Sweep(time.Now())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	// 3 × 1.0 crosses the score threshold despite occurrences < 10.
	if res.Promoted != 1 {
		t.Errorf("promoted = %d, want 1", res.Promoted)
	}
}

func TestEvaluateDoesNotDoubleCount(t *testing.T) {
	engine, s := openPromotionEngine(t)
	now := time.Now()

	addPattern(t, s, "s1", "uses Edit tool")
	addPattern(t, s, "s2", "uses Edit tool")

	engine.Sweep(now)
	engine.Sweep(now)
	engine.Sweep(now)

	cands, _ := s.ReadCandidates()
	if len(cands) != 1 {
		t.Fatalf("candidates = %d, want 1", len(cands))
	}
	if cands[0].Occurrences != 2 {
		t.Errorf("occurrences = %d after repeated sweeps, want 2", cands[0].Occurrences)
	}
	if cands[0].Score != 2.0 {
		t.Errorf("score = %v after repeated sweeps, want 2.0", cands[0].Score)
	}
}

func TestNearIdenticalContentsShareCandidate(t *testing.T) {
	engine, s := openPromotionEngine(t)

	addPattern(t, s, "s1", "uses Edit tool for refactors")
	addPattern(t, s, "s2", "uses Edit tool for refactors!")
	addPattern(t, s, "s3", "runs the test suite after changes")

	engine.Sweep(time.Now())

	cands, _ := s.ReadCandidates()
	if len(cands) != 2 {
		t.Fatalf("candidates = %d, want 2: %+v", len(cands), cands)
	}
	var edit *Candidate
	for i := range cands {
		if cands[i].Occurrences == 2 {
			edit = &cands[i]
		}
	}
	if edit == nil {
		t.Fatal("near-identical observations were not grouped")
	}
}

func TestCleanupStaleCandidates(t *testing.T) {
	engine, s := openPromotionEngine(t)
	now := time.Now()

	stale := Candidate{
		Key: "old habit", Type: TypePattern, Content: "old habit",
		Occurrences: 2, Score: 2.0,
		FirstSeenAt: now.Add(-90 * 24 * time.Hour).UnixMilli(),
		LastSeenAt:  now.Add(-60 * 24 * time.Hour).UnixMilli(),
	}
	live := Candidate{
		Key: "current habit", Type: TypePattern, Content: "current habit",
		Occurrences: 2, Score: 2.0,
		FirstSeenAt: now.Add(-5 * 24 * time.Hour).UnixMilli(),
		LastSeenAt:  now.Add(-time.Hour).UnixMilli(),
	}
	s.WriteCandidates([]Candidate{stale, live})

	n, err := engine.CleanupStale(30*24*time.Hour, now)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Fatalf("removed %d, want 1", n)
	}
	cands, _ := s.ReadCandidates()
	if len(cands) != 1 || cands[0].Key != "current habit" {
		t.Errorf("remaining candidates: %+v", cands)
	}
}

func TestTextNearIdentical(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"uses edit tool for refactors", "uses edit tool for refactors", true},
		{"uses edit tool for refactors", "uses edit tool for refactor", true},
		{"uses edit tool", "runs the test suite", false},
		{"", "", true},
		{"x", "", false},
	}
	for _, c := range cases {
		if got := textNearIdentical(c.a, c.b); got != c.want {
			t.Errorf("textNearIdentical(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
