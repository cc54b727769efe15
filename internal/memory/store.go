package memory

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Store owns the file-backed memory ledgers under <base>/memory/:
//
//	short-term.jsonl   append-only log of decaying observations
//	long-term.jsonl    append-only ledger of promoted knowledge
//	candidates.json    promotion-candidate ledger, atomic rewrite per update
//	archive/<ym>.jsonl immutable snapshot per closed month
//
// Appends are idempotent by entry id. Reads validate each record
// independently and skip malformed lines rather than aborting.
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore creates the on-disk layout under baseDir if needed.
func NewStore(baseDir string) (*Store, error) {
	dir := filepath.Join(baseDir, "memory")
	if err := os.MkdirAll(filepath.Join(dir, "archive"), 0755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) shortTermPath() string  { return filepath.Join(s.dir, "short-term.jsonl") }
func (s *Store) longTermPath() string   { return filepath.Join(s.dir, "long-term.jsonl") }
func (s *Store) candidatesPath() string { return filepath.Join(s.dir, "candidates.json") }
func (s *Store) archivePath(ym string) string {
	return filepath.Join(s.dir, "archive", ym+".jsonl")
}

// AppendShortTerm appends an entry to the short-term log. Missing fields are
// filled: id from the (session, type, content) fingerprint, created/touched
// timestamps, and the initial score. Re-appending an existing id is a no-op,
// so duplicate extraction on retry is harmless.
func (s *Store) AppendShortTerm(e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !ValidType(e.Type) {
		return fmt.Errorf("append short-term: unknown entry type %q", e.Type)
	}
	if e.Content == "" {
		return fmt.Errorf("append short-term: empty content")
	}
	if e.ID == "" {
		e.ID = Fingerprint(e.SessionID, e.Type, e.Content)
	}
	now := time.Now().UnixMilli()
	if e.CreatedAt == 0 {
		e.CreatedAt = now
	}
	if e.LastTouchedAt == 0 {
		e.LastTouchedAt = e.CreatedAt
	}
	if e.Score == 0 {
		e.Score = InitialScore
	}

	existing, _, err := readEntries(s.shortTermPath())
	if err != nil {
		return err
	}
	for i := range existing {
		if existing[i].ID == e.ID {
			return nil
		}
	}

	return appendRecord(s.shortTermPath(), e)
}

// ReadShortTerm returns all valid short-term entries plus the count of
// malformed records skipped.
func (s *Store) ReadShortTerm() ([]Entry, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readEntries(s.shortTermPath())
}

// RewriteShortTerm atomically replaces the short-term log. Only the decay
// and promotion engines call this; extraction never rewrites history.
func (s *Store) RewriteShortTerm(entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeEntriesAtomic(s.shortTermPath(), entries)
}

// AppendLongTerm appends a promoted entry to the long-term ledger.
// Idempotent by id: re-appending an already-present id is a no-op.
func (s *Store) AppendLongTerm(e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, _, err := readEntries(s.longTermPath())
	if err != nil {
		return err
	}
	for i := range existing {
		if existing[i].ID == e.ID {
			return nil
		}
	}
	if e.PromotedAt == 0 {
		e.PromotedAt = time.Now().UnixMilli()
	}
	return appendRecord(s.longTermPath(), e)
}

// ReadLongTerm returns all valid long-term entries plus the count of
// malformed records skipped.
func (s *Store) ReadLongTerm() ([]Entry, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readEntries(s.longTermPath())
}

// HasLongTerm reports whether the ledger already holds an id. Promotion
// checks this before writing so it stays exactly-once.
func (s *Store) HasLongTerm(id string) (bool, error) {
	entries, _, err := s.ReadLongTerm()
	if err != nil {
		return false, err
	}
	for i := range entries {
		if entries[i].ID == id {
			return true, nil
		}
	}
	return false, nil
}

// ArchiveMonth snapshots all short-term entries created in the given month
// ("2026-07") into an immutable archive file and removes them from the
// active log. Re-running for an already-archived month is a no-op.
// Returns the number of entries archived.
func (s *Store) ArchiveMonth(ym string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.archivePath(ym)
	if _, err := os.Stat(path); err == nil {
		return 0, nil // month already closed
	} else if !os.IsNotExist(err) {
		return 0, fmt.Errorf("stat archive %s: %w", ym, err)
	}

	entries, _, err := readEntries(s.shortTermPath())
	if err != nil {
		return 0, err
	}

	var archived, kept []Entry
	for _, e := range entries {
		if time.UnixMilli(e.CreatedAt).UTC().Format("2006-01") == ym {
			archived = append(archived, e)
		} else {
			kept = append(kept, e)
		}
	}
	if len(archived) == 0 {
		return 0, nil
	}

	sort.Slice(archived, func(i, j int) bool { return archived[i].CreatedAt < archived[j].CreatedAt })

	// Write the snapshot first; only then shrink the active log. A crash in
	// between leaves duplicates, and the next run's no-op check keeps the
	// snapshot intact.
	if err := writeEntriesAtomic(path, archived); err != nil {
		return 0, err
	}
	if err := writeEntriesAtomic(s.shortTermPath(), kept); err != nil {
		return len(archived), err
	}
	return len(archived), nil
}

// MonthsBefore returns the distinct creation months ("2026-07") present in
// the short-term log that sort before the given month, oldest first. The
// monthly pass archives each of them, so months skipped while the daemon
// was down still get closed.
func (s *Store) MonthsBefore(ym string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, _, err := readEntries(s.shortTermPath())
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, e := range entries {
		m := time.UnixMilli(e.CreatedAt).UTC().Format("2006-01")
		if m < ym {
			seen[m] = true
		}
	}
	months := make([]string, 0, len(seen))
	for m := range seen {
		months = append(months, m)
	}
	sort.Strings(months)
	return months, nil
}

// ReadCandidates loads the promotion-candidate ledger. A missing file means
// no candidates yet.
func (s *Store) ReadCandidates() ([]Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.candidatesPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read candidates: %w", err)
	}
	var cands []Candidate
	if err := json.Unmarshal(data, &cands); err != nil {
		return nil, fmt.Errorf("parse candidates: %w", err)
	}
	return cands, nil
}

// WriteCandidates atomically replaces the candidate ledger.
func (s *Store) WriteCandidates(cands []Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cands == nil {
		cands = []Candidate{}
	}
	data, err := json.MarshalIndent(cands, "", "  ")
	if err != nil {
		return fmt.Errorf("encode candidates: %w", err)
	}
	return writeFileAtomic(s.candidatesPath(), append(data, '\n'))
}

// readEntries reads a JSONL ledger, skipping malformed lines. Returns the
// valid entries and the skipped count.
func readEntries(path string) ([]Entry, int, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	var entries []Entry
	skipped := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil || e.ID == "" || e.Content == "" {
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return entries, skipped, fmt.Errorf("scan %s: %w", filepath.Base(path), err)
	}
	return entries, skipped, nil
}

// appendRecord appends one JSON line. The single O_APPEND write is the
// atomic unit: a partial record never becomes a valid line.
func appendRecord(path string, e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeEntriesAtomic(path string, entries []Entry) error {
	var buf []byte
	for i := range entries {
		data, err := json.Marshal(&entries[i])
		if err != nil {
			return fmt.Errorf("encode entry: %w", err)
		}
		buf = append(buf, data...)
		buf = append(buf, '\n')
	}
	return writeFileAtomic(path, buf)
}

// writeFileAtomic writes to a temp file in the same directory and renames it
// over the target, so readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
