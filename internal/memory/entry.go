package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// EntryType categorizes an extracted observation.
type EntryType string

const (
	TypeDecision   EntryType = "decision"
	TypePreference EntryType = "preference"
	TypeFact       EntryType = "fact"
	TypePattern    EntryType = "pattern"
)

var validTypes = map[EntryType]bool{
	TypeDecision: true, TypePreference: true, TypeFact: true, TypePattern: true,
}

// ValidType reports whether t is a known entry type.
func ValidType(t EntryType) bool { return validTypes[t] }

// InitialScore is the decay score assigned to a fresh short-term entry.
const InitialScore = 1.0

// Entry is one memory record. Short-term entries carry a decaying score;
// long-term entries additionally record when and from which sessions they
// were promoted.
type Entry struct {
	ID            string    `json:"id"`
	Type          EntryType `json:"type"`
	Content       string    `json:"content"`
	SessionID     string    `json:"session_id"`
	Score         float64   `json:"score"`
	CreatedAt     int64     `json:"created_at"`      // epoch ms
	LastTouchedAt int64     `json:"last_touched_at"` // epoch ms

	// Long-term only.
	PromotedAt     int64    `json:"promoted_at,omitempty"`
	SourceSessions []string `json:"source_sessions,omitempty"`
}

// Fingerprint derives a deterministic entry id from session, type, and
// content. Re-extracting the same event after a crash or retry produces the
// same id, which makes appends idempotent.
func Fingerprint(sessionID string, typ EntryType, content string) string {
	h := sha256.Sum256([]byte(sessionID + "\x00" + string(typ) + "\x00" + NormalizeContent(content)))
	return "mem_" + hex.EncodeToString(h[:8])
}

// NormalizeContent lowercases, strips punctuation, and collapses whitespace.
// Used both for entry fingerprints and for grouping recurring observations
// into promotion candidates.
func NormalizeContent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Candidate tracks a recurring observation under evaluation for promotion.
type Candidate struct {
	Key         string    `json:"key"`
	Type        EntryType `json:"type"`
	Content     string    `json:"content"`
	Occurrences int       `json:"occurrences"`
	Score       float64   `json:"score"`
	FirstSeenAt int64     `json:"first_seen_at"` // epoch ms
	LastSeenAt  int64     `json:"last_seen_at"`  // epoch ms
	EntryIDs    []string  `json:"entry_ids"`
	SessionIDs  []string  `json:"session_ids"`
}

// HasEntry reports whether an entry id already contributed to the candidate.
func (c *Candidate) HasEntry(id string) bool {
	for _, e := range c.EntryIDs {
		if e == id {
			return true
		}
	}
	return false
}

// HasSession reports whether a session already contributed to the candidate.
func (c *Candidate) HasSession(id string) bool {
	for _, s := range c.SessionIDs {
		if s == id {
			return true
		}
	}
	return false
}
