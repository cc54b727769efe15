package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/dean0x/devlog/internal/config"
)

// PromotionEngine tracks recurring observations as candidates and graduates
// them into long-term memory once a threshold is crossed.
//
// Grouping rule: two observations belong to the same candidate when they
// share an entry type and either their normalized contents are equal or the
// normalized contents are near-identical by bigram Jaccard similarity
// (>= 0.80). Occurrences count distinct contributing sessions.
type PromotionEngine struct {
	store *Store
	cfg   config.PromotionConfig
}

// NewPromotionEngine wires the engine to the memory store.
func NewPromotionEngine(s *Store, cfg config.PromotionConfig) *PromotionEngine {
	return &PromotionEngine{store: s, cfg: cfg}
}

// PromotionResult summarizes one evaluation sweep.
type PromotionResult struct {
	Candidates int // candidates tracked after the sweep
	Promoted   int
	Removed    int // short-term entries consumed by promotion
}

// Sweep reads the short-term log and runs Evaluate over it.
func (p *PromotionEngine) Sweep(now time.Time) (*PromotionResult, error) {
	entries, skipped, err := p.store.ReadShortTerm()
	if err != nil {
		return nil, fmt.Errorf("promotion sweep: %w", err)
	}
	if skipped > 0 {
		log.Printf("[promote] skipped %d malformed short-term records", skipped)
	}
	return p.Evaluate(entries, now)
}

// Evaluate folds short-term entries into the candidate ledger and promotes
// every candidate that crossed a threshold. Promotion appends to the
// long-term ledger exactly once (id presence is checked first), then removes
// the candidate and its contributing entries. Safe to invoke repeatedly:
// entries that already contributed are not counted again.
func (p *PromotionEngine) Evaluate(entries []Entry, now time.Time) (*PromotionResult, error) {
	cands, err := p.store.ReadCandidates()
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	for i := range entries {
		e := &entries[i]
		key := NormalizeContent(e.Content)
		if key == "" {
			continue
		}

		c := matchCandidate(cands, e.Type, key)
		if c == nil {
			cands = append(cands, Candidate{
				Key:         key,
				Type:        e.Type,
				Content:     e.Content,
				FirstSeenAt: e.CreatedAt,
				LastSeenAt:  e.CreatedAt,
			})
			c = &cands[len(cands)-1]
		}
		if c.HasEntry(e.ID) {
			continue
		}
		c.EntryIDs = append(c.EntryIDs, e.ID)
		if !c.HasSession(e.SessionID) {
			c.SessionIDs = append(c.SessionIDs, e.SessionID)
		}
		c.Occurrences = len(c.SessionIDs)
		c.Score += e.Score
		if e.CreatedAt > c.LastSeenAt {
			c.LastSeenAt = e.CreatedAt
		}
		if e.CreatedAt < c.FirstSeenAt || c.FirstSeenAt == 0 {
			c.FirstSeenAt = e.CreatedAt
		}
	}

	res := &PromotionResult{}
	consumed := map[string]bool{}
	var remaining []Candidate
	for i := range cands {
		c := &cands[i]
		if c.Occurrences < p.cfg.OccurrenceThreshold && c.Score < p.cfg.ScoreThreshold {
			remaining = append(remaining, *c)
			continue
		}

		if err := p.promote(c, now); err != nil {
			log.Printf("[promote] %s: %v", c.Key, err)
			remaining = append(remaining, *c)
			continue
		}
		res.Promoted++
		for _, id := range c.EntryIDs {
			consumed[id] = true
		}
	}

	if len(consumed) > 0 {
		var kept []Entry
		for _, e := range entries {
			if consumed[e.ID] {
				res.Removed++
				continue
			}
			kept = append(kept, e)
		}
		if err := p.store.RewriteShortTerm(kept); err != nil {
			return res, fmt.Errorf("evaluate: %w", err)
		}
	}

	if err := p.store.WriteCandidates(remaining); err != nil {
		return res, fmt.Errorf("evaluate: %w", err)
	}
	res.Candidates = len(remaining)
	return res, nil
}

// promote appends the candidate to the long-term ledger unless its id is
// already present.
func (p *PromotionEngine) promote(c *Candidate, now time.Time) error {
	id := promotionID(c.Type, c.Key)

	present, err := p.store.HasLongTerm(id)
	if err != nil {
		return err
	}
	if present {
		return nil
	}

	return p.store.AppendLongTerm(&Entry{
		ID:             id,
		Type:           c.Type,
		Content:        c.Content,
		Score:          c.Score,
		CreatedAt:      c.FirstSeenAt,
		LastTouchedAt:  c.LastSeenAt,
		PromotedAt:     now.UnixMilli(),
		SourceSessions: c.SessionIDs,
	})
}

// CleanupStale removes candidates whose last_seen_at exceeds maxAge without
// reaching a threshold. Returns the number removed.
func (p *PromotionEngine) CleanupStale(maxAge time.Duration, now time.Time) (int, error) {
	cands, err := p.store.ReadCandidates()
	if err != nil {
		return 0, fmt.Errorf("cleanup stale: %w", err)
	}
	if len(cands) == 0 {
		return 0, nil
	}

	cutoff := now.Add(-maxAge).UnixMilli()
	var kept []Candidate
	removed := 0
	for _, c := range cands {
		if c.LastSeenAt < cutoff {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	if removed == 0 {
		return 0, nil
	}
	if err := p.store.WriteCandidates(kept); err != nil {
		return removed, fmt.Errorf("cleanup stale: %w", err)
	}
	return removed, nil
}

// promotionID derives the stable long-term id for a candidate group, so a
// repeated promotion of the same pattern can never duplicate the ledger.
func promotionID(typ EntryType, key string) string {
	h := sha256.Sum256([]byte(string(typ) + "\x00" + key))
	return "ltm_" + hex.EncodeToString(h[:8])
}

// matchCandidate finds the candidate an entry belongs to: exact normalized
// key first, then near-identical by bigram overlap.
func matchCandidate(cands []Candidate, typ EntryType, key string) *Candidate {
	for i := range cands {
		if cands[i].Type == typ && cands[i].Key == key {
			return &cands[i]
		}
	}
	for i := range cands {
		if cands[i].Type == typ && textNearIdentical(cands[i].Key, key) {
			return &cands[i]
		}
	}
	return nil
}

// similarityThreshold is the bigram Jaccard index above which two normalized
// contents count as the same recurring observation.
const similarityThreshold = 0.80

// textNearIdentical reports whether two strings are near-identical by shared
// bigram ratio. Cheap enough to run per entry without embeddings.
func textNearIdentical(a, b string) bool {
	if a == b {
		return true
	}
	if a == "" || b == "" {
		return false
	}

	bigramsA := bigrams(a)
	bigramsB := bigrams(b)
	if len(bigramsA) == 0 || len(bigramsB) == 0 {
		return a == b
	}

	shared := 0
	for bg := range bigramsA {
		if bigramsB[bg] {
			shared++
		}
	}

	union := len(bigramsA) + len(bigramsB) - shared
	if union == 0 {
		return true
	}

	return float64(shared)/float64(union) >= similarityThreshold
}

func bigrams(s string) map[string]bool {
	if len(s) < 2 {
		return nil
	}
	m := make(map[string]bool, len(s)-1)
	for i := 0; i < len(s)-1; i++ {
		m[s[i:i+2]] = true
	}
	return m
}
