package memory

import (
	"fmt"
	"log"
	"time"

	"github.com/dean0x/devlog/internal/config"
	"github.com/dean0x/devlog/internal/store"
)

// Granularity selects a decay cadence.
type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// Bucket returns the time bucket label for a granularity: the calendar day,
// the ISO week, or the month. A cadence applies at most once per bucket.
func (g Granularity) Bucket(now time.Time) string {
	now = now.UTC()
	switch g {
	case Daily:
		return now.Format("2006-01-02")
	case Weekly:
		year, week := now.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case Monthly:
		return now.Format("2006-01")
	}
	return ""
}

// DecayResult summarizes one decay pass.
type DecayResult struct {
	Decayed  int
	Pruned   int
	Archived int
	// Skipped is true when the pass already ran for the current bucket.
	Skipped bool
}

// DecayEngine ages short-term entries. Each granularity multiplies entry
// scores by its factor once per time bucket; entries falling below the floor
// are pruned for good. The monthly pass additionally archives the previous
// month. Run markers persist in sqlite so restarts never double-apply.
type DecayEngine struct {
	store *Store
	db    *store.DB
	cfg   config.DecayConfig
}

// NewDecayEngine wires the engine to the memory store and the run-marker
// table.
func NewDecayEngine(s *Store, db *store.DB, cfg config.DecayConfig) *DecayEngine {
	return &DecayEngine{store: s, db: db, cfg: cfg}
}

func (d *DecayEngine) factor(g Granularity) float64 {
	switch g {
	case Daily:
		return d.cfg.DailyFactor
	case Weekly:
		return d.cfg.WeeklyFactor
	case Monthly:
		return d.cfg.MonthlyFactor
	}
	return 1
}

// Run applies one decay pass for a granularity at the given time. Running
// twice inside the same bucket decays scores only once.
func (d *DecayEngine) Run(g Granularity, now time.Time) (*DecayResult, error) {
	bucket := g.Bucket(now)
	if bucket == "" {
		return nil, fmt.Errorf("decay: unknown granularity %q", g)
	}

	last, err := d.db.GetRunBucket(string(g))
	if err != nil {
		return nil, fmt.Errorf("decay %s: %w", g, err)
	}
	if last == bucket {
		return &DecayResult{Skipped: true}, nil
	}

	entries, skipped, err := d.store.ReadShortTerm()
	if err != nil {
		return nil, fmt.Errorf("decay %s: %w", g, err)
	}
	if skipped > 0 {
		log.Printf("[decay] %s: skipped %d malformed short-term records", g, skipped)
	}

	factor := d.factor(g)
	res := &DecayResult{}
	kept := entries[:0]
	for _, e := range entries {
		// Entries touched within the current bucket are still fresh.
		if g.Bucket(time.UnixMilli(e.LastTouchedAt).UTC()) == bucket {
			kept = append(kept, e)
			continue
		}
		e.Score *= factor
		if e.Score < d.cfg.Floor {
			res.Pruned++
			continue
		}
		res.Decayed++
		kept = append(kept, e)
	}

	if err := d.store.RewriteShortTerm(kept); err != nil {
		return res, fmt.Errorf("decay %s: %w", g, err)
	}
	if err := d.db.SetRunBucket(string(g), bucket, now.UnixMilli()); err != nil {
		return res, fmt.Errorf("decay %s: %w", g, err)
	}

	if g == Monthly {
		// Archive every closed month still in the log, not just the last
		// one: a daemon down across a boundary leaves older months behind.
		months, err := d.store.MonthsBefore(bucket)
		if err != nil {
			return res, fmt.Errorf("decay monthly: %w", err)
		}
		for _, ym := range months {
			n, err := d.store.ArchiveMonth(ym)
			if err != nil {
				return res, fmt.Errorf("decay monthly: archive %s: %w", ym, err)
			}
			res.Archived += n
		}
	}

	return res, nil
}
