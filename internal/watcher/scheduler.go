package watcher

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dean0x/devlog/internal/config"
	"github.com/dean0x/devlog/internal/memory"
)

// Scheduler runs the periodic maintenance passes: decay at its three
// cadences, the promotion sweep, and stale-candidate cleanup. Each cadence
// is an independent cron entry sharing one context; the persisted bucket
// markers make every pass idempotent, so the catch-up run at startup is
// safe even right after a scheduled one.
type Scheduler struct {
	cron  *cron.Cron
	decay *memory.DecayEngine
	promo *memory.PromotionEngine
	cfg   config.PromotionConfig
}

// NewScheduler builds the schedule. Decay passes run shortly after their
// bucket rolls over; promotion sweeps hourly; cleanup daily.
func NewScheduler(decay *memory.DecayEngine, promo *memory.PromotionEngine, cfg config.PromotionConfig) *Scheduler {
	return &Scheduler{
		cron:  cron.New(),
		decay: decay,
		promo: promo,
		cfg:   cfg,
	}
}

// Start registers all entries, runs one catch-up pass, and starts the cron
// loop. The loop stops when ctx is cancelled; a job already running at that
// point finishes first.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		spec string
		name string
		run  func(time.Time)
	}{
		{"5 0 * * *", "daily decay", func(now time.Time) { s.runDecay(memory.Daily, now) }},
		{"10 0 * * 1", "weekly decay", func(now time.Time) { s.runDecay(memory.Weekly, now) }},
		{"15 0 1 * *", "monthly decay", func(now time.Time) { s.runDecay(memory.Monthly, now) }},
		{"@every 1h", "promotion sweep", s.runPromotion},
		{"30 0 * * *", "candidate cleanup", s.runCleanup},
	}

	for _, j := range jobs {
		j := j
		if _, err := s.cron.AddFunc(j.spec, func() { j.run(time.Now()) }); err != nil {
			return err
		}
	}

	// Catch up on anything missed while the daemon was down.
	now := time.Now()
	s.runDecay(memory.Daily, now)
	s.runDecay(memory.Weekly, now)
	s.runDecay(memory.Monthly, now)
	s.runPromotion(now)

	s.cron.Start()
	go func() {
		<-ctx.Done()
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
	}()
	return nil
}

func (s *Scheduler) runDecay(g memory.Granularity, now time.Time) {
	res, err := s.decay.Run(g, now)
	if err != nil {
		log.Printf("[decay] %s: %v", g, err)
		return
	}
	if res.Skipped {
		return
	}
	log.Printf("[decay] %s: decayed=%d pruned=%d archived=%d", g, res.Decayed, res.Pruned, res.Archived)
}

func (s *Scheduler) runPromotion(now time.Time) {
	res, err := s.promo.Sweep(now)
	if err != nil {
		log.Printf("[promote] sweep: %v", err)
		return
	}
	if res.Promoted > 0 {
		log.Printf("[promote] promoted=%d consumed=%d candidates=%d", res.Promoted, res.Removed, res.Candidates)
	}
}

func (s *Scheduler) runCleanup(now time.Time) {
	n, err := s.promo.CleanupStale(s.cfg.StaleAfter, now)
	if err != nil {
		log.Printf("[promote] cleanup: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[promote] removed %d stale candidates", n)
	}
}
