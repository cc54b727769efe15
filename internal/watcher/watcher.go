// Package watcher drains the durable event queue: it polls for pending
// events, claims them, dispatches each to the extractor, and applies the
// per-event outcome back to the queue.
package watcher

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dean0x/devlog/internal/config"
	"github.com/dean0x/devlog/internal/extract"
	"github.com/dean0x/devlog/internal/memory"
	"github.com/dean0x/devlog/internal/queue"
)

// maxConcurrentExtractions bounds in-flight extractor calls per batch.
const maxConcurrentExtractions = 4

// Watcher is the daemon drain loop. One watcher per project; claims are
// still safe under concurrent claimants because MarkProcessing is a
// compare-and-swap.
type Watcher struct {
	queue     *queue.Queue
	memory    *memory.Store
	extractor extract.Extractor
	cfg       config.WatcherConfig
}

// New wires a watcher to its queue, memory store, and extractor.
func New(q *queue.Queue, m *memory.Store, ex extract.Extractor, cfg config.WatcherConfig) *Watcher {
	return &Watcher{queue: q, memory: m, extractor: ex, cfg: cfg}
}

// CycleResult summarizes one polling cycle.
type CycleResult struct {
	Recovered int // abandoned processing records returned to pending
	Requeued  int // failed records with attempts remaining
	Claimed   int
	Completed int
	Failed    int
}

// Run polls until ctx is cancelled. The in-flight batch always finishes:
// cancellation is only observed between cycles, and batch work runs on an
// uncancellable child context.
func (w *Watcher) Run(ctx context.Context) {
	// Startup scan first, so a crash never leaves events stuck in
	// processing forever.
	if n, err := w.queue.RecoverAbandoned(w.cfg.StuckAfter); err != nil {
		log.Printf("[watcher] startup recovery: %v", err)
	} else if n > 0 {
		log.Printf("[watcher] recovered %d abandoned events", n)
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := w.Cycle(context.WithoutCancel(ctx))
			if err != nil {
				// Listing failures abort only this cycle.
				log.Printf("[watcher] cycle: %v", err)
				continue
			}
			if res.Claimed > 0 || res.Recovered > 0 || res.Requeued > 0 {
				log.Printf("[watcher] cycle: claimed=%d completed=%d failed=%d requeued=%d recovered=%d",
					res.Claimed, res.Completed, res.Failed, res.Requeued, res.Recovered)
			}
		}
	}
}

// Cycle performs one drain pass: recover abandoned records, requeue
// retryable failures, then claim and process up to one batch. Event
// failures are isolated; only a storage error listing pending aborts the
// cycle.
func (w *Watcher) Cycle(ctx context.Context) (*CycleResult, error) {
	res := &CycleResult{}

	if n, err := w.queue.RecoverAbandoned(w.cfg.StuckAfter); err != nil {
		log.Printf("[watcher] recover abandoned: %v", err)
	} else {
		res.Recovered = n
	}
	if n, err := w.queue.RequeueRetryable(w.cfg.MaxAttempts); err != nil {
		log.Printf("[watcher] requeue retryable: %v", err)
	} else {
		res.Requeued = n
	}

	ids, err := w.queue.ListPending(w.cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return res, nil
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(maxConcurrentExtractions)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			claimed, completed := w.processOne(ctx, id)
			mu.Lock()
			if claimed {
				res.Claimed++
				if completed {
					res.Completed++
				} else {
					res.Failed++
				}
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return res, nil
}

// processOne claims and processes a single event. Returns whether the claim
// succeeded and whether the event completed. Extracted entries are appended
// before the event is marked completed, so a crash in between leaves the
// event retryable; the fingerprint ids make the repeated appends no-ops.
func (w *Watcher) processOne(ctx context.Context, id string) (claimed, completed bool) {
	if err := w.queue.MarkProcessing(id); err != nil {
		var stateErr *queue.StateError
		if errors.As(err, &stateErr) || errors.Is(err, queue.ErrNotFound) {
			// Another claimant won, or the record vanished. Not ours.
			return false, false
		}
		log.Printf("[watcher] claim %s: %v", id, err)
		return false, false
	}

	event, err := w.queue.Read(id)
	if err != nil {
		w.fail(id, "read after claim: "+err.Error())
		return true, false
	}

	entries, err := w.extractor.Extract(ctx, event)
	if err != nil {
		w.fail(id, "extract: "+err.Error())
		return true, false
	}

	for i := range entries {
		if entries[i].SessionID == "" {
			entries[i].SessionID = event.SessionID
		}
		if err := w.memory.AppendShortTerm(&entries[i]); err != nil {
			w.fail(id, "append short-term: "+err.Error())
			return true, false
		}
	}

	if err := w.queue.MarkCompleted(id); err != nil {
		log.Printf("[watcher] complete %s: %v", id, err)
		return true, false
	}
	return true, true
}

func (w *Watcher) fail(id, reason string) {
	if err := w.queue.MarkFailed(id, reason); err != nil {
		log.Printf("[watcher] fail %s: %v", id, err)
	}
}
