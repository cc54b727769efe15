// Package extract defines the collaborator contract the watcher dispatches
// to. The queue core never implements extraction heuristics itself; it only
// invokes an Extractor per batch item and persists what comes back.
package extract

import (
	"context"

	"github.com/dean0x/devlog/internal/memory"
	"github.com/dean0x/devlog/internal/queue"
)

// Extractor converts a claimed event into zero or more memory-entry drafts.
// An error marks the event failed; it never aborts sibling events in the
// same batch.
type Extractor interface {
	Extract(ctx context.Context, event *queue.Event) ([]memory.Entry, error)
}

// Func adapts a plain function to the Extractor interface.
type Func func(ctx context.Context, event *queue.Event) ([]memory.Entry, error)

func (f Func) Extract(ctx context.Context, event *queue.Event) ([]memory.Entry, error) {
	return f(ctx, event)
}
