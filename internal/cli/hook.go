package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dean0x/devlog/internal/config"
	"github.com/dean0x/devlog/internal/hooks"
	"github.com/dean0x/devlog/internal/queue"
	"github.com/dean0x/devlog/internal/store"
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Handle agent hook events (reads JSON from stdin)",
}

// runHook enqueues the event and always exits 0 because hook handlers must never
// crash the agent. Problems go to stderr only.
func runHook(event string) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		q, closeDB, err := openQueue()
		if err != nil {
			fmt.Fprintf(os.Stderr, "hook %s: %v\n", event, err)
			return
		}
		defer closeDB()

		if _, err := hooks.Handle(q, event, os.Stdin); err != nil {
			fmt.Fprintf(os.Stderr, "hook %s: %v\n", event, err)
		}
	}
}

func init() {
	for _, h := range []struct {
		name, short string
	}{
		{"start", "Handle SessionStart hook"},
		{"submit", "Handle UserPromptSubmit hook"},
		{"tool", "Handle PostToolUse hook"},
		{"stop", "Handle Stop hook"},
		{"end", "Handle SessionEnd hook"},
	} {
		h := h
		hookCmd.AddCommand(&cobra.Command{
			Use:   h.name,
			Short: h.short,
			Run:   runHook(h.name),
		})
	}
}

// openQueue opens the queue for short-lived CLI commands. Producers need no
// coordination with the daemon beyond the database itself.
func openQueue() (*queue.Queue, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := store.Open(store.PathIn(cfg.BaseDir))
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return queue.New(db), db.Close, nil
}
