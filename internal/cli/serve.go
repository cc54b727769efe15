package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dean0x/devlog/internal/config"
	"github.com/dean0x/devlog/internal/extract"
	"github.com/dean0x/devlog/internal/memory"
	"github.com/dean0x/devlog/internal/queue"
	"github.com/dean0x/devlog/internal/server"
	"github.com/dean0x/devlog/internal/store"
	"github.com/dean0x/devlog/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the devlog daemon: queue drain, decay schedule, status API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		// Invalid configuration is the one fatal startup error.
		return err
	}

	db, err := store.Open(store.PathIn(cfg.BaseDir))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	mem, err := memory.NewStore(cfg.BaseDir)
	if err != nil {
		return fmt.Errorf("open memory store: %w", err)
	}

	q := queue.New(db)
	w := watcher.New(q, mem, extract.NewRuleBased(), cfg.Watcher)
	decay := memory.NewDecayEngine(mem, db, cfg.Decay)
	promo := memory.NewPromotionEngine(mem, cfg.Promotion)
	sched := watcher.NewScheduler(decay, promo, cfg.Promotion)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		w.Run(ctx)
	}()

	srv := server.New(q, mem, VersionString())
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: srv,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "devlog serving on %s\n", cfg.ListenAddr())
		fmt.Fprintf(os.Stderr, "  base: %s\n", cfg.BaseDir)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	// Stop polling; the in-flight batch drains before Run returns.
	cancel()
	<-watcherDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	return httpServer.Shutdown(shutdownCtx)
}
