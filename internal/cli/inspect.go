package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dean0x/devlog/internal/config"
	"github.com/dean0x/devlog/internal/memory"
	"github.com/dean0x/devlog/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue state counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, closeDB, err := openQueue()
		if err != nil {
			return err
		}
		defer closeDB()

		s, err := q.GetStats()
		if err != nil {
			return err
		}
		fmt.Printf("pending:    %d\n", s.Pending)
		fmt.Printf("processing: %d\n", s.Processing)
		fmt.Printf("completed:  %d\n", s.Completed)
		fmt.Printf("failed:     %d\n", s.Failed)
		return nil
	},
}

var memoryShort bool

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Print long-term memory (or short-term with --short)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		mem, err := memory.NewStore(cfg.BaseDir)
		if err != nil {
			return err
		}

		var entries []memory.Entry
		var skipped int
		if memoryShort {
			entries, skipped, err = mem.ReadShortTerm()
		} else {
			entries, skipped, err = mem.ReadLongTerm()
		}
		if err != nil {
			return err
		}

		for _, e := range entries {
			when := time.UnixMilli(e.CreatedAt).Format("2006-01-02")
			if memoryShort {
				fmt.Printf("%s  [%s] %.2f  %s\n", when, e.Type, e.Score, e.Content)
			} else {
				fmt.Printf("%s  [%s] %s\n", when, e.Type, e.Content)
			}
		}
		if skipped > 0 {
			fmt.Printf("(%d malformed records skipped)\n", skipped)
		}
		return nil
	},
}

var decayCmd = &cobra.Command{
	Use:       "decay [daily|weekly|monthly]",
	Short:     "Run one decay pass manually",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"daily", "weekly", "monthly"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		db, err := store.Open(store.PathIn(cfg.BaseDir))
		if err != nil {
			return err
		}
		defer db.Close()
		mem, err := memory.NewStore(cfg.BaseDir)
		if err != nil {
			return err
		}

		engine := memory.NewDecayEngine(mem, db, cfg.Decay)
		res, err := engine.Run(memory.Granularity(args[0]), time.Now())
		if err != nil {
			return err
		}
		if res.Skipped {
			fmt.Println("already ran for this period")
			return nil
		}
		fmt.Printf("decayed: %d  pruned: %d  archived: %d\n", res.Decayed, res.Pruned, res.Archived)
		return nil
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Run one promotion sweep manually",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		mem, err := memory.NewStore(cfg.BaseDir)
		if err != nil {
			return err
		}

		engine := memory.NewPromotionEngine(mem, cfg.Promotion)
		res, err := engine.Sweep(time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("promoted: %d  consumed: %d  candidates: %d\n", res.Promoted, res.Removed, res.Candidates)
		return nil
	},
}

func init() {
	memoryCmd.Flags().BoolVar(&memoryShort, "short", false, "Print the short-term log instead")
}
