package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "devlog",
	Short: "Durable event queue and decaying memory for AI coding agents",
	Long: "Devlog records hook events from an agent session into a durable queue,\n" +
		"extracts observations from them asynchronously, and ages those observations\n" +
		"until the recurring ones graduate into long-term memory.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(decayCmd)
	rootCmd.AddCommand(promoteCmd)
}
