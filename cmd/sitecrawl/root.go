package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for sitecrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitecrawl",
		Short: "Scoped breadth-first web crawler",
		Long: `sitecrawl crawls a website breadth-first starting from a seed URL.

Only links on the seed's host whose path starts with the seed's path are
followed. Every fetched page is saved as a JSON record under a directory
derived from its URL, and each run is recorded in a local index that the
history command can query.`,
		Version:       readBuildInfo().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-file", "",
		"Also write JSON logs to this file (rotated)")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .sitecrawl in current, XDG config or home directory)")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewInspectCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
