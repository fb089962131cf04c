package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "pull-review",
	Short: "Suggest reviewers for GitHub pull requests",
	Long: `pull-review picks reviewers for a pull request from the authors of the lines it
changes, filling up with path-based fallback reviewers and random roster members
as the repository's .pull-review policy allows.`,
	SilenceUsage: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output with detailed diagnostics")
}
