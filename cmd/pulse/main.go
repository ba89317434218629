// Command pulse runs one aggregation pass over the configured rate series and
// feeds and prints the dashboard.
//
// Usage:
//
//	pulse                   Full dashboard
//	pulse rates             Merged rate series only
//	pulse trends            Trending guests and emerging topics only
//	pulse export            Run and save the snapshot to SQLite
//	pulse history           List exported runs
//	pulse events            JSONL event log viewer
//	pulse version           Print version information
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootOptions are the flags shared by every run command.
type rootOptions struct {
	config  string
	query   string
	limit   int
	events  string
	plain   bool
	verbose bool
	rows    int
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "pulse",
		Short: "Mortgage industry rates and news dashboard",
		Long: "pulse fetches mortgage rate series and industry news, podcast and journalist feeds, " +
			"merges them, and reports trending guests and emerging topics.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd, opts, viewFull)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.config, "config", "", "path to config file")
	pf.StringVarP(&opts.query, "query", "q", "", "only show entries whose title or summary contains this text")
	pf.IntVarP(&opts.limit, "limit", "n", 0, "entries per source (default from config)")
	pf.StringVar(&opts.events, "events", "", "JSONL event log path (default under the XDG state dir)")
	pf.BoolVar(&opts.plain, "plain", false, "no colors and no spinner")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr instead of the log file")

	root.AddCommand(newRatesCmd(opts))
	root.AddCommand(newTrendsCmd(opts))
	root.AddCommand(newExportCmd(opts))
	root.AddCommand(newHistoryCmd(opts))
	root.AddCommand(newEventsCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

func newRatesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Show the merged rate series",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd, opts, viewRates)
		},
	}
	cmd.Flags().IntVar(&opts.rows, "rows", 10, "most recent rows to list per series group")
	return cmd
}

func newTrendsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trends",
		Short: "Show trending guests, popular keywords and emerging topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd, opts, viewTrends)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pulse %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
