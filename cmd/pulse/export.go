package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/abelbrown/pulse/internal/config"
	"github.com/abelbrown/pulse/internal/logging"
	"github.com/abelbrown/pulse/internal/store"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Run once and save the snapshot to a SQLite database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, opts, dbPath)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "database path (default under the XDG data dir)")
	return cmd
}

func runExport(cmd *cobra.Command, opts *rootOptions, dbPath string) error {
	if dbPath == "" {
		dbPath = config.ExportPath()
	}
	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.close()

	snap, err := runEngine(cmd, opts, s, opts.dashboardOptions(s.cfg, viewFull))
	if err != nil {
		return err
	}
	if err := st.SaveSnapshot(snap); err != nil {
		return fmt.Errorf("export run %s: %w", snap.RunID, err)
	}
	logging.Info("snapshot exported", "run", snap.RunID, "db", dbPath)
	fmt.Fprintf(cmd.OutOrStdout(), "exported run %s to %s\n", snap.RunID, dbPath)
	return nil
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var dbPath string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List exported runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				dbPath = config.ExportPath()
			}
			if _, err := os.Stat(dbPath); err != nil {
				return fmt.Errorf("no exports at %s (run 'pulse export' first)", dbPath)
			}
			st, err := openStore(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.Runs(limit)
			if err != nil {
				return err
			}
			printRuns(cmd, runs, time.Now())
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "database path (default under the XDG data dir)")
	cmd.Flags().IntVar(&limit, "limit", 20, "runs to list")
	return cmd
}

func openStore(dbPath string) (*store.Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return st, nil
}

func printRuns(cmd *cobra.Command, runs []store.Run, now time.Time) {
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tTOOK\tENTRIES\tQUERY")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			shortRunID(r.ID),
			humanize.RelTime(r.StartedAt, now, "ago", "from now"),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
			humanize.Comma(int64(r.Entries)),
			r.Query)
	}
	w.Flush()
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
