package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "storesync",
		Short: "Incrementally mirror a storefront catalog into a local database",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(syncCmd())
	root.AddCommand(recheckCmd())
	root.AddCommand(refreshCmd())
	root.AddCommand(backfillCmd())
	root.AddCommand(releaseDatesCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func syncCmd() *cobra.Command {
	var (
		startID int64
		limit   int
		noTags  bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Append new catalog entries from the resume cursor onward",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(startID, limit, noTags)
		},
	}

	cmd.Flags().Int64Var(&startID, "start", 0, "explicit app id to resume from (default: store cursor)")
	cmd.Flags().IntVar(&limit, "limit", 0, "max entries to process this run (0 = unlimited)")
	cmd.Flags().BoolVar(&noTags, "no-tags", false, "skip the per-item tag scrape")
	return cmd
}

func recheckCmd() *cobra.Command {
	var stalenessDays int

	cmd := &cobra.Command{
		Use:   "recheck",
		Short: "Sweep stale unreleased items to pending and recheck them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecheck(stalenessDays)
		},
	}

	cmd.Flags().IntVar(&stalenessDays, "staleness-days", 0, "days since last sync before an unreleased item goes pending (default: from config)")
	return cmd
}

func refreshCmd() *cobra.Command {
	var (
		days  int
		limit int
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh review stats for recently released items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefresh(days, limit)
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "release window in days (default: from config)")
	cmd.Flags().IntVar(&limit, "limit", 0, "max items to refresh (0 = unlimited)")
	return cmd
}

func backfillCmd() *cobra.Command {
	var (
		batch    int
		maxItems int
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Bulk-load the full catalog through staging",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackfill(batch, maxItems)
		},
	}

	cmd.Flags().IntVar(&batch, "batch", 0, "page size per catalog request (default: from config)")
	cmd.Flags().IntVar(&maxItems, "max", 0, "stop after this many items (0 = full catalog)")
	return cmd
}

func releaseDatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "releasedates",
		Short: "Parse stored release date strings into real dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReleaseDates()
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
