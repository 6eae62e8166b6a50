package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"leadboard-engine/internal/poll"
	"leadboard-engine/internal/store"
)

var syncHistory int

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the lead snapshot from the sheet once",
	Long: `Fetch the leads sheet, map its rows and store the result as the local
snapshot used when the sheet is unreachable.

With --history N, print the last N recorded sync runs instead.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().IntVar(&syncHistory, "history", 0, "list the last N sync runs instead of syncing")
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, resolveDataDir())
	if err != nil {
		return err
	}
	defer a.Close()

	if syncHistory > 0 {
		runs, err := store.ListSyncRuns(ctx, a.db.Pool, syncHistory)
		if err != nil {
			return err
		}
		printRuns(cmd, runs)
		return nil
	}

	s := poll.NewSyncer(a.repo, a.db.Pool, a.log.Named("sync"))
	stats, err := s.RunOnce(ctx, poll.TriggerManual)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	cmd.Printf("synced %d leads from %d rows (skipped %d blank, %d without contact)\n",
		stats.Mapped, stats.Rows, stats.SkippedBlank, stats.SkippedNoContact)
	return nil
}

func printRuns(cmd *cobra.Command, runs []store.SyncRun) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tTRIGGER\tOK\tLEADS\tSKIPPED\tTOOK\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%d\t%d\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Trigger, r.OK, r.Leads, r.Skipped,
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond), r.Error)
	}
	_ = tw.Flush()
}
