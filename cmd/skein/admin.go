package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	archiveDays int
	compactKeep int
	flowWindow  int
)

var archiveCmd = &cobra.Command{
	Use:     "archive",
	Short:   "Move old closed issues to cold storage",
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := store.ArchiveClosed(cmd.Context(), archiveDays, currentActor())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(map[string]any{"archived": ids})
			return nil
		}
		if len(ids) == 0 {
			fmt.Println(dimStyle.Render("nothing to archive"))
			return nil
		}
		fmt.Printf("%s archived %d issues\n", okStyle.Render("✓"), len(ids))
		return nil
	},
}

var compactCmd = &cobra.Command{
	Use:     "compact",
	Short:   "Trim each issue's audit trail to its most recent events",
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		deleted, err := store.CompactEvents(cmd.Context(), compactKeep)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(map[string]any{"deleted": deleted, "kept_per_issue": compactKeep})
			return nil
		}
		fmt.Printf("%s deleted %d events\n", okStyle.Render("✓"), deleted)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show aggregate counts and lead time",
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := store.GetStatistics(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(stats)
			return nil
		}
		fmt.Println(headerStyle.Render("issues"))
		fmt.Printf("  total %d  open %d  wip %d  done %d  archived %d\n",
			stats.TotalIssues, stats.OpenIssues, stats.WIPIssues, stats.DoneIssues, stats.ArchivedIssues)
		fmt.Printf("  ready %d  blocked %d\n", stats.ReadyIssues, stats.BlockedIssues)
		if stats.AverageLeadTime > 0 {
			fmt.Printf("  avg lead time %.1fh\n", stats.AverageLeadTime)
		}
		return nil
	},
}

var flowCmd = &cobra.Command{
	Use:     "flow",
	Short:   "Show throughput over a trailing window",
	PreRunE: openStore,
	RunE: func(cmd *cobra.Command, args []string) error {
		metrics, err := store.GetFlowMetrics(cmd.Context(), flowWindow)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(metrics)
			return nil
		}
		fmt.Printf("last %d days: created %d, closed %d (%.2f/day)\n",
			metrics.WindowDays, metrics.Created, metrics.Closed, metrics.ThroughputPerDay)
		if metrics.OldestOpenHours > 0 {
			fmt.Printf("oldest open issue: %.0fh\n", metrics.OldestOpenHours)
		}
		return nil
	},
}

func init() {
	archiveCmd.Flags().IntVar(&archiveDays, "days", 30, "archive issues closed at least this many days ago")
	compactCmd.Flags().IntVar(&compactKeep, "keep", 50, "events to keep per issue")
	flowCmd.Flags().IntVar(&flowWindow, "window", 14, "window in days")
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(compactCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(flowCmd)
}
