package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/caseflow/caseflow/internal/jira"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show portal statistics",
	Long:  `Display catalog, release, and integration statistics.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openStore(ctx)

		stats, err := s.GetStatistics(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Caseflow Status ==="))

		fmt.Printf("%s\n", yellow("Test Cases:"))
		fmt.Printf("  Total: %d\n", stats.TotalCases)
		for status, n := range stats.CasesByStatus {
			fmt.Printf("    %-12s %d\n", status, n)
		}
		fmt.Printf("  By automation:\n")
		for auto, n := range stats.CasesByAuto {
			fmt.Printf("    %-12s %d\n", auto, n)
		}
		fmt.Println()

		fmt.Printf("%s\n", yellow("Catalog:"))
		fmt.Printf("  Modules:   %d\n", stats.TotalModules)
		fmt.Printf("  Releases:  %d\n", stats.TotalReleases)
		fmt.Printf("  Stories:   %d\n", stats.TotalStories)
		fmt.Printf("  Tickets:   %d\n", stats.TotalTickets)
		fmt.Printf("  Workbooks: %d", stats.TotalWorkbooks)
		if stats.PendingRows > 0 {
			fmt.Printf(" %s", yellow(fmt.Sprintf("(%d rows awaiting review)", stats.PendingRows)))
		}
		fmt.Println()
		fmt.Println()

		if cfg.JIRA.Enabled() {
			syncer := jira.NewSyncer(nil, s, cfg.JIRA.Project, cfg.JIRA.PageSize)
			stories, tickets, err := syncer.LastSync(ctx)
			fmt.Printf("%s\n", yellow("JIRA:"))
			if err != nil {
				fmt.Printf("  %s\n", gray("last sync unknown: "+err.Error()))
			} else {
				fmt.Printf("  Stories synced: %s\n", formatSyncTime(stories))
				fmt.Printf("  Tickets synced: %s\n", formatSyncTime(tickets))
			}
			fmt.Println()
		}
	},
}

func formatSyncTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return fmt.Sprintf("%s (%s ago)", t.Format("2006-01-02 15:04"), time.Since(t).Round(time.Minute))
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
