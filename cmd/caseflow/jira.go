package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var jiraCmd = &cobra.Command{
	Use:   "jira",
	Short: "JIRA integration commands",
	Long:  `Commands for mirroring JIRA stories and production tickets.`,
}

var jiraSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror stories and production tickets from JIRA",
	Long: `Fetch stories and production-labeled bugs for the configured project
and upsert them into the local mirror.

Requires jira.base_url, jira.email, and jira.token in the config (or the
CASEFLOW_JIRA_* environment variables).`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		syncer := buildSyncer(openStore(ctx))
		if syncer == nil {
			fmt.Fprintf(os.Stderr, "Error: JIRA is not configured (set CASEFLOW_JIRA_BASE_URL, _EMAIL, _TOKEN)\n")
			os.Exit(1)
		}

		fmt.Printf("Syncing project %s from %s...\n", cfg.JIRA.Project, cfg.JIRA.BaseURL)

		report, err := syncer.Sync(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: sync failed: %v\n", err)
			if report != nil {
				for _, msg := range report.Errors {
					fmt.Fprintf(os.Stderr, "  %s\n", msg)
				}
			}
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("\n%s Sync complete in %s\n", green("✓"), report.Duration.Round(time.Millisecond))
		fmt.Printf("  Stories mirrored: %d\n", report.Stories)
		fmt.Printf("  Tickets mirrored: %d\n", report.Tickets)
	},
}

func init() {
	jiraCmd.AddCommand(jiraSyncCmd)
	rootCmd.AddCommand(jiraCmd)
}
