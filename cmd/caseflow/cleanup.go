package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Clean up old audit events",
	Long: `Delete old audit events according to the retention policy.

Executes three strategies in sequence:
  1. Time-based: delete events older than the retention period
  2. Per-entity: cap events per entity at the configured maximum
  3. Global: enforce the global event count limit

Configuration comes from the retention section of caseflow.yaml and the
CASEFLOW_EVENT_* environment variables.

Examples:
  caseflow cleanup             # Run cleanup with configured policy
  caseflow cleanup --vacuum    # Also reclaim disk space afterwards`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		vacuum, _ := cmd.Flags().GetBool("vacuum")

		// Bounded context for what can be a long sequence of batched deletes
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		s := openStore(ctx)
		retention := cfg.Retention

		fmt.Printf("Retention policy:\n")
		fmt.Printf("  Retention period: %d days\n", retention.RetentionDays)
		fmt.Printf("  Per-entity limit: %d events\n", retention.PerEntityLimit)
		fmt.Printf("  Global limit:     %d events\n", retention.GlobalLimit)
		fmt.Printf("  Batch size:       %d events/txn\n", retention.CleanupBatchSize)
		fmt.Println()

		before, err := s.GetEventCounts(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to get event counts: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Current events: %d across %d entities\n\n", before.TotalEvents, len(before.EventsByEntity))

		start := time.Now()
		total := 0

		fmt.Printf("Running time-based cleanup (>%d days)...\n", retention.RetentionDays)
		deleted, err := s.CleanupEventsByAge(ctx, retention.RetentionDays, retention.CleanupBatchSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: time-based cleanup failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("  Deleted %d events\n", deleted)
		total += deleted

		if retention.PerEntityLimit > 0 {
			fmt.Printf("Running per-entity cleanup (limit: %d)...\n", retention.PerEntityLimit)
			deleted, err = s.CleanupEventsByEntityLimit(ctx, retention.PerEntityLimit, retention.CleanupBatchSize)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: per-entity cleanup failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("  Deleted %d events\n", deleted)
			total += deleted
		} else {
			fmt.Printf("Skipping per-entity cleanup (unlimited)\n")
		}

		fmt.Printf("Running global limit cleanup (limit: %d)...\n", retention.GlobalLimit)
		deleted, err = s.CleanupEventsByGlobalLimit(ctx, retention.GlobalLimit, retention.CleanupBatchSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: global limit cleanup failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("  Deleted %d events\n", deleted)
		total += deleted

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("\n%s Cleanup complete: %d events deleted in %s\n",
			green("✓"), total, time.Since(start).Round(time.Millisecond))

		if after, err := s.GetEventCounts(ctx); err == nil {
			fmt.Printf("  Events remaining: %d\n", after.TotalEvents)
		}

		if vacuum {
			fmt.Printf("\nRunning VACUUM to reclaim disk space...\n")
			if err := s.VacuumDatabase(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Error: VACUUM failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s VACUUM complete\n", green("✓"))
		}
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().Bool("vacuum", false, "Run VACUUM after cleanup to reclaim disk space")
}
