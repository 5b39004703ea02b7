package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/caseflow/caseflow/internal/api"
	"github.com/caseflow/caseflow/internal/feature"
	"github.com/caseflow/caseflow/internal/jira"
	"github.com/caseflow/caseflow/internal/slack"
)

// cleanupSchedule runs the retention job nightly, off peak
const cleanupSchedule = "0 3 * * *"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API server with background jobs",
	Long: `Start the HTTP API and the background scheduler.

Background jobs:
  - JIRA sync every jira.sync_interval (when JIRA is configured)
  - audit-event cleanup daily at 03:00 (per retention config)
  - feature-file watcher on the features directory (when features.watch
    is enabled)

The server shuts down gracefully on SIGINT/SIGTERM.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s := openStore(ctx)
		syncer := buildSyncer(s)
		server := api.NewServer(s, api.Options{
			Detector: buildDetector(s),
			Syncer:   syncer,
			Notifier: slack.NewNotifier(cfg.Slack.WebhookURL),
		})

		scheduler := cron.New()
		if syncer != nil && cfg.JIRA.SyncInterval > 0 {
			spec := fmt.Sprintf("@every %s", cfg.JIRA.SyncInterval)
			if _, err := scheduler.AddFunc(spec, func() { runScheduledSync(ctx, syncer) }); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to schedule JIRA sync: %v\n", err)
				os.Exit(1)
			}
			log.Printf("[SERVE] JIRA sync scheduled every %s", cfg.JIRA.SyncInterval)
		}
		if cfg.Retention.CleanupEnabled {
			if _, err := scheduler.AddFunc(cleanupSchedule, func() { runScheduledCleanup(ctx) }); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to schedule event cleanup: %v\n", err)
				os.Exit(1)
			}
			log.Printf("[SERVE] event cleanup scheduled daily (%s)", cfg.Retention)
		}
		scheduler.Start()
		defer scheduler.Stop()

		group, groupCtx := errgroup.WithContext(ctx)
		group.Go(func() error {
			return server.Run(groupCtx, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
		})

		if cfg.Features.Watch {
			watcher := feature.NewWatcher(feature.NewPublisher(s), cfg.Features.Dir)
			group.Go(func() error {
				err := watcher.Run(groupCtx)
				if err != nil && groupCtx.Err() != nil {
					return nil // shutdown, not a failure
				}
				return err
			})
			log.Printf("[SERVE] watching %s for feature files", cfg.Features.Dir)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s caseflow serving on %s\n", green("✓"), cfg.Server.Addr)

		if err := group.Wait(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func runScheduledSync(ctx context.Context, syncer *jira.Syncer) {
	report, err := syncer.Sync(ctx)
	if err != nil {
		log.Printf("[SERVE] scheduled JIRA sync failed: %v", err)
		return
	}
	log.Printf("[SERVE] JIRA sync done: %d stories, %d tickets in %s",
		report.Stories, report.Tickets, report.Duration.Round(time.Millisecond))
}

// runScheduledCleanup prunes the audit trail per retention config. Each
// strategy runs even if an earlier one fails.
func runScheduledCleanup(ctx context.Context) {
	retention := cfg.Retention
	total := 0

	if n, err := store.CleanupEventsByAge(ctx, retention.RetentionDays, retention.CleanupBatchSize); err != nil {
		log.Printf("[SERVE] age-based event cleanup failed: %v", err)
	} else {
		total += n
	}
	if retention.PerEntityLimit > 0 {
		if n, err := store.CleanupEventsByEntityLimit(ctx, retention.PerEntityLimit, retention.CleanupBatchSize); err != nil {
			log.Printf("[SERVE] per-entity event cleanup failed: %v", err)
		} else {
			total += n
		}
	}
	if n, err := store.CleanupEventsByGlobalLimit(ctx, retention.GlobalLimit, retention.CleanupBatchSize); err != nil {
		log.Printf("[SERVE] global event cleanup failed: %v", err)
	} else {
		total += n
	}

	log.Printf("[SERVE] event cleanup deleted %d events", total)

	if retention.CleanupVacuum && total > 0 {
		if err := store.VacuumDatabase(ctx); err != nil {
			log.Printf("[SERVE] VACUUM failed: %v", err)
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
