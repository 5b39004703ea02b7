package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/caseflow/caseflow/internal/config"
	"github.com/caseflow/caseflow/internal/dedup"
	"github.com/caseflow/caseflow/internal/jira"
	"github.com/caseflow/caseflow/internal/slack"
	"github.com/caseflow/caseflow/internal/storage"
)

var (
	cfgFile string
	cfg     *config.Config
	store   storage.Storage
)

var rootCmd = &cobra.Command{
	Use:   "caseflow",
	Short: "Test case and release management portal",
	Long: `Caseflow manages a catalog of test cases grouped into modules, tracks
releases and their run results, mirrors JIRA stories and production
tickets, imports CSV workbooks with duplicate detection, and publishes
Gherkin feature files as draft test cases.

Configuration loads from caseflow.yaml (see --config) with CASEFLOW_*
environment overrides. A .env file in the working directory is loaded
automatically.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "caseflow.yaml", "Path to config file")
}

// openStore opens the database on first use. Commands that only read
// config never touch the filesystem.
func openStore(ctx context.Context) storage.Storage {
	if store != nil {
		return store
	}
	s, err := storage.NewStorage(ctx, &storage.Config{Path: cfg.Database.Path})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open database %s: %v\n", cfg.Database.Path, err)
		os.Exit(1)
	}
	store = s
	return store
}

// buildDetector assembles the duplicate detector from config, attaching
// the AI reviewer when enabled and an API key is present.
func buildDetector(s storage.Storage) *dedup.Detector {
	dcfg, err := dedup.ConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	dcfg.Threshold = cfg.Dedup.Threshold

	detector := dedup.NewDetector(s, dcfg)
	if cfg.Dedup.AIReview {
		if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
			detector = detector.WithReviewer(dedup.NewAnthropicReviewer(apiKey, ""))
		}
	}
	return detector
}

// buildSyncer returns a JIRA syncer, or nil when the integration is not
// configured.
func buildSyncer(s storage.Storage) *jira.Syncer {
	if !cfg.JIRA.Enabled() {
		return nil
	}
	client := jira.NewClient(cfg.JIRA.BaseURL, cfg.JIRA.Email, cfg.JIRA.Token)
	syncer := jira.NewSyncer(client, s, cfg.JIRA.Project, cfg.JIRA.PageSize)
	if cfg.Slack.Enabled() {
		syncer = syncer.WithNotifier(slack.NewNotifier(cfg.Slack.WebhookURL))
	}
	return syncer
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
