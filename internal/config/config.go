package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration. Values load from a
// YAML file (caseflow.yaml by default), then CASEFLOW_* environment
// variables override individual fields. Everything has a working default so
// a bare binary runs against a local database with no config at all.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	JIRA     JIRAConfig     `yaml:"jira"`
	Slack    SlackConfig    `yaml:"slack"`
	Dedup    DedupConfig    `yaml:"dedup"`
	Features FeaturesConfig `yaml:"features"`

	Retention EventRetentionConfig `yaml:"retention"`
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	// Path is the SQLite database file path
	// Default: ".caseflow/caseflow.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string `yaml:"path"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	// Addr is the listen address for the REST API (default ":8080")
	Addr string `yaml:"addr"`
	// ShutdownTimeout bounds graceful shutdown (default 10s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// JIRAConfig holds JIRA REST API settings. Sync is disabled unless
// BaseURL, Email, and Token are all set.
type JIRAConfig struct {
	BaseURL string `yaml:"base_url"`
	Email   string `yaml:"email"`
	// Token is an API token; prefer setting it via CASEFLOW_JIRA_TOKEN
	// rather than the config file
	Token   string `yaml:"token"`
	Project string `yaml:"project"`
	// SyncInterval is how often serve mode mirrors stories and tickets
	// (default 30m, 0 disables the periodic job)
	SyncInterval time.Duration `yaml:"sync_interval"`
	// PageSize is the JQL search page size (default 50, max 100)
	PageSize int `yaml:"page_size"`
}

// Enabled reports whether the JIRA integration is configured
func (c JIRAConfig) Enabled() bool {
	return c.BaseURL != "" && c.Email != "" && c.Token != ""
}

// SlackConfig holds Slack incoming-webhook settings
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// Enabled reports whether Slack notifications are configured
func (c SlackConfig) Enabled() bool {
	return c.WebhookURL != ""
}

// DedupConfig holds duplicate-detection settings for workbook imports
type DedupConfig struct {
	// Threshold is the minimum similarity score (0.0-1.0) to flag a row
	// as duplicate (default 0.85)
	Threshold float64 `yaml:"threshold"`
	// AIReview enables the optional AI second pass on ambiguous scores.
	// Requires ANTHROPIC_API_KEY; silently disabled without it.
	AIReview bool `yaml:"ai_review"`
}

// FeaturesConfig holds Gherkin feature-file settings
type FeaturesConfig struct {
	// Dir is the directory watched for .feature files (default "features")
	Dir string `yaml:"dir"`
	// Watch enables the fsnotify watcher in serve mode (default false)
	Watch bool `yaml:"watch"`
}

// Default returns a config with all defaults applied
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: ".caseflow/caseflow.db"},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		JIRA: JIRAConfig{
			SyncInterval: 30 * time.Minute,
			PageSize:     50,
		},
		Dedup: DedupConfig{
			Threshold: 0.85,
		},
		Features: FeaturesConfig{
			Dir: "features",
		},
		Retention: DefaultEventRetentionConfig(),
	}
}

// Load reads configuration from path (if it exists), applies CASEFLOW_*
// environment overrides, and validates the result. A missing file is not an
// error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnv overrides individual fields from CASEFLOW_* environment variables
func (c *Config) applyEnv() error {
	if v := os.Getenv("CASEFLOW_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("CASEFLOW_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CASEFLOW_JIRA_BASE_URL"); v != "" {
		c.JIRA.BaseURL = v
	}
	if v := os.Getenv("CASEFLOW_JIRA_EMAIL"); v != "" {
		c.JIRA.Email = v
	}
	if v := os.Getenv("CASEFLOW_JIRA_TOKEN"); v != "" {
		c.JIRA.Token = v
	}
	if v := os.Getenv("CASEFLOW_JIRA_PROJECT"); v != "" {
		c.JIRA.Project = v
	}
	if v := os.Getenv("CASEFLOW_SLACK_WEBHOOK"); v != "" {
		c.Slack.WebhookURL = v
	}
	if v := os.Getenv("CASEFLOW_FEATURES_DIR"); v != "" {
		c.Features.Dir = v
	}
	if v := os.Getenv("CASEFLOW_DEDUP_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid CASEFLOW_DEDUP_THRESHOLD %q: %w", v, err)
		}
		c.Dedup.Threshold = f
	}
	if v := os.Getenv("CASEFLOW_JIRA_SYNC_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CASEFLOW_JIRA_SYNC_INTERVAL %q: %w", v, err)
		}
		c.JIRA.SyncInterval = d
	}

	retention, err := EventRetentionConfigFromEnv(c.Retention)
	if err != nil {
		return err
	}
	c.Retention = retention

	return nil
}

// Validate checks if the configuration has valid values
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Dedup.Threshold < 0.0 || c.Dedup.Threshold > 1.0 {
		return fmt.Errorf("dedup.threshold must be between 0.0 and 1.0 (got %.2f)", c.Dedup.Threshold)
	}
	if c.JIRA.PageSize < 1 || c.JIRA.PageSize > 100 {
		return fmt.Errorf("jira.page_size must be between 1 and 100 (got %d)", c.JIRA.PageSize)
	}
	if c.JIRA.SyncInterval < 0 {
		return fmt.Errorf("jira.sync_interval cannot be negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	return c.Retention.Validate()
}
