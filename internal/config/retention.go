package config

import (
	"fmt"
	"os"
	"strconv"
)

// EventRetentionConfig holds configuration for audit-event retention and
// cleanup. The events table grows with every mutation (imports of large
// workbooks in particular), so serve mode prunes it on a schedule.
type EventRetentionConfig struct {
	// RetentionDays is the retention period for regular events (in days)
	// Events older than this are eligible for deletion
	// Default: 90, Range: 1-365
	RetentionDays int `yaml:"retention_days"`

	// PerEntityLimit is the maximum number of events to keep per entity
	// When this limit is reached, oldest events are deleted
	// Set to 0 for unlimited
	// Default: 500, Range: 0 or 50-10000
	PerEntityLimit int `yaml:"per_entity_limit"`

	// GlobalLimit is the maximum total number of events to keep
	// This is a safety limit to prevent database bloat
	// Default: 200000, Range: 1000-1000000
	GlobalLimit int `yaml:"global_limit"`

	// CleanupBatchSize is the number of events to delete per transaction
	// Larger batches = faster cleanup but longer locks
	// Default: 1000, Range: 100-10000
	CleanupBatchSize int `yaml:"cleanup_batch_size"`

	// CleanupEnabled controls whether the daily cleanup job runs
	// Default: true
	CleanupEnabled bool `yaml:"cleanup_enabled"`

	// CleanupVacuum controls whether to run VACUUM after cleanup
	// VACUUM reclaims disk space but can lock the database
	// Default: false
	CleanupVacuum bool `yaml:"cleanup_vacuum"`
}

// DefaultEventRetentionConfig returns the default retention configuration
//
// These defaults are chosen to:
// - Keep a full quarter of audit history (90 days)
// - Prevent runaway entities (500 events per entity max)
// - Cap total database size (200k events)
// - Use non-blocking cleanup (no VACUUM by default)
func DefaultEventRetentionConfig() EventRetentionConfig {
	return EventRetentionConfig{
		RetentionDays:    90,
		PerEntityLimit:   500,
		GlobalLimit:      200000,
		CleanupBatchSize: 1000,
		CleanupEnabled:   true,
		CleanupVacuum:    false,
	}
}

// Validate checks if the configuration has valid values
func (c EventRetentionConfig) Validate() error {
	if c.RetentionDays < 1 || c.RetentionDays > 365 {
		return fmt.Errorf("retention_days must be between 1 and 365 (got %d)", c.RetentionDays)
	}

	// PerEntityLimit: 0 = unlimited, or 50-10000
	if c.PerEntityLimit < 0 {
		return fmt.Errorf("per_entity_limit cannot be negative (got %d)", c.PerEntityLimit)
	}
	if c.PerEntityLimit > 0 && c.PerEntityLimit < 50 {
		return fmt.Errorf("per_entity_limit must be 0 (unlimited) or >= 50 (got %d)", c.PerEntityLimit)
	}
	if c.PerEntityLimit > 10000 {
		return fmt.Errorf("per_entity_limit too large (got %d, max 10000)", c.PerEntityLimit)
	}

	if c.GlobalLimit < 1000 {
		return fmt.Errorf("global_limit must be at least 1000 (got %d)", c.GlobalLimit)
	}
	if c.GlobalLimit > 1000000 {
		return fmt.Errorf("global_limit too large (got %d, max 1000000)", c.GlobalLimit)
	}

	if c.CleanupBatchSize < 100 {
		return fmt.Errorf("cleanup_batch_size must be at least 100 (got %d)", c.CleanupBatchSize)
	}
	if c.CleanupBatchSize > 10000 {
		return fmt.Errorf("cleanup_batch_size too large (got %d, max 10000)", c.CleanupBatchSize)
	}

	return nil
}

// String returns a human-readable representation of the config
func (c EventRetentionConfig) String() string {
	return fmt.Sprintf(
		"EventRetentionConfig{RetentionDays: %d, PerEntityLimit: %d, GlobalLimit: %d, "+
			"BatchSize: %d, Enabled: %t, Vacuum: %t}",
		c.RetentionDays, c.PerEntityLimit, c.GlobalLimit,
		c.CleanupBatchSize, c.CleanupEnabled, c.CleanupVacuum,
	)
}

// EventRetentionConfigFromEnv applies CASEFLOW_EVENT_* environment overrides
// on top of the given base configuration.
//
// Environment variables:
//   - CASEFLOW_EVENT_RETENTION_DAYS: retention period in days (default: 90)
//   - CASEFLOW_EVENT_PER_ENTITY_LIMIT: max events per entity, 0 unlimited (default: 500)
//   - CASEFLOW_EVENT_GLOBAL_LIMIT: max total events (default: 200000)
//   - CASEFLOW_EVENT_CLEANUP_BATCH_SIZE: deletes per transaction (default: 1000)
//   - CASEFLOW_EVENT_CLEANUP_ENABLED: enable the daily job (default: true)
//   - CASEFLOW_EVENT_CLEANUP_VACUUM: run VACUUM after cleanup (default: false)
//
// Returns an error if any environment variable has an invalid value.
func EventRetentionConfigFromEnv(base EventRetentionConfig) (EventRetentionConfig, error) {
	cfg := base

	if err := parseEnvInt("CASEFLOW_EVENT_RETENTION_DAYS", &cfg.RetentionDays); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("CASEFLOW_EVENT_PER_ENTITY_LIMIT", &cfg.PerEntityLimit); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("CASEFLOW_EVENT_GLOBAL_LIMIT", &cfg.GlobalLimit); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("CASEFLOW_EVENT_CLEANUP_BATCH_SIZE", &cfg.CleanupBatchSize); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("CASEFLOW_EVENT_CLEANUP_ENABLED", &cfg.CleanupEnabled); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("CASEFLOW_EVENT_CLEANUP_VACUUM", &cfg.CleanupVacuum); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// parseEnvInt parses an integer environment variable into dst if set
func parseEnvInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	*dst = n
	return nil
}

// parseEnvBool parses a boolean environment variable into dst if set
func parseEnvBool(name string, dst *bool) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	*dst = b
	return nil
}
