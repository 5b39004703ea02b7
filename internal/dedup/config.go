package dedup

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the duplicate detection engine
type Config struct {
	// Threshold is the minimum similarity score (0.0-1.0) to flag a row
	// as a duplicate. Higher values = more conservative (fewer false
	// positives, more false negatives).
	// Default: 0.85
	Threshold float64

	// MaxCandidates caps how many existing cases are compared against.
	// Limits processing time on large catalogs.
	// Default: 500
	MaxCandidates int

	// MinTitleLength is the minimum title length to attempt comparison.
	// Very short titles carry too little signal to score reliably.
	// Default: 10 characters
	MinTitleLength int

	// WithinBatch enables detection of duplicates inside the imported
	// batch itself, so two identical CSV rows do not both survive review.
	// Default: true
	WithinBatch bool

	// FailOpen determines behavior when detection fails. If true the row
	// is kept as pending (prefer a reviewable duplicate over a lost
	// candidate); if false the import errors out.
	// Default: true
	FailOpen bool

	// ReviewBand is how far below Threshold a score may fall and still be
	// sent to the AI reviewer when one is configured. Scores below
	// Threshold-ReviewBand are accepted as unique without review.
	// Default: 0.15
	ReviewBand float64

	// ReviewTimeout is the timeout for a single AI review call.
	// Default: 30 seconds
	ReviewTimeout time.Duration
}

// DefaultConfig returns the default duplicate detection configuration
func DefaultConfig() Config {
	return Config{
		Threshold:      0.85,
		MaxCandidates:  500,
		MinTitleLength: 10,
		WithinBatch:    true,
		FailOpen:       true,
		ReviewBand:     0.15,
		ReviewTimeout:  30 * time.Second,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.Threshold < 0.0 || c.Threshold > 1.0 {
		return fmt.Errorf("threshold must be between 0.0 and 1.0 (got %.2f)", c.Threshold)
	}
	if c.MaxCandidates <= 0 {
		return fmt.Errorf("max_candidates must be positive (got %d)", c.MaxCandidates)
	}
	if c.MaxCandidates > 10000 {
		return fmt.Errorf("max_candidates too large (got %d, max 10000)", c.MaxCandidates)
	}
	if c.MinTitleLength < 0 {
		return fmt.Errorf("min_title_length cannot be negative (got %d)", c.MinTitleLength)
	}
	if c.MinTitleLength > 500 {
		return fmt.Errorf("min_title_length too large (got %d, max 500)", c.MinTitleLength)
	}
	if c.ReviewBand < 0.0 || c.ReviewBand > c.Threshold {
		return fmt.Errorf("review_band must be between 0.0 and threshold (got %.2f)", c.ReviewBand)
	}
	if c.ReviewTimeout <= 0 {
		return fmt.Errorf("review_timeout must be positive (got %v)", c.ReviewTimeout)
	}
	if c.ReviewTimeout > 5*time.Minute {
		return fmt.Errorf("review_timeout too large (got %v, max 5 minutes)", c.ReviewTimeout)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{Threshold: %.2f, MaxCandidates: %d, MinTitleLen: %d, WithinBatch: %t, FailOpen: %t, ReviewBand: %.2f, ReviewTimeout: %v}",
		c.Threshold, c.MaxCandidates, c.MinTitleLength, c.WithinBatch, c.FailOpen,
		c.ReviewBand, c.ReviewTimeout,
	)
}

// ConfigFromEnv creates a Config from environment variables, falling back
// to defaults.
//
// Environment variables:
//   - CASEFLOW_DEDUP_THRESHOLD: Minimum similarity (0.0-1.0) to flag a duplicate (default: 0.85)
//   - CASEFLOW_DEDUP_MAX_CANDIDATES: Maximum number of cases to compare against (default: 500)
//   - CASEFLOW_DEDUP_MIN_TITLE_LENGTH: Minimum title length for comparison (default: 10)
//   - CASEFLOW_DEDUP_WITHIN_BATCH: Detect duplicates inside the batch (default: true)
//   - CASEFLOW_DEDUP_FAIL_OPEN: Keep rows pending on detection failure (default: true)
//   - CASEFLOW_DEDUP_REVIEW_BAND: Width of the AI review band below threshold (default: 0.15)
//   - CASEFLOW_DEDUP_REVIEW_TIMEOUT_SECS: AI review timeout in seconds (default: 30)
//
// Returns an error if any environment variable has an invalid value.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if err := parseEnvFloat("CASEFLOW_DEDUP_THRESHOLD", &cfg.Threshold); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("CASEFLOW_DEDUP_MAX_CANDIDATES", &cfg.MaxCandidates); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("CASEFLOW_DEDUP_MIN_TITLE_LENGTH", &cfg.MinTitleLength); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("CASEFLOW_DEDUP_WITHIN_BATCH", &cfg.WithinBatch); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("CASEFLOW_DEDUP_FAIL_OPEN", &cfg.FailOpen); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("CASEFLOW_DEDUP_REVIEW_BAND", &cfg.ReviewBand); err != nil {
		return cfg, err
	}
	if err := parseEnvDuration("CASEFLOW_DEDUP_REVIEW_TIMEOUT_SECS", &cfg.ReviewTimeout, time.Second); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}

	return cfg, nil
}

func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvDuration(key string, dest *time.Duration, multiplier time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = time.Duration(parsed) * multiplier
	return nil
}
