package dedup

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow/caseflow/internal/storage/sqlite"
	"github.com/caseflow/caseflow/internal/types"
)

func newTestStore(t *testing.T) *sqlite.SQLiteStorage {
	t.Helper()
	s, err := sqlite.New(filepath.Join(t.TempDir(), "caseflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedCase(t *testing.T, s *sqlite.SQLiteStorage, title string) *types.TestCase {
	t.Helper()
	c := &types.TestCase{
		Title:      title,
		Steps:      "Given setup\nWhen action\nThen outcome",
		Priority:   2,
		Status:     types.CaseDraft,
		Automation: types.AutomationManual,
		Source:     types.SourceManual,
	}
	require.NoError(t, s.CreateCase(context.Background(), c, "tester"))
	return c
}

func pendingRow(title string) *types.WorkbookRow {
	return &types.WorkbookRow{
		ID:       uuid.NewString(),
		Title:    title,
		Steps:    "1. Do it",
		Priority: 2,
		Status:   types.RowPending,
	}
}

func TestCheckRowFlagsNearIdenticalTitle(t *testing.T) {
	store := newTestStore(t)
	existing := seedCase(t, store, "Login with valid credentials")

	detector := NewDetector(store, DefaultConfig())
	decision, err := detector.CheckRow(context.Background(), pendingRow("Login with valid credential"), "")
	require.NoError(t, err)
	require.NoError(t, decision.Validate())

	assert.True(t, decision.IsDuplicate)
	assert.Equal(t, existing.ID, decision.DuplicateOf)
	assert.GreaterOrEqual(t, decision.Score, 0.85)
	assert.Equal(t, 1, decision.ComparedCount)
}

func TestCheckRowAcceptsDistinctTitle(t *testing.T) {
	store := newTestStore(t)
	seedCase(t, store, "Login with valid credentials")

	detector := NewDetector(store, DefaultConfig())
	decision, err := detector.CheckRow(context.Background(), pendingRow("Export release report as PDF"), "")
	require.NoError(t, err)
	require.NoError(t, decision.Validate())

	assert.False(t, decision.IsDuplicate)
	assert.Empty(t, decision.DuplicateOf)
}

func TestCheckRowSkipsShortTitles(t *testing.T) {
	store := newTestStore(t)
	seedCase(t, store, "Login now")

	detector := NewDetector(store, DefaultConfig())
	decision, err := detector.CheckRow(context.Background(), pendingRow("Login now"), "")
	require.NoError(t, err)

	// Title is under MinTitleLength, so no comparison happened
	assert.False(t, decision.IsDuplicate)
	assert.Equal(t, 0, decision.ComparedCount)
}

func TestCheckBatch(t *testing.T) {
	store := newTestStore(t)
	existing := seedCase(t, store, "Login with valid credentials")

	rows := []*types.WorkbookRow{
		pendingRow("Login with valid credentials"), // dup of catalog
		pendingRow("Export release report as PDF"), // unique
		pendingRow("Export release report as PDF"), // dup within batch
		pendingRow("Search filters by priority"),   // unique
	}

	detector := NewDetector(store, DefaultConfig())
	result, err := detector.CheckBatch(context.Background(), rows, "")
	require.NoError(t, err)
	require.NoError(t, result.Validate())

	assert.Equal(t, 4, result.Stats.TotalRows)
	assert.Equal(t, 2, result.Stats.UniqueCount)
	assert.Equal(t, 1, result.Stats.DuplicateCount)
	assert.Equal(t, 1, result.Stats.WithinBatchCount)

	match, ok := result.Duplicates[0]
	require.True(t, ok)
	assert.Equal(t, existing.ID, match.CaseID)

	orig, ok := result.WithinBatch[2]
	require.True(t, ok)
	assert.Equal(t, 1, orig)
}

func TestCheckRowScopedToTargetModule(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	payments := &types.Module{Name: "Payments"}
	require.NoError(t, store.CreateModule(ctx, payments, "tester"))
	onboarding := &types.Module{Name: "Onboarding"}
	require.NoError(t, store.CreateModule(ctx, onboarding, "tester"))

	existing := &types.TestCase{
		Title:      "Login with valid credentials",
		Steps:      "Given setup\nWhen action\nThen outcome",
		ModuleID:   payments.ID,
		Priority:   2,
		Status:     types.CaseDraft,
		Automation: types.AutomationManual,
		Source:     types.SourceManual,
	}
	require.NoError(t, store.CreateCase(ctx, existing, "tester"))

	detector := NewDetector(store, DefaultConfig())

	// A matching title in another module is not a duplicate
	decision, err := detector.CheckRow(ctx, pendingRow("Login with valid credentials"), onboarding.ID)
	require.NoError(t, err)
	assert.False(t, decision.IsDuplicate)
	assert.Equal(t, 0, decision.ComparedCount)

	// Same title checked against its own module is flagged
	decision, err = detector.CheckRow(ctx, pendingRow("Login with valid credentials"), payments.ID)
	require.NoError(t, err)
	assert.True(t, decision.IsDuplicate)
	assert.Equal(t, existing.ID, decision.DuplicateOf)

	// No target module compares against the whole catalog
	decision, err = detector.CheckRow(ctx, pendingRow("Login with valid credentials"), "")
	require.NoError(t, err)
	assert.True(t, decision.IsDuplicate)
}

func TestCheckBatchWithinBatchDisabled(t *testing.T) {
	store := newTestStore(t)

	cfg := DefaultConfig()
	cfg.WithinBatch = false
	detector := NewDetector(store, cfg)

	rows := []*types.WorkbookRow{
		pendingRow("Export release report as PDF"),
		pendingRow("Export release report as PDF"),
	}
	result, err := detector.CheckBatch(context.Background(), rows, "")
	require.NoError(t, err)

	assert.Empty(t, result.WithinBatch)
	assert.Equal(t, 2, result.Stats.UniqueCount)
}

// stubReviewer returns a canned verdict
type stubReviewer struct {
	verdict   bool
	reasoning string
	err       error
	calls     int
}

func (r *stubReviewer) Review(_ context.Context, _, _ string) (bool, string, error) {
	r.calls++
	return r.verdict, r.reasoning, r.err
}

func TestReviewerConsultedInAmbiguousBand(t *testing.T) {
	store := newTestStore(t)
	existing := seedCase(t, store, "User can reset password via email link")

	reviewer := &stubReviewer{verdict: true, reasoning: "same reset scenario"}
	detector := NewDetector(store, DefaultConfig()).WithReviewer(reviewer)

	// Similar but below threshold: lands in the review band
	decision, err := detector.CheckRow(context.Background(), pendingRow("User can reset password via SMS code"), "")
	require.NoError(t, err)

	assert.Equal(t, 1, reviewer.calls)
	assert.True(t, decision.IsDuplicate)
	assert.Equal(t, existing.ID, decision.DuplicateOf)
	assert.Equal(t, "same reset scenario", decision.Reasoning)
}

func TestReviewerFailureAcceptsRowAsUnique(t *testing.T) {
	store := newTestStore(t)
	seedCase(t, store, "User can reset password via email link")

	reviewer := &stubReviewer{err: errors.New("api unreachable")}
	detector := NewDetector(store, DefaultConfig()).WithReviewer(reviewer)

	decision, err := detector.CheckRow(context.Background(), pendingRow("User can reset password via SMS code"), "")
	require.NoError(t, err)

	assert.Equal(t, 1, reviewer.calls)
	assert.False(t, decision.IsDuplicate)
}

func TestReviewerSkippedBelowBand(t *testing.T) {
	store := newTestStore(t)
	seedCase(t, store, "User can reset password via email link")

	reviewer := &stubReviewer{verdict: true}
	detector := NewDetector(store, DefaultConfig()).WithReviewer(reviewer)

	_, err := detector.CheckRow(context.Background(), pendingRow("Sync stories from issue tracker"), "")
	require.NoError(t, err)
	assert.Equal(t, 0, reviewer.calls)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(c *Config) {}, false},
		{"threshold too high", func(c *Config) { c.Threshold = 1.5 }, true},
		{"threshold negative", func(c *Config) { c.Threshold = -0.1 }, true},
		{"zero candidates", func(c *Config) { c.MaxCandidates = 0 }, true},
		{"band above threshold", func(c *Config) { c.ReviewBand = 0.9 }, true},
		{"zero timeout", func(c *Config) { c.ReviewTimeout = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("CASEFLOW_DEDUP_THRESHOLD", "0.9")
	t.Setenv("CASEFLOW_DEDUP_MAX_CANDIDATES", "100")
	t.Setenv("CASEFLOW_DEDUP_WITHIN_BATCH", "false")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Threshold)
	assert.Equal(t, 100, cfg.MaxCandidates)
	assert.False(t, cfg.WithinBatch)

	t.Setenv("CASEFLOW_DEDUP_THRESHOLD", "not-a-number")
	_, err = ConfigFromEnv()
	assert.Error(t, err)
}

func TestBatchResultValidate(t *testing.T) {
	r := &BatchResult{
		Duplicates:  map[int]Match{0: {CaseID: "tc-1", Score: 0.9}},
		WithinBatch: map[int]int{2: 1},
		Stats: Stats{
			TotalRows:        4,
			UniqueCount:      2,
			DuplicateCount:   1,
			WithinBatchCount: 1,
		},
	}
	assert.NoError(t, r.Validate())

	// Index in both maps is inconsistent
	r.WithinBatch[0] = 1
	r.Stats.WithinBatchCount = 2
	r.Stats.UniqueCount = 1
	assert.Error(t, r.Validate())
}
