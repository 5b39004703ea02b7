package dedup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/caseflow/caseflow/internal/storage"
	"github.com/caseflow/caseflow/internal/types"
)

// Detector flags imported workbook rows that duplicate test cases already
// in the catalog, so reviewers do not approve the same case twice.
//
// Detection is similarity-based: candidate titles are normalized and
// scored against existing case titles, and rows at or above the
// configured threshold are flagged. When an AI reviewer is attached,
// scores that land just below the threshold get a second opinion before
// being accepted as unique.
//
// Example usage:
//
//	detector := NewDetector(store, dedup.DefaultConfig())
//
//	decision, err := detector.CheckRow(ctx, row, moduleID)
//	if err != nil {
//	    log.Printf("[DEDUP] check failed: %v", err)
//	}
//	if decision.IsDuplicate {
//	    log.Printf("[DEDUP] row duplicates %s (score %.2f)",
//	        decision.DuplicateOf, decision.Score)
//	}
type Detector struct {
	store    storage.Storage
	config   Config
	reviewer Reviewer
}

// Reviewer gives a second opinion on an ambiguous similarity score.
// Implementations decide whether two titles describe the same test.
type Reviewer interface {
	Review(ctx context.Context, candidate, existing string) (isDuplicate bool, reasoning string, err error)
}

// NewDetector creates a similarity-based duplicate detector
func NewDetector(store storage.Storage, config Config) *Detector {
	return &Detector{store: store, config: config}
}

// WithReviewer attaches an AI reviewer for ambiguous scores
func (d *Detector) WithReviewer(r Reviewer) *Detector {
	d.reviewer = r
	return d
}

// Decision is the outcome of checking a single row for duplicates
type Decision struct {
	// IsDuplicate is true when the row matched an existing case at or
	// above the threshold (or the reviewer confirmed an ambiguous match)
	IsDuplicate bool `json:"is_duplicate"`

	// DuplicateOf is the ID of the matched test case.
	// Only set when IsDuplicate is true.
	DuplicateOf string `json:"duplicate_of,omitempty"`

	// Score is the best similarity found (0.0 to 1.0)
	Score float64 `json:"score"`

	// Reasoning is set when the AI reviewer made the call
	Reasoning string `json:"reasoning,omitempty"`

	// ComparedCount is how many existing cases were scored
	ComparedCount int `json:"compared_count"`
}

// Validate checks if the decision has consistent values
func (d *Decision) Validate() error {
	if d.Score < 0.0 || d.Score > 1.0 {
		return fmt.Errorf("score must be between 0.0 and 1.0 (got %.2f)", d.Score)
	}
	if d.IsDuplicate && d.DuplicateOf == "" {
		return fmt.Errorf("duplicate_of must be set when is_duplicate is true")
	}
	if !d.IsDuplicate && d.DuplicateOf != "" {
		return fmt.Errorf("duplicate_of should not be set when is_duplicate is false")
	}
	if d.ComparedCount < 0 {
		return fmt.Errorf("compared_count cannot be negative (got %d)", d.ComparedCount)
	}
	return nil
}

// Match pairs a matched case ID with its similarity score
type Match struct {
	CaseID string  `json:"case_id"`
	Score  float64 `json:"score"`
}

// BatchResult is the outcome of checking a whole workbook
type BatchResult struct {
	// Duplicates maps candidate row index to the existing case it matched
	Duplicates map[int]Match `json:"duplicates"`

	// WithinBatch maps a duplicate row index to the index of its first
	// occurrence inside the same batch
	WithinBatch map[int]int `json:"within_batch,omitempty"`

	// Stats about the detection run
	Stats Stats `json:"stats"`
}

// Stats provides metrics about a detection run
type Stats struct {
	TotalRows        int   `json:"total_rows"`
	UniqueCount      int   `json:"unique_count"`
	DuplicateCount   int   `json:"duplicate_count"`
	WithinBatchCount int   `json:"within_batch_count"`
	ComparisonsMade  int   `json:"comparisons_made"`
	ReviewCallsMade  int   `json:"review_calls_made"`
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// Validate checks that the batch result is internally consistent
func (r *BatchResult) Validate() error {
	if r.Stats.DuplicateCount != len(r.Duplicates) {
		return fmt.Errorf("stats.duplicate_count (%d) does not match duplicates length (%d)",
			r.Stats.DuplicateCount, len(r.Duplicates))
	}
	if r.Stats.WithinBatchCount != len(r.WithinBatch) {
		return fmt.Errorf("stats.within_batch_count (%d) does not match within_batch length (%d)",
			r.Stats.WithinBatchCount, len(r.WithinBatch))
	}
	if total := r.Stats.UniqueCount + r.Stats.DuplicateCount + r.Stats.WithinBatchCount; total != r.Stats.TotalRows {
		return fmt.Errorf("stats.total_rows (%d) does not match unique + duplicates + within_batch (%d)",
			r.Stats.TotalRows, total)
	}
	for idx := range r.Duplicates {
		if idx < 0 || idx >= r.Stats.TotalRows {
			return fmt.Errorf("duplicates contains invalid index %d (total: %d)", idx, r.Stats.TotalRows)
		}
		if _, exists := r.WithinBatch[idx]; exists {
			return fmt.Errorf("index %d appears in both duplicates and within_batch", idx)
		}
	}
	for dupIdx, origIdx := range r.WithinBatch {
		if dupIdx < 0 || dupIdx >= r.Stats.TotalRows {
			return fmt.Errorf("within_batch contains invalid duplicate index %d (total: %d)", dupIdx, r.Stats.TotalRows)
		}
		if origIdx < 0 || origIdx >= r.Stats.TotalRows {
			return fmt.Errorf("within_batch contains invalid original index %d (total: %d)", origIdx, r.Stats.TotalRows)
		}
		if dupIdx <= origIdx {
			return fmt.Errorf("within_batch: duplicate index %d must be > original index %d", dupIdx, origIdx)
		}
		if _, exists := r.Duplicates[origIdx]; exists {
			return fmt.Errorf("within_batch references index %d as original, but it appears in duplicates", origIdx)
		}
		if _, exists := r.WithinBatch[origIdx]; exists {
			return fmt.Errorf("within_batch references index %d as original, but it is also a duplicate", origIdx)
		}
	}
	return nil
}

// CheckRow scores a single candidate row against existing cases in the
// target module. An empty moduleID compares against the whole catalog.
func (d *Detector) CheckRow(ctx context.Context, row *types.WorkbookRow, moduleID string) (*Decision, error) {
	if len(row.Title) < d.config.MinTitleLength {
		return &Decision{IsDuplicate: false}, nil
	}

	existing, err := d.fetchCandidates(ctx, moduleID)
	if err != nil {
		if d.config.FailOpen {
			log.Printf("[DEDUP] candidate fetch failed, keeping row %s: %v", row.ID, err)
			return &Decision{IsDuplicate: false}, nil
		}
		return nil, err
	}

	decision := d.scoreAgainst(ctx, row.Title, existing, nil)
	return decision, nil
}

// CheckBatch scores every candidate row in a workbook against existing
// cases in the target module and against rows earlier in the batch. An
// empty moduleID compares against the whole catalog. Rows are not
// mutated; the caller applies the result via the storage layer.
func (d *Detector) CheckBatch(ctx context.Context, rows []*types.WorkbookRow, moduleID string) (*BatchResult, error) {
	start := time.Now()
	result := &BatchResult{
		Duplicates:  make(map[int]Match),
		WithinBatch: make(map[int]int),
	}
	result.Stats.TotalRows = len(rows)

	existing, err := d.fetchCandidates(ctx, moduleID)
	if err != nil {
		if d.config.FailOpen {
			log.Printf("[DEDUP] candidate fetch failed, keeping all %d rows: %v", len(rows), err)
			result.Stats.UniqueCount = len(rows)
			result.Stats.ProcessingTimeMs = time.Since(start).Milliseconds()
			return result, nil
		}
		return nil, err
	}

	// Titles of batch rows accepted as unique so far, for within-batch checks
	seen := make(map[int]string)

	for i, row := range rows {
		if len(row.Title) < d.config.MinTitleLength {
			result.Stats.UniqueCount++
			seen[i] = row.Title
			continue
		}

		decision := d.scoreAgainst(ctx, row.Title, existing, &result.Stats)
		if decision.IsDuplicate {
			result.Duplicates[i] = Match{CaseID: decision.DuplicateOf, Score: decision.Score}
			result.Stats.DuplicateCount++
			continue
		}

		if d.config.WithinBatch {
			if origIdx, _, ok := d.matchInBatch(row.Title, seen, &result.Stats); ok {
				result.WithinBatch[i] = origIdx
				result.Stats.WithinBatchCount++
				continue
			}
		}

		result.Stats.UniqueCount++
		seen[i] = row.Title
	}

	result.Stats.ProcessingTimeMs = time.Since(start).Milliseconds()
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("inconsistent detection result: %w", err)
	}
	return result, nil
}

func (d *Detector) fetchCandidates(ctx context.Context, moduleID string) ([]*types.TestCase, error) {
	// Deprecated cases are excluded by default; a re-import of a retired
	// case is a deliberate act, not a duplicate. Scoping to the target
	// module keeps similar titles in unrelated modules from crowding out
	// the candidates that matter.
	filter := types.CaseFilter{Limit: d.config.MaxCandidates}
	if moduleID != "" {
		filter.ModuleID = &moduleID
	}
	cases, err := d.store.ListCases(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch comparison candidates: %w", err)
	}
	return cases, nil
}

// scoreAgainst finds the best match for a title among existing cases and
// turns it into a decision, consulting the reviewer for ambiguous scores.
func (d *Detector) scoreAgainst(ctx context.Context, title string, existing []*types.TestCase, stats *Stats) *Decision {
	decision := &Decision{ComparedCount: len(existing)}

	bestScore := 0.0
	bestID := ""
	bestTitle := ""
	for _, c := range existing {
		score := Similarity(title, c.Title)
		if stats != nil {
			stats.ComparisonsMade++
		}
		if score > bestScore {
			bestScore = score
			bestID = c.ID
			bestTitle = c.Title
		}
	}
	decision.Score = bestScore

	if bestScore >= d.config.Threshold {
		decision.IsDuplicate = true
		decision.DuplicateOf = bestID
		return decision
	}

	// Ambiguous band: close enough to warrant a second opinion
	if d.reviewer != nil && bestScore >= d.config.Threshold-d.config.ReviewBand {
		reviewCtx, cancel := context.WithTimeout(ctx, d.config.ReviewTimeout)
		defer cancel()

		isDup, reasoning, err := d.reviewer.Review(reviewCtx, title, bestTitle)
		if stats != nil {
			stats.ReviewCallsMade++
		}
		if err != nil {
			// Reviewer failure never blocks an import
			log.Printf("[DEDUP] review failed for %q, accepting as unique: %v", title, err)
			return decision
		}
		if isDup {
			decision.IsDuplicate = true
			decision.DuplicateOf = bestID
			decision.Reasoning = reasoning
		}
	}

	return decision
}

// matchInBatch returns the earliest prior row whose title matches at or
// above the threshold
func (d *Detector) matchInBatch(title string, seen map[int]string, stats *Stats) (int, float64, bool) {
	bestIdx := -1
	bestScore := 0.0
	for idx, seenTitle := range seen {
		score := Similarity(title, seenTitle)
		if stats != nil {
			stats.ComparisonsMade++
		}
		if score >= d.config.Threshold && (bestIdx == -1 || idx < bestIdx) {
			bestIdx = idx
			bestScore = score
		}
	}
	if bestIdx == -1 {
		return 0, 0, false
	}
	return bestIdx, bestScore, true
}
