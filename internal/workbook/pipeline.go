package workbook

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/caseflow/caseflow/internal/dedup"
	"github.com/caseflow/caseflow/internal/storage"
	"github.com/caseflow/caseflow/internal/types"
)

// Pipeline drives a workbook from CSV import through review to
// materialized test cases.
type Pipeline struct {
	store    storage.Storage
	detector *dedup.Detector
}

// NewPipeline creates an import pipeline. The detector may be nil to skip
// duplicate detection entirely.
func NewPipeline(store storage.Storage, detector *dedup.Detector) *Pipeline {
	return &Pipeline{store: store, detector: detector}
}

// ImportSummary reports what one CSV import produced
type ImportSummary struct {
	Workbook *types.Workbook `json:"workbook"`
	Imported int             `json:"imported"`
	Skipped  int             `json:"skipped"`
	Flagged  int             `json:"flagged"`
	Errors   []RowError      `json:"errors,omitempty"`
}

// Import parses a CSV workbook, persists it in pending state, and flags
// rows that duplicate existing cases in the target module or earlier rows
// in the same batch.
func (p *Pipeline) Import(ctx context.Context, r io.Reader, name, sourceFile, moduleID, actor string) (*ImportSummary, error) {
	parsed, err := ParseCSV(r)
	if err != nil {
		return nil, err
	}
	if len(parsed.Rows) == 0 {
		return nil, fmt.Errorf("no usable rows in workbook (%d errors, %d empty)",
			len(parsed.Errors), parsed.Skipped)
	}

	w := &types.Workbook{
		Name:       name,
		SourceFile: sourceFile,
		ModuleID:   moduleID,
		Status:     types.WorkbookPending,
		CreatedBy:  actor,
	}
	if err := p.store.CreateWorkbook(ctx, w, parsed.Rows, actor); err != nil {
		return nil, err
	}

	summary := &ImportSummary{
		Workbook: w,
		Imported: len(parsed.Rows),
		Skipped:  parsed.Skipped,
		Errors:   parsed.Errors,
	}

	if p.detector == nil {
		return summary, nil
	}

	result, err := p.detector.CheckBatch(ctx, parsed.Rows, w.ModuleID)
	if err != nil {
		// Detection is advisory. The workbook is already persisted, so a
		// reviewer can still work through it by hand.
		log.Printf("[WORKBOOK] duplicate detection failed for %s: %v", w.ID, err)
		return summary, nil
	}

	for idx, match := range result.Duplicates {
		if err := p.store.MarkRowDuplicate(ctx, parsed.Rows[idx].ID, match.CaseID, match.Score); err != nil {
			return summary, fmt.Errorf("failed to flag row %d: %w", idx, err)
		}
		summary.Flagged++
	}
	for dupIdx, origIdx := range result.WithinBatch {
		// Within-batch duplicates point at the surviving row, not a case
		if err := p.store.MarkRowDuplicate(ctx, parsed.Rows[dupIdx].ID, parsed.Rows[origIdx].ID, 1.0); err != nil {
			return summary, fmt.Errorf("failed to flag row %d: %w", dupIdx, err)
		}
		summary.Flagged++
	}

	log.Printf("[WORKBOOK] imported %s: %d rows, %d flagged, %d errors",
		w.ID, summary.Imported, summary.Flagged, len(summary.Errors))
	return summary, nil
}

// ApproveRow materializes a candidate row as a real test case and stamps
// the review. Rows flagged as duplicates can still be approved; that is
// the reviewer overruling the detector.
func (p *Pipeline) ApproveRow(ctx context.Context, rowID, reviewer string) (*types.TestCase, error) {
	row, err := p.store.GetWorkbookRow(ctx, rowID)
	if err != nil {
		return nil, err
	}

	w, err := p.store.GetWorkbook(ctx, row.WorkbookID)
	if err != nil {
		return nil, err
	}

	c := row.ToCase(w.ID, w.ModuleID)
	if err := p.store.CreateCase(ctx, c, reviewer); err != nil {
		return nil, fmt.Errorf("failed to materialize row %s: %w", rowID, err)
	}

	if err := p.store.ReviewRow(ctx, rowID, types.RowApproved, reviewer, c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

// RejectRow stamps a rejection onto a candidate row
func (p *Pipeline) RejectRow(ctx context.Context, rowID, reviewer string) error {
	return p.store.ReviewRow(ctx, rowID, types.RowRejected, reviewer, "")
}

// ApproveAllPending approves every still-pending row of a workbook.
// Duplicate-flagged rows are left alone; those need an explicit decision.
func (p *Pipeline) ApproveAllPending(ctx context.Context, workbookID, reviewer string) (int, error) {
	rows, err := p.store.GetWorkbookRows(ctx, workbookID)
	if err != nil {
		return 0, err
	}

	approved := 0
	for _, row := range rows {
		if row.Status != types.RowPending {
			continue
		}
		if _, err := p.ApproveRow(ctx, row.ID, reviewer); err != nil {
			return approved, fmt.Errorf("row %d: %w", row.LineNumber, err)
		}
		approved++
	}
	return approved, nil
}

// Finalize derives and stores the workbook's terminal status
func (p *Pipeline) Finalize(ctx context.Context, workbookID, actor string) (types.WorkbookStatus, error) {
	return p.store.FinalizeWorkbook(ctx, workbookID, actor)
}
