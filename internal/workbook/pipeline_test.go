package workbook

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow/caseflow/internal/dedup"
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

const sampleCSV = `title,steps,expected result,priority
Login with valid credentials,1. Open page 2. Log in,Dashboard shown,1
Export release report as PDF,1. Open release 2. Click export,PDF downloads,2
`

func TestImportCreatesPendingWorkbook(t *testing.T) {
	store := newTestStore(t)
	pipeline := NewPipeline(store, dedup.NewDetector(store, dedup.DefaultConfig()))

	summary, err := pipeline.Import(context.Background(), strings.NewReader(sampleCSV),
		"sprint-42", "sprint42.csv", "", "importer")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 0, summary.Flagged)
	assert.Equal(t, types.WorkbookPending, summary.Workbook.Status)
	assert.Equal(t, 2, summary.Workbook.RowCount)

	rows, err := store.GetWorkbookRows(context.Background(), summary.Workbook.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, types.RowPending, rows[0].Status)
}

func TestImportFlagsDuplicates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	existing := &types.TestCase{
		Title:      "Login with valid credentials",
		Steps:      "old steps",
		Priority:   2,
		Status:     types.CaseDraft,
		Automation: types.AutomationManual,
		Source:     types.SourceManual,
	}
	require.NoError(t, store.CreateCase(ctx, existing, "tester"))

	pipeline := NewPipeline(store, dedup.NewDetector(store, dedup.DefaultConfig()))
	summary, err := pipeline.Import(ctx, strings.NewReader(sampleCSV),
		"sprint-42", "sprint42.csv", "", "importer")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Flagged)

	rows, err := store.GetWorkbookRows(ctx, summary.Workbook.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RowDuplicate, rows[0].Status)
	assert.Equal(t, existing.ID, rows[0].DuplicateOf)
	assert.GreaterOrEqual(t, rows[0].Similarity, 0.85)
	assert.Equal(t, types.RowPending, rows[1].Status)
}

func TestImportScopesDetectionToTargetModule(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	payments := &types.Module{Name: "Payments"}
	require.NoError(t, store.CreateModule(ctx, payments, "tester"))
	onboarding := &types.Module{Name: "Onboarding"}
	require.NoError(t, store.CreateModule(ctx, onboarding, "tester"))

	existing := &types.TestCase{
		Title:      "Login with valid credentials",
		Steps:      "old steps",
		ModuleID:   payments.ID,
		Priority:   2,
		Status:     types.CaseDraft,
		Automation: types.AutomationManual,
		Source:     types.SourceManual,
	}
	require.NoError(t, store.CreateCase(ctx, existing, "tester"))

	// The same title imported for a different module is not a duplicate
	pipeline := NewPipeline(store, dedup.NewDetector(store, dedup.DefaultConfig()))
	summary, err := pipeline.Import(ctx, strings.NewReader(sampleCSV),
		"sprint-42", "sprint42.csv", onboarding.ID, "importer")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Flagged)

	rows, err := store.GetWorkbookRows(ctx, summary.Workbook.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RowPending, rows[0].Status)

	// Importing into the module that holds the case still flags it
	summary, err = pipeline.Import(ctx, strings.NewReader(sampleCSV),
		"sprint-43", "sprint43.csv", payments.ID, "importer")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Flagged)
}

func TestImportFlagsWithinBatchDuplicates(t *testing.T) {
	store := newTestStore(t)

	csv := `title,steps
Export release report as PDF,step one
Export release report as PDF,step one again
`
	pipeline := NewPipeline(store, dedup.NewDetector(store, dedup.DefaultConfig()))
	summary, err := pipeline.Import(context.Background(), strings.NewReader(csv),
		"dupes", "dupes.csv", "", "importer")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Flagged)

	rows, err := store.GetWorkbookRows(context.Background(), summary.Workbook.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RowPending, rows[0].Status)
	assert.Equal(t, types.RowDuplicate, rows[1].Status)
	// Within-batch duplicates point at the surviving row
	assert.Equal(t, rows[0].ID, rows[1].DuplicateOf)
}

func TestImportWithoutDetector(t *testing.T) {
	store := newTestStore(t)
	pipeline := NewPipeline(store, nil)

	summary, err := pipeline.Import(context.Background(), strings.NewReader(sampleCSV),
		"sprint-42", "sprint42.csv", "", "importer")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Flagged)
}

func TestImportRejectsUnusableCSV(t *testing.T) {
	store := newTestStore(t)
	pipeline := NewPipeline(store, nil)

	_, err := pipeline.Import(context.Background(),
		strings.NewReader("title,steps\n,\n"), "empty", "empty.csv", "", "importer")
	assert.Error(t, err)
}

func TestApproveRowMaterializesCase(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	module := &types.Module{Name: "Reporting"}
	require.NoError(t, store.CreateModule(ctx, module, "tester"))

	pipeline := NewPipeline(store, nil)
	summary, err := pipeline.Import(ctx, strings.NewReader(sampleCSV),
		"sprint-42", "sprint42.csv", module.ID, "importer")
	require.NoError(t, err)

	rows, err := store.GetWorkbookRows(ctx, summary.Workbook.ID)
	require.NoError(t, err)

	c, err := pipeline.ApproveRow(ctx, rows[0].ID, "reviewer")
	require.NoError(t, err)

	assert.Equal(t, "Login with valid credentials", c.Title)
	assert.Equal(t, module.ID, c.ModuleID)
	assert.Equal(t, types.SourceWorkbook, c.Source)
	assert.Equal(t, summary.Workbook.ID, c.SourceRef)
	assert.Equal(t, types.CaseDraft, c.Status)
	assert.Equal(t, 1, c.Priority)

	reviewed, err := store.GetWorkbookRow(ctx, rows[0].ID)
	require.NoError(t, err)
	assert.Equal(t, types.RowApproved, reviewed.Status)
	assert.Equal(t, c.ID, reviewed.CaseID)

	// A second approval of the same row fails
	_, err = pipeline.ApproveRow(ctx, rows[0].ID, "reviewer")
	assert.Error(t, err)
}

func TestApproveAllPendingSkipsFlaggedRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	existing := &types.TestCase{
		Title:      "Login with valid credentials",
		Steps:      "old steps",
		Priority:   2,
		Status:     types.CaseDraft,
		Automation: types.AutomationManual,
		Source:     types.SourceManual,
	}
	require.NoError(t, store.CreateCase(ctx, existing, "tester"))

	pipeline := NewPipeline(store, dedup.NewDetector(store, dedup.DefaultConfig()))
	summary, err := pipeline.Import(ctx, strings.NewReader(sampleCSV),
		"sprint-42", "sprint42.csv", "", "importer")
	require.NoError(t, err)

	approved, err := pipeline.ApproveAllPending(ctx, summary.Workbook.ID, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, 1, approved)

	// The duplicate row was left for an explicit decision, so the
	// workbook is still in review
	status, err := pipeline.Finalize(ctx, summary.Workbook.ID, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, types.WorkbookReviewing, status)

	// Overruling the detector: approve the flagged row explicitly
	rows, err := store.GetWorkbookRows(ctx, summary.Workbook.ID)
	require.NoError(t, err)
	_, err = pipeline.ApproveRow(ctx, rows[0].ID, "reviewer")
	require.NoError(t, err)

	status, err = pipeline.Finalize(ctx, summary.Workbook.ID, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, types.WorkbookApproved, status)
}

func TestRejectRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pipeline := NewPipeline(store, nil)
	summary, err := pipeline.Import(ctx, strings.NewReader(sampleCSV),
		"sprint-42", "sprint42.csv", "", "importer")
	require.NoError(t, err)

	rows, err := store.GetWorkbookRows(ctx, summary.Workbook.ID)
	require.NoError(t, err)

	require.NoError(t, pipeline.RejectRow(ctx, rows[0].ID, "reviewer"))
	require.NoError(t, pipeline.RejectRow(ctx, rows[1].ID, "reviewer"))

	status, err := pipeline.Finalize(ctx, summary.Workbook.ID, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, types.WorkbookRejected, status)
}
