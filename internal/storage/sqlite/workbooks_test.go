package sqlite

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow/caseflow/internal/types"
)

func candidateRow(line int, title string) *types.WorkbookRow {
	return &types.WorkbookRow{
		ID:             uuid.NewString(),
		LineNumber:     line,
		Title:          title,
		Steps:          "1. Do the thing\n2. Check the result",
		ExpectedResult: "It works",
		Priority:       2,
		Status:         types.RowPending,
	}
}

func importWorkbook(t *testing.T, s *SQLiteStorage, rows ...*types.WorkbookRow) *types.Workbook {
	t.Helper()
	w := &types.Workbook{
		Name:       "regression-pack",
		SourceFile: "regression.csv",
		Status:     types.WorkbookPending,
		CreatedBy:  "importer",
	}
	require.NoError(t, s.CreateWorkbook(context.Background(), w, rows, "importer"))
	return w
}

func TestCreateWorkbookRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	r1 := candidateRow(2, "Login with valid credentials")
	r1.Tags = []string{"auth"}
	r2 := candidateRow(3, "Login with bad password")
	w := importWorkbook(t, s, r1, r2)

	assert.Equal(t, "wb-1", w.ID)
	assert.Equal(t, 2, w.RowCount)

	got, err := s.GetWorkbook(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, types.WorkbookPending, got.Status)

	rows, err := s.GetWorkbookRows(ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].LineNumber)
	assert.Equal(t, []string{"auth"}, rows[0].Tags)
	assert.Equal(t, w.ID, rows[0].WorkbookID)

	// The import itself is in the audit trail
	events, err := s.GetEvents(ctx, w.ID, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.EventImported, events[0].EventType)
}

func TestReviewRowFlow(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	r1 := candidateRow(2, "Approve me")
	r2 := candidateRow(3, "Reject me")
	w := importWorkbook(t, s, r1, r2)

	// Materialize the approved row as a case, then stamp the review
	c := r1.ToCase(w.ID, "")
	require.NoError(t, s.CreateCase(ctx, c, "reviewer"))
	require.NoError(t, s.ReviewRow(ctx, r1.ID, types.RowApproved, "reviewer", c.ID))

	got, err := s.GetWorkbookRow(ctx, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RowApproved, got.Status)
	assert.Equal(t, "reviewer", got.ReviewedBy)
	assert.Equal(t, c.ID, got.CaseID)
	require.NotNil(t, got.ReviewedAt)

	// First review moves the workbook out of pending
	wb, err := s.GetWorkbook(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, types.WorkbookReviewing, wb.Status)

	// Reviews are once-only, and only approve/reject are valid decisions
	assert.Error(t, s.ReviewRow(ctx, r1.ID, types.RowRejected, "reviewer", ""))
	assert.Error(t, s.ReviewRow(ctx, r2.ID, types.RowPending, "reviewer", ""))

	require.NoError(t, s.ReviewRow(ctx, r2.ID, types.RowRejected, "reviewer", ""))
}

func TestMarkRowDuplicate(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	existing := draftCase("Login with valid credentials")
	require.NoError(t, s.CreateCase(ctx, existing, "tester"))

	r1 := candidateRow(2, "Login with valid credential")
	w := importWorkbook(t, s, r1)
	_ = w

	require.NoError(t, s.MarkRowDuplicate(ctx, r1.ID, existing.ID, 0.93))

	got, err := s.GetWorkbookRow(ctx, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RowDuplicate, got.Status)
	assert.Equal(t, existing.ID, got.DuplicateOf)
	assert.InDelta(t, 0.93, got.Similarity, 0.0001)

	// Only pending rows can be flagged
	err = s.MarkRowDuplicate(ctx, r1.ID, existing.ID, 0.93)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFinalizeWorkbook(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	t.Run("pending rows keep it reviewing", func(t *testing.T) {
		r1 := candidateRow(2, "Reviewed")
		r2 := candidateRow(3, "Still pending")
		w := importWorkbook(t, s, r1, r2)

		require.NoError(t, s.ReviewRow(ctx, r1.ID, types.RowRejected, "reviewer", ""))
		status, err := s.FinalizeWorkbook(ctx, w.ID, "reviewer")
		require.NoError(t, err)
		assert.Equal(t, types.WorkbookReviewing, status)
	})

	t.Run("any approval approves the workbook", func(t *testing.T) {
		r1 := candidateRow(2, "Good row")
		r2 := candidateRow(3, "Bad row")
		w := importWorkbook(t, s, r1, r2)

		c := r1.ToCase(w.ID, "")
		require.NoError(t, s.CreateCase(ctx, c, "reviewer"))
		require.NoError(t, s.ReviewRow(ctx, r1.ID, types.RowApproved, "reviewer", c.ID))
		require.NoError(t, s.ReviewRow(ctx, r2.ID, types.RowRejected, "reviewer", ""))

		status, err := s.FinalizeWorkbook(ctx, w.ID, "reviewer")
		require.NoError(t, err)
		assert.Equal(t, types.WorkbookApproved, status)
	})

	t.Run("all rejected rejects the workbook", func(t *testing.T) {
		r1 := candidateRow(2, "Only row")
		w := importWorkbook(t, s, r1)

		require.NoError(t, s.ReviewRow(ctx, r1.ID, types.RowRejected, "reviewer", ""))
		status, err := s.FinalizeWorkbook(ctx, w.ID, "reviewer")
		require.NoError(t, err)
		assert.Equal(t, types.WorkbookRejected, status)
	})

	t.Run("unknown workbook", func(t *testing.T) {
		_, err := s.FinalizeWorkbook(ctx, "wb-999", "reviewer")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestEventCleanup(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	// Each create writes one event; updates write more
	c := draftCase("Busy case")
	require.NoError(t, s.CreateCase(ctx, c, "tester"))
	for i := 0; i < 9; i++ {
		require.NoError(t, s.AddTag(ctx, c.ID, uuid.NewString()[:8], "tester"))
	}

	counts, err := s.GetEventCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, counts.TotalEvents)
	assert.Equal(t, 10, counts.EventsByEntity[c.ID])

	// Nothing is old enough to age out
	deleted, err := s.CleanupEventsByAge(ctx, 30, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)

	// Per-entity trim keeps the newest events
	deleted, err = s.CleanupEventsByEntityLimit(ctx, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, 6, deleted)

	events, err := s.GetEvents(ctx, c.ID, 0)
	require.NoError(t, err)
	assert.Len(t, events, 4)

	// Global cap
	deleted, err = s.CleanupEventsByGlobalLimit(ctx, 2, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	counts, err = s.GetEventCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.TotalEvents)

	// Limit 0 means unlimited for the per-entity pass
	deleted, err = s.CleanupEventsByEntityLimit(ctx, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}
