package search

import (
	"context"
	"path/filepath"
	"testing"

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

func seedExecutorData(t *testing.T, s *sqlite.SQLiteStorage) (moduleID, caseID, releaseID string) {
	t.Helper()
	ctx := context.Background()

	m := &types.Module{Name: "checkout"}
	require.NoError(t, s.CreateModule(ctx, m, "tester"))

	c := &types.TestCase{
		Title:      "Checkout with gift card",
		Steps:      "1. Add item\n2. Pay with gift card",
		ModuleID:   m.ID,
		Priority:   1,
		Status:     types.CaseDraft,
		Automation: types.AutomationAutomated,
		Source:     types.SourceManual,
	}
	require.NoError(t, s.CreateCase(ctx, c, "tester"))

	other := &types.TestCase{
		Title:      "Profile picture upload",
		Steps:      "1. Open profile\n2. Upload",
		Priority:   3,
		Status:     types.CaseDraft,
		Automation: types.AutomationManual,
		Source:     types.SourceManual,
	}
	require.NoError(t, s.CreateCase(ctx, other, "tester"))

	r := &types.Release{Name: "Summer", Version: "v2.1.0", Status: types.ReleasePlanned}
	require.NoError(t, s.CreateRelease(ctx, r, "tester"))
	require.NoError(t, s.LinkCase(ctx, r.ID, c.ID, "tester"))
	require.NoError(t, s.SetRunResult(ctx, r.ID, c.ID, types.RunFail, "tester"))

	return m.ID, c.ID, r.ID
}

func TestExecuteListWithModuleResolution(t *testing.T) {
	store := newTestStore(t)
	moduleID, caseID, _ := seedExecutorData(t, store)
	_ = moduleID

	c := NewClassifier()
	results, err := Execute(context.Background(), store, c.Classify("automated cases in the checkout module"))
	require.NoError(t, err)
	require.Len(t, results.Cases, 1)
	assert.Equal(t, caseID, results.Cases[0].ID)
}

func TestExecuteUnknownModule(t *testing.T) {
	store := newTestStore(t)
	seedExecutorData(t, store)

	c := NewClassifier()
	_, err := Execute(context.Background(), store, c.Classify("cases in the warehouse module"))
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlite.ErrNotFound)
}

func TestExecuteCount(t *testing.T) {
	store := newTestStore(t)
	seedExecutorData(t, store)

	c := NewClassifier()
	results, err := Execute(context.Background(), store, c.Classify("how many manual cases"))
	require.NoError(t, err)
	require.NotNil(t, results.Count)
	assert.Equal(t, 1, *results.Count)
}

func TestExecuteFailures(t *testing.T) {
	store := newTestStore(t)
	_, caseID, _ := seedExecutorData(t, store)

	c := NewClassifier()
	results, err := Execute(context.Background(), store, c.Classify("failures in release v2.1.0"))
	require.NoError(t, err)
	require.Len(t, results.Runs, 1)
	assert.Equal(t, caseID, results.Runs[0].CaseID)
	assert.Equal(t, types.RunFail, results.Runs[0].Status)

	_, err = Execute(context.Background(), store, c.Classify("failures in release v9.9.9"))
	assert.Error(t, err)
}

func TestExecuteStories(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.UpsertStory(context.Background(),
		&types.Story{Key: "PROJ-1", Summary: "A story", Status: "Done"}))

	c := NewClassifier()
	results, err := Execute(context.Background(), store, c.Classify("list stories"))
	require.NoError(t, err)
	require.Len(t, results.Stories, 1)
	assert.Equal(t, "PROJ-1", results.Stories[0].Key)
}
