package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow/caseflow/internal/types"
)

func (ts *testServer) createRelease(t *testing.T, name, version string) *types.Release {
	t.Helper()
	var rel types.Release
	resp := ts.do(t, http.MethodPost, "/api/releases", map[string]string{
		"name": name, "version": version,
	}, &rel)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return &rel
}

func TestReleaseLifecycle(t *testing.T) {
	ts := newTestServer(t)
	rel := ts.createRelease(t, "Summer", "v2.0.0")
	assert.Equal(t, types.ReleasePlanned, rel.Status)

	var updated types.Release
	resp := ts.do(t, http.MethodPatch, "/api/releases/"+rel.ID, map[string]string{
		"status": "in_progress",
	}, &updated)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, types.ReleaseInProgress, updated.Status)
}

func TestReleaseIllegalTransition(t *testing.T) {
	ts := newTestServer(t)
	rel := ts.createRelease(t, "Summer", "v2.0.0")

	ts.do(t, http.MethodPatch, "/api/releases/"+rel.ID, map[string]string{"status": "released"}, nil)

	var body map[string]string
	resp := ts.do(t, http.MethodPatch, "/api/releases/"+rel.ID, map[string]string{
		"status": "planned",
	}, &body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestReleaseCaseLinkAndResult(t *testing.T) {
	ts := newTestServer(t)
	rel := ts.createRelease(t, "Summer", "v2.0.0")
	c := ts.createCase(t, "Checkout happy path")

	resp := ts.do(t, http.MethodPost, "/api/releases/"+rel.ID+"/cases/"+c.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodPut, "/api/releases/"+rel.ID+"/cases/"+c.ID+"/result",
		map[string]string{"status": "pass"}, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	var summary types.ReleaseSummary
	resp = ts.do(t, http.MethodGet, "/api/releases/"+rel.ID+"/summary", nil, &summary)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, summary.TotalCases)
	assert.Equal(t, 1, summary.ByRunStatus[types.RunPass])

	resp = ts.do(t, http.MethodDelete, "/api/releases/"+rel.ID+"/cases/"+c.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestSetRunResultInvalidStatus(t *testing.T) {
	ts := newTestServer(t)
	rel := ts.createRelease(t, "Summer", "v2.0.0")
	c := ts.createCase(t, "Checkout happy path")
	ts.do(t, http.MethodPost, "/api/releases/"+rel.ID+"/cases/"+c.ID, nil, nil)

	resp := ts.do(t, http.MethodPut, "/api/releases/"+rel.ID+"/cases/"+c.ID+"/result",
		map[string]string{"status": "maybe"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReleaseStoryAndTicketLinks(t *testing.T) {
	ts := newTestServer(t)
	rel := ts.createRelease(t, "Summer", "v2.0.0")

	require.NoError(t, ts.store.UpsertStory(context.Background(), &types.Story{
		Key: "PROJ-1", Summary: "Checkout redesign", Status: "Done",
	}))
	require.NoError(t, ts.store.UpsertTicket(context.Background(), &types.ProductionTicket{
		Key: "PROJ-9", Summary: "Checkout 500s", Severity: types.SeverityHigh, Status: "Open",
	}))

	resp := ts.do(t, http.MethodPost, "/api/releases/"+rel.ID+"/stories/PROJ-1", nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = ts.do(t, http.MethodPost, "/api/releases/"+rel.ID+"/tickets/PROJ-9", nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	var summary types.ReleaseSummary
	ts.do(t, http.MethodGet, "/api/releases/"+rel.ID+"/summary", nil, &summary)
	assert.Len(t, summary.Stories, 1)
	assert.Len(t, summary.Tickets, 1)
}

func TestStoryEndpoints(t *testing.T) {
	ts := newTestServer(t)
	c := ts.createCase(t, "Checkout happy path")
	require.NoError(t, ts.store.UpsertStory(context.Background(), &types.Story{
		Key: "PROJ-1", Summary: "Checkout redesign", Status: "Done",
	}))

	resp := ts.do(t, http.MethodPost, "/api/stories/PROJ-1/cases/"+c.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	var story types.Story
	resp = ts.do(t, http.MethodGet, "/api/stories/PROJ-1", nil, &story)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Checkout redesign", story.Summary)

	var cases struct {
		Cases []*types.TestCase `json:"cases"`
	}
	ts.do(t, http.MethodGet, "/api/stories/PROJ-1/cases", nil, &cases)
	require.Len(t, cases.Cases, 1)
	assert.Equal(t, c.ID, cases.Cases[0].ID)

	var tickets struct {
		Count int `json:"count"`
	}
	resp = ts.do(t, http.MethodGet, "/api/tickets", nil, &tickets)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, tickets.Count)
}

const workbookCSV = `Title,Steps,Expected Result,Priority
Login with valid credentials,1. Open login page,User lands on dashboard,1
Reset password via email,1. Click forgot password,Reset email arrives,2
`

func (ts *testServer) importWorkbook(t *testing.T, csv, query string) map[string]interface{} {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/workbooks?"+query, strings.NewReader(csv))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/csv")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var summary map[string]interface{}
	require.NoError(t, jsonDecode(resp.Body, &summary))
	return summary
}

func TestWorkbookImportAndReview(t *testing.T) {
	ts := newTestServer(t)
	summary := ts.importWorkbook(t, workbookCSV, "name=sprint-42")

	wb := summary["workbook"].(map[string]interface{})
	wbID := wb["id"].(string)
	assert.Equal(t, float64(2), summary["imported"])

	var rows struct {
		Rows []*types.WorkbookRow `json:"rows"`
	}
	resp := ts.do(t, http.MethodGet, "/api/workbooks/"+wbID+"/rows", nil, &rows)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, rows.Rows, 2)

	var created types.TestCase
	resp = ts.do(t, http.MethodPost, "/api/workbooks/"+wbID+"/rows/"+rows.Rows[0].ID+"/approve", nil, &created)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Login with valid credentials", created.Title)
	assert.Equal(t, types.SourceWorkbook, created.Source)

	resp = ts.do(t, http.MethodPost, "/api/workbooks/"+wbID+"/rows/"+rows.Rows[1].ID+"/reject", nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestWorkbookApproveAll(t *testing.T) {
	ts := newTestServer(t)
	summary := ts.importWorkbook(t, workbookCSV, "name=sprint-43")
	wbID := summary["workbook"].(map[string]interface{})["id"].(string)

	var result struct {
		Approved int                  `json:"approved"`
		Status   types.WorkbookStatus `json:"status"`
	}
	resp := ts.do(t, http.MethodPost, "/api/workbooks/"+wbID+"/approve-all", nil, &result)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, result.Approved)
	assert.Equal(t, types.WorkbookApproved, result.Status)
}

func TestWorkbookImportRequiresName(t *testing.T) {
	ts := newTestServer(t)
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/workbooks", strings.NewReader(workbookCSV))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWorkbookImportUnknownModule(t *testing.T) {
	ts := newTestServer(t)
	req, err := http.NewRequest(http.MethodPost,
		ts.URL+"/api/workbooks?name=x&module_id=md-99", strings.NewReader(workbookCSV))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

const loginFeature = `@module:auth
Feature: Login

  Scenario: Valid credentials
    Given a registered user
    When they sign in with a valid password
    Then they land on the dashboard
`

func TestPublishFeature(t *testing.T) {
	ts := newTestServer(t)
	var m types.Module
	ts.do(t, http.MethodPost, "/api/modules", map[string]string{"name": "auth"}, &m)

	req, err := http.NewRequest(http.MethodPost,
		ts.URL+"/api/features/publish?filename=login.feature", strings.NewReader(loginFeature))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		ModuleID string   `json:"module_id"`
		CaseIDs  []string `json:"case_ids"`
	}
	require.NoError(t, jsonDecode(resp.Body, &result))
	assert.Equal(t, m.ID, result.ModuleID)
	require.Len(t, result.CaseIDs, 1)

	var c types.TestCase
	ts.do(t, http.MethodGet, "/api/testcases/"+result.CaseIDs[0], nil, &c)
	assert.Equal(t, types.SourceFeatureFile, c.Source)
	assert.Contains(t, c.SourceRef, "login.feature")
}

func TestPublishFeatureUnknownModule(t *testing.T) {
	ts := newTestServer(t)
	req, err := http.NewRequest(http.MethodPost,
		ts.URL+"/api/features/publish", strings.NewReader(loginFeature))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReleaseReportPDF(t *testing.T) {
	ts := newTestServer(t)
	rel := ts.createRelease(t, "Summer", "v2.0.0")
	c := ts.createCase(t, "Checkout happy path")
	ts.do(t, http.MethodPost, "/api/releases/"+rel.ID+"/cases/"+c.ID, nil, nil)

	resp, err := http.Get(ts.URL + "/api/reports/releases/" + rel.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestReleaseReportNotFound(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/reports/releases/rel-99")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
