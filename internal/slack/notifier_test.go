package slack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow/caseflow/internal/types"
)

func TestPostMessage(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer server.Close()

	n := NewNotifier(server.URL)
	require.True(t, n.Enabled())
	require.NoError(t, n.PostMessage(context.Background(), "hello channel"))
	assert.Equal(t, "hello channel", got["text"])
}

func TestPostMessageDisabled(t *testing.T) {
	n := NewNotifier("")
	assert.False(t, n.Enabled())
	// No webhook, no error, no network call
	assert.NoError(t, n.PostMessage(context.Background(), "dropped"))
}

func TestPostMessageNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_payload", http.StatusBadRequest)
	}))
	defer server.Close()

	err := NewNotifier(server.URL).PostMessage(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestHelpers(t *testing.T) {
	var messages []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		messages = append(messages, payload["text"])
	}))
	defer server.Close()

	n := NewNotifier(server.URL)
	ctx := context.Background()

	release := &types.Release{Name: "Summer", Version: "v2.0.0"}
	summary := &types.ReleaseSummary{TotalCases: 40, PassRate: 0.95}
	require.NoError(t, n.ReleasePublished(ctx, release, summary))

	workbook := &types.Workbook{Name: "sprint-42", RowCount: 20}
	require.NoError(t, n.WorkbookApproved(ctx, workbook, 18))

	require.NoError(t, n.JIRASyncCompleted(ctx, 12, 3))
	require.NoError(t, n.JIRASyncFailed(ctx, errors.New("boom")))

	require.Len(t, messages, 4)
	assert.Contains(t, messages[0], "Summer")
	assert.Contains(t, messages[0], "95% pass rate")
	assert.Contains(t, messages[1], "18 of 20")
	assert.Contains(t, messages[2], "12 stories")
	assert.Contains(t, messages[3], "boom")
}
