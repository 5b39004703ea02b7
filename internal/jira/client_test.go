package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastRetry keeps test runs quick
func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:            2,
		InitialBackoff:        time.Millisecond,
		MaxBackoff:            5 * time.Millisecond,
		BackoffMultiplier:     2.0,
		Timeout:               5 * time.Second,
		CircuitBreakerEnabled: false,
	}
}

func issuePage(startAt, total int, issues ...Issue) SearchPage {
	return SearchPage{StartAt: startAt, MaxResults: len(issues), Total: total, Issues: issues}
}

func storyIssue(key, summary string) Issue {
	return Issue{Key: key, Fields: IssueFields{
		Summary:   summary,
		Status:    NamedField{Name: "In Progress"},
		IssueType: NamedField{Name: "Story"},
	}}
}

func TestSearchSendsAuthAndParams(t *testing.T) {
	var gotAuth, gotJQL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		gotAuth = user + ":" + pass
		gotJQL = r.URL.Query().Get("jql")
		_ = json.NewEncoder(w).Encode(issuePage(0, 1, storyIssue("PROJ-1", "First story")))
	}))
	defer server.Close()

	client := NewClient(server.URL, "qa@example.com", "token123").WithRetryConfig(fastRetry())
	page, err := client.Search(context.Background(), "project = PROJ", 0, 50)
	require.NoError(t, err)

	assert.Equal(t, "qa@example.com:token123", gotAuth)
	assert.Equal(t, "project = PROJ", gotJQL)
	require.Len(t, page.Issues, 1)
	assert.Equal(t, "PROJ-1", page.Issues[0].Key)
	assert.Equal(t, "First story", page.Issues[0].Fields.Summary)
}

func TestSearchAllFollowsPaging(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startAt, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
		switch startAt {
		case 0:
			_ = json.NewEncoder(w).Encode(issuePage(0, 3,
				storyIssue("PROJ-1", "one"), storyIssue("PROJ-2", "two")))
		case 2:
			_ = json.NewEncoder(w).Encode(issuePage(2, 3, storyIssue("PROJ-3", "three")))
		default:
			t.Errorf("unexpected startAt %d", startAt)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "qa@example.com", "token").WithRetryConfig(fastRetry())
	issues, err := client.SearchAll(context.Background(), "project = PROJ", 2)
	require.NoError(t, err)
	require.Len(t, issues, 3)
	assert.Equal(t, "PROJ-3", issues[2].Key)
}

func TestSearchRetriesOn429(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(issuePage(0, 0))
	}))
	defer server.Close()

	client := NewClient(server.URL, "qa@example.com", "token").WithRetryConfig(fastRetry())
	_, err := client.Search(context.Background(), "project = PROJ", 0, 50)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearchRetriesOn500(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(issuePage(0, 0))
	}))
	defer server.Close()

	client := NewClient(server.URL, "qa@example.com", "token").WithRetryConfig(fastRetry())
	_, err := client.Search(context.Background(), "project = PROJ", 0, 50)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSearchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"errorMessages":["bad credentials"]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "qa@example.com", "bad").WithRetryConfig(fastRetry())
	_, err := client.Search(context.Background(), "project = PROJ", 0, 50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetIssue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/issue/PROJ-7", r.URL.Path)
		_ = json.NewEncoder(w).Encode(storyIssue("PROJ-7", "Fetched directly"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "qa@example.com", "token").WithRetryConfig(fastRetry())
	issue, err := client.GetIssue(context.Background(), "PROJ-7")
	require.NoError(t, err)
	assert.Equal(t, "PROJ-7", issue.Key)
	assert.Equal(t, "Fetched directly", issue.Fields.Summary)
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker(2, 1, 10*time.Millisecond)
	require.NoError(t, cb.Allow())

	cb.RecordFailure()
	require.NoError(t, cb.Allow())
	cb.RecordFailure()

	// Threshold reached: open, fail fast
	assert.Equal(t, CircuitOpen, cb.GetState())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	// After the open timeout a probe is allowed
	time.Sleep(15 * time.Millisecond)
	require.NoError(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.GetState())

	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.GetState())
}

func TestCircuitBreakerReopensOnProbeFailure(t *testing.T) {
	cb := NewCircuitBreaker(1, 1, 10*time.Millisecond)
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.GetState())

	time.Sleep(15 * time.Millisecond)
	require.NoError(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.GetState())
}

func TestClientFailsFastWhenCircuitOpen(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	retry := fastRetry()
	retry.CircuitBreakerEnabled = true
	retry.FailureThreshold = 2
	retry.SuccessThreshold = 1
	retry.OpenTimeout = time.Minute

	client := NewClient(server.URL, "qa@example.com", "token").WithRetryConfig(retry)
	_, err := client.Search(context.Background(), "project = PROJ", 0, 50)
	require.Error(t, err)

	// Circuit opened mid-retry: two failures hit the server, the third
	// attempt was blocked
	assert.Equal(t, int32(2), calls.Load())
	assert.ErrorIs(t, err, ErrCircuitOpen)

	// Subsequent calls do not touch the server at all
	_, err = client.Search(context.Background(), "project = PROJ", 0, 50)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}
