package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// storyPointsField is JIRA's default custom field for story points
const storyPointsField = "customfield_10016"

// Client is a minimal JIRA REST v2 client: JQL search with paging and
// single-issue fetch, authenticated with email + API token. Requests are
// rate limited client-side and retried with backoff.
type Client struct {
	baseURL    string
	email      string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryConfig
	breaker    *CircuitBreaker
}

// NewClient creates a JIRA client. baseURL is the instance root, e.g.
// https://example.atlassian.net
func NewClient(baseURL, email, token string) *Client {
	retry := DefaultRetryConfig()
	c := &Client{
		baseURL:    baseURL,
		email:      email,
		token:      token,
		httpClient: &http.Client{Timeout: retry.Timeout},
		// JIRA cloud throttles aggressively; stay well under its limits
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		retry:   retry,
	}
	if retry.CircuitBreakerEnabled {
		c.breaker = NewCircuitBreaker(retry.FailureThreshold, retry.SuccessThreshold, retry.OpenTimeout)
	}
	return c
}

// WithRetryConfig replaces the retry policy (and rebuilds the breaker)
func (c *Client) WithRetryConfig(retry RetryConfig) *Client {
	c.retry = retry
	c.httpClient.Timeout = retry.Timeout
	c.breaker = nil
	if retry.CircuitBreakerEnabled {
		c.breaker = NewCircuitBreaker(retry.FailureThreshold, retry.SuccessThreshold, retry.OpenTimeout)
	}
	return c
}

// apiError is a non-2xx JIRA response
type apiError struct {
	status     int
	body       string
	retryAfter time.Duration
}

func (e *apiError) Error() string {
	return fmt.Sprintf("jira returned %d: %s", e.status, e.body)
}

// Issue is the subset of a JIRA issue the portal mirrors
type Issue struct {
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

// IssueFields holds the mirrored issue fields
type IssueFields struct {
	Summary     string      `json:"summary"`
	Description string      `json:"description"`
	Status      NamedField  `json:"status"`
	IssueType   NamedField  `json:"issuetype"`
	Priority    *NamedField `json:"priority"`
	Assignee    *User       `json:"assignee"`
	Labels      []string    `json:"labels"`
	StoryPoints float64     `json:"customfield_10016"`
}

// NamedField is JIRA's {"name": ...} wrapper
type NamedField struct {
	Name string `json:"name"`
}

// User is a JIRA account reference
type User struct {
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// SearchPage is one page of JQL search results
type SearchPage struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// Search runs a JQL query and returns one page of results
func (c *Client) Search(ctx context.Context, jql string, startAt, maxResults int) (*SearchPage, error) {
	params := url.Values{}
	params.Set("jql", jql)
	params.Set("startAt", strconv.Itoa(startAt))
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("fields", "summary,description,status,issuetype,priority,assignee,labels,"+storyPointsField)

	var page SearchPage
	err := c.retryWithBackoff(ctx, "search", func(ctx context.Context) error {
		return c.get(ctx, "/rest/api/2/search?"+params.Encode(), &page)
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// SearchAll runs a JQL query and follows paging until every issue is
// fetched
func (c *Client) SearchAll(ctx context.Context, jql string, pageSize int) ([]Issue, error) {
	if pageSize <= 0 {
		pageSize = 50
	}

	var issues []Issue
	startAt := 0
	for {
		page, err := c.Search(ctx, jql, startAt, pageSize)
		if err != nil {
			return issues, err
		}
		issues = append(issues, page.Issues...)

		startAt += len(page.Issues)
		if startAt >= page.Total || len(page.Issues) == 0 {
			return issues, nil
		}
	}
}

// GetIssue fetches a single issue by key
func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	var issue Issue
	err := c.retryWithBackoff(ctx, "get issue "+key, func(ctx context.Context) error {
		return c.get(ctx, "/rest/api/2/issue/"+url.PathEscape(key), &issue)
	})
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

// get performs one authenticated GET and decodes the JSON response
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.email, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		apiErr := &apiError{status: resp.StatusCode, body: string(body)}
		if resp.StatusCode == http.StatusTooManyRequests {
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				apiErr.retryAfter = time.Duration(secs) * time.Second
			}
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
