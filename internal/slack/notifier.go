package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/caseflow/caseflow/internal/types"
)

// Notifier posts messages to a Slack incoming webhook. With no webhook
// URL configured every call is a silent no-op, so callers never need to
// check whether Slack is set up.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

// NewNotifier creates a notifier. An empty webhookURL disables it.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a webhook is configured
func (n *Notifier) Enabled() bool {
	return n.webhookURL != ""
}

// PostMessage sends plain text to the webhook
func (n *Notifier) PostMessage(ctx context.Context, text string) error {
	if !n.Enabled() {
		return nil
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack returned %d: %s", resp.StatusCode, body)
	}
	return nil
}

// ReleasePublished announces a release transition to released
func (n *Notifier) ReleasePublished(ctx context.Context, release *types.Release, summary *types.ReleaseSummary) error {
	text := fmt.Sprintf(":rocket: Release *%s* (%s) is out. %d test cases, %.0f%% pass rate.",
		release.Name, release.Version, summary.TotalCases, summary.PassRate*100)
	return n.PostMessage(ctx, text)
}

// WorkbookApproved announces a finished workbook review
func (n *Notifier) WorkbookApproved(ctx context.Context, workbook *types.Workbook, approved int) error {
	text := fmt.Sprintf(":white_check_mark: Workbook *%s* approved: %d of %d candidate cases accepted.",
		workbook.Name, approved, workbook.RowCount)
	return n.PostMessage(ctx, text)
}

// JIRASyncCompleted reports a successful sync run
func (n *Notifier) JIRASyncCompleted(ctx context.Context, stories, tickets int) error {
	text := fmt.Sprintf("JIRA sync finished: %d stories, %d production tickets mirrored.", stories, tickets)
	return n.PostMessage(ctx, text)
}

// JIRASyncFailed reports a failed sync run
func (n *Notifier) JIRASyncFailed(ctx context.Context, cause error) error {
	text := fmt.Sprintf(":warning: JIRA sync failed: %v", cause)
	return n.PostMessage(ctx, text)
}
