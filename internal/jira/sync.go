package jira

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/caseflow/caseflow/internal/storage"
	"github.com/caseflow/caseflow/internal/types"
)

// Config keys for last-sync bookkeeping in the config KV
const (
	lastSyncStoriesKey = "jira.last_sync.stories"
	lastSyncTicketsKey = "jira.last_sync.tickets"
)

// upsertWorkers bounds how many pages are written concurrently
const upsertWorkers = 4

// Notifier receives sync outcome notifications. Implemented by the Slack
// notifier; nil disables notifications.
type Notifier interface {
	JIRASyncCompleted(ctx context.Context, stories, tickets int) error
	JIRASyncFailed(ctx context.Context, cause error) error
}

// Syncer mirrors JIRA stories and production tickets into local storage.
// Sync is one-way: JIRA is the source of truth and local rows are
// overwritten wholesale.
type Syncer struct {
	client   *Client
	store    storage.Storage
	project  string
	pageSize int
	notifier Notifier
}

// NewSyncer creates a sync engine for one JIRA project
func NewSyncer(client *Client, store storage.Storage, project string, pageSize int) *Syncer {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Syncer{client: client, store: store, project: project, pageSize: pageSize}
}

// WithNotifier attaches a notifier for sync outcomes
func (s *Syncer) WithNotifier(n Notifier) *Syncer {
	s.notifier = n
	return s
}

// Report summarizes one sync run. A run can partially succeed: stories
// may land while tickets fail, or some upserts inside a phase may error.
type Report struct {
	Stories  int           `json:"stories"`
	Tickets  int           `json:"tickets"`
	Errors   []string      `json:"errors,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Failed reports whether anything went wrong during the run
func (r *Report) Failed() bool {
	return len(r.Errors) > 0
}

// Sync fetches stories and production tickets and upserts them locally.
// The returned report is valid even when err is non-nil.
func (s *Syncer) Sync(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{}

	storiesJQL := fmt.Sprintf("project = %s AND issuetype = Story ORDER BY key", s.project)
	count, err := s.syncPhase(ctx, storiesJQL, s.upsertStory)
	report.Stories = count
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("stories: %v", err))
	} else if err := s.store.SetConfig(ctx, lastSyncStoriesKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("stories bookkeeping: %v", err))
	}

	ticketsJQL := fmt.Sprintf("project = %s AND issuetype = Bug AND labels = production ORDER BY key", s.project)
	count, err = s.syncPhase(ctx, ticketsJQL, s.upsertTicket)
	report.Tickets = count
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("tickets: %v", err))
	} else if err := s.store.SetConfig(ctx, lastSyncTicketsKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("tickets bookkeeping: %v", err))
	}

	report.Duration = time.Since(start)
	log.Printf("[JIRA] sync finished: %d stories, %d tickets, %d errors in %v",
		report.Stories, report.Tickets, len(report.Errors), report.Duration.Round(time.Millisecond))

	s.notify(ctx, report)

	if report.Failed() {
		return report, fmt.Errorf("sync completed with errors: %s", strings.Join(report.Errors, "; "))
	}
	return report, nil
}

// syncPhase pages through one JQL query, upserting pages concurrently
func (s *Syncer) syncPhase(ctx context.Context, jql string, upsert func(context.Context, Issue) error) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(upsertWorkers)

	synced := 0
	startAt := 0
	for {
		page, err := s.client.Search(ctx, jql, startAt, s.pageSize)
		if err != nil {
			// Wait for in-flight upserts before reporting
			if werr := g.Wait(); werr != nil {
				return synced, fmt.Errorf("%v (and upsert failed: %w)", err, werr)
			}
			return synced, err
		}

		issues := page.Issues
		g.Go(func() error {
			for _, issue := range issues {
				if err := upsert(gctx, issue); err != nil {
					return fmt.Errorf("%s: %w", issue.Key, err)
				}
			}
			return nil
		})
		synced += len(issues)

		startAt += len(issues)
		if startAt >= page.Total || len(issues) == 0 {
			break
		}
	}

	if err := g.Wait(); err != nil {
		return synced, err
	}
	return synced, nil
}

func (s *Syncer) upsertStory(ctx context.Context, issue Issue) error {
	story := &types.Story{
		Key:         issue.Key,
		Summary:     issue.Fields.Summary,
		Description: issue.Fields.Description,
		Status:      issue.Fields.Status.Name,
		StoryPoints: issue.Fields.StoryPoints,
		SyncedAt:    time.Now(),
	}
	if issue.Fields.Assignee != nil {
		story.Assignee = issue.Fields.Assignee.DisplayName
	}
	return s.store.UpsertStory(ctx, story)
}

func (s *Syncer) upsertTicket(ctx context.Context, issue Issue) error {
	ticket := &types.ProductionTicket{
		Key:      issue.Key,
		Summary:  issue.Fields.Summary,
		Severity: severityFromPriority(issue.Fields.Priority),
		Status:   issue.Fields.Status.Name,
		SyncedAt: time.Now(),
	}
	return s.store.UpsertTicket(ctx, ticket)
}

// severityFromPriority maps JIRA priority names onto ticket severities
func severityFromPriority(priority *NamedField) types.TicketSeverity {
	if priority == nil {
		return types.SeverityMedium
	}
	switch strings.ToLower(priority.Name) {
	case "highest", "blocker", "critical":
		return types.SeverityCritical
	case "high", "major":
		return types.SeverityHigh
	case "medium", "normal":
		return types.SeverityMedium
	default:
		return types.SeverityLow
	}
}

// LastSync returns the stored last-sync timestamps, zero when never run
func (s *Syncer) LastSync(ctx context.Context) (stories, tickets time.Time, err error) {
	stories, err = s.lastSyncAt(ctx, lastSyncStoriesKey)
	if err != nil {
		return
	}
	tickets, err = s.lastSyncAt(ctx, lastSyncTicketsKey)
	return
}

func (s *Syncer) lastSyncAt(ctx context.Context, key string) (time.Time, error) {
	v, err := s.store.GetConfig(ctx, key)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, v)
}

func (s *Syncer) notify(ctx context.Context, report *Report) {
	if s.notifier == nil {
		return
	}
	var err error
	if report.Failed() {
		err = s.notifier.JIRASyncFailed(ctx, fmt.Errorf("%s", strings.Join(report.Errors, "; ")))
	} else {
		err = s.notifier.JIRASyncCompleted(ctx, report.Stories, report.Tickets)
	}
	if err != nil {
		log.Printf("[JIRA] notification failed: %v", err)
	}
}
