package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/caseflow/caseflow/internal/types"
)

// UpsertStory inserts or overwrites a mirrored JIRA story. Sync is one-way,
// so the incoming row always wins.
func (s *SQLiteStorage) UpsertStory(ctx context.Context, st *types.Story) error {
	if err := st.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if st.SyncedAt.IsZero() {
		st.SyncedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stories (key, summary, description, status, assignee, story_points, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			summary = excluded.summary,
			description = excluded.description,
			status = excluded.status,
			assignee = excluded.assignee,
			story_points = excluded.story_points,
			synced_at = excluded.synced_at
	`, st.Key, st.Summary, st.Description, st.Status, st.Assignee, st.StoryPoints, st.SyncedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert story: %w", err)
	}
	return nil
}

// GetStory retrieves a mirrored story by JIRA key
func (s *SQLiteStorage) GetStory(ctx context.Context, key string) (*types.Story, error) {
	var st types.Story
	err := s.db.QueryRowContext(ctx, `
		SELECT key, summary, description, status, assignee, story_points, synced_at
		FROM stories WHERE key = ?
	`, key).Scan(&st.Key, &st.Summary, &st.Description, &st.Status,
		&st.Assignee, &st.StoryPoints, &st.SyncedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("story %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return &st, nil
}

// ListStories returns all mirrored stories ordered by key
func (s *SQLiteStorage) ListStories(ctx context.Context) ([]*types.Story, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, summary, description, status, assignee, story_points, synced_at
		FROM stories ORDER BY key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	defer rows.Close()

	var stories []*types.Story
	for rows.Next() {
		var st types.Story
		if err := rows.Scan(&st.Key, &st.Summary, &st.Description, &st.Status,
			&st.Assignee, &st.StoryPoints, &st.SyncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		stories = append(stories, &st)
	}
	return stories, rows.Err()
}

// UpsertTicket inserts or overwrites a mirrored production ticket
func (s *SQLiteStorage) UpsertTicket(ctx context.Context, t *types.ProductionTicket) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if t.SyncedAt.IsZero() {
		t.SyncedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tickets (key, summary, severity, status, synced_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			summary = excluded.summary,
			severity = excluded.severity,
			status = excluded.status,
			synced_at = excluded.synced_at
	`, t.Key, t.Summary, t.Severity, t.Status, t.SyncedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert ticket: %w", err)
	}
	return nil
}

// ListTickets returns all mirrored production tickets ordered by key
func (s *SQLiteStorage) ListTickets(ctx context.Context) ([]*types.ProductionTicket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, summary, severity, status, synced_at
		FROM tickets ORDER BY key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*types.ProductionTicket
	for rows.Next() {
		var t types.ProductionTicket
		if err := rows.Scan(&t.Key, &t.Summary, &t.Severity, &t.Status, &t.SyncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, &t)
	}
	return tickets, rows.Err()
}

// LinkStoryCase links a test case to a mirrored story (coverage tracking)
func (s *SQLiteStorage) LinkStoryCase(ctx context.Context, storyKey, caseID, actor string) error {
	if _, err := s.GetStory(ctx, storyKey); err != nil {
		return err
	}
	if _, err := s.GetCase(ctx, caseID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO story_cases (story_key, case_id) VALUES (?, ?)
	`, storyKey, caseID)
	if err != nil {
		return fmt.Errorf("failed to link story case: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected > 0 {
		if err := recordEvent(ctx, tx, storyKey, types.EventLinked, actor, "", "",
			fmt.Sprintf("Linked test case %s", caseID)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetStoryCases returns test cases covering a story
func (s *SQLiteStorage) GetStoryCases(ctx context.Context, storyKey string) ([]*types.TestCase, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM test_cases
		WHERE id IN (SELECT case_id FROM story_cases WHERE story_key = ?)
		ORDER BY priority ASC, created_at DESC
	`, caseColumns), storyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get story cases: %w", err)
	}
	defer rows.Close()

	var cases []*types.TestCase
	for rows.Next() {
		c, err := scanCase(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan test case: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}
