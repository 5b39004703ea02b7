package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/caseflow/caseflow/internal/types"
)

// normalizeTag lowercases and trims a tag. Tags are stored and matched in
// this canonical form, so "Smoke" and "smoke" are the same tag.
func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// AddTag adds a tag to a test case
func (s *SQLiteStorage) AddTag(ctx context.Context, caseID, tag, actor string) error {
	tag = normalizeTag(tag)
	if tag == "" {
		return fmt.Errorf("tag must not be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO tags (case_id, tag)
		VALUES (?, ?)
	`, caseID, tag)
	if err != nil {
		return fmt.Errorf("failed to add tag: %w", err)
	}

	// Only record event if a row was actually inserted
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected > 0 {
		if err := recordEvent(ctx, tx, caseID, types.EventUpdated, actor, "", "",
			fmt.Sprintf("Added tag: %s", tag)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RemoveTag removes a tag from a test case
func (s *SQLiteStorage) RemoveTag(ctx context.Context, caseID, tag, actor string) error {
	tag = normalizeTag(tag)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		DELETE FROM tags WHERE case_id = ? AND tag = ?
	`, caseID, tag)
	if err != nil {
		return fmt.Errorf("failed to remove tag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected > 0 {
		if err := recordEvent(ctx, tx, caseID, types.EventUpdated, actor, "", "",
			fmt.Sprintf("Removed tag: %s", tag)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetTags returns all tags for a test case
func (s *SQLiteStorage) GetTags(ctx context.Context, caseID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tag FROM tags WHERE case_id = ? ORDER BY tag
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// GetCasesByTag returns all test cases carrying the tag
func (s *SQLiteStorage) GetCasesByTag(ctx context.Context, tag string) ([]*types.TestCase, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM test_cases
		WHERE id IN (SELECT case_id FROM tags WHERE tag = ?)
		ORDER BY priority ASC, created_at DESC
	`, caseColumns), normalizeTag(tag))
	if err != nil {
		return nil, fmt.Errorf("failed to get cases by tag: %w", err)
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
