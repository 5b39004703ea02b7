package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/caseflow/caseflow/internal/types"
)

// CreateRelease creates a new release, generating a rel-N ID when unset
func (s *SQLiteStorage) CreateRelease(ctx context.Context, r *types.Release, actor string) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now

	return s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		if r.ID == "" {
			id, err := nextID(ctx, conn, PrefixRelease)
			if err != nil {
				return err
			}
			r.ID = id
		}

		_, err := conn.ExecContext(ctx, `
			INSERT INTO releases (id, name, version, description, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, r.ID, r.Name, r.Version, r.Description, r.Status, r.CreatedAt, r.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert release: %w", err)
		}

		data, _ := json.Marshal(r)
		return recordEvent(ctx, conn, r.ID, types.EventCreated, actor, "", string(data), "")
	})
}

// GetRelease retrieves a release by ID
func (s *SQLiteStorage) GetRelease(ctx context.Context, id string) (*types.Release, error) {
	var r types.Release
	var releasedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, version, description, status, created_at, updated_at, released_at
		FROM releases WHERE id = ?
	`, id).Scan(&r.ID, &r.Name, &r.Version, &r.Description, &r.Status,
		&r.CreatedAt, &r.UpdatedAt, &releasedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("release %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get release: %w", err)
	}

	if releasedAt.Valid {
		r.ReleasedAt = &releasedAt.Time
	}
	return &r, nil
}

var allowedReleaseUpdateFields = map[string]bool{
	"name":        true,
	"version":     true,
	"description": true,
}

// UpdateRelease updates fields on a release. Status changes go through
// TransitionRelease instead.
func (s *SQLiteStorage) UpdateRelease(ctx context.Context, id string, updates map[string]interface{}, actor string) error {
	oldRelease, err := s.GetRelease(ctx, id)
	if err != nil {
		return err
	}

	setClauses := []string{"updated_at = ?"}
	args := []interface{}{time.Now()}

	for key, value := range updates {
		if !allowedReleaseUpdateFields[key] {
			return fmt.Errorf("invalid field for update: %s", key)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = ?", key))
		args = append(args, value)
	}
	args = append(args, id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf("UPDATE releases SET %s WHERE id = ?", strings.Join(setClauses, ", "))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update release: %w", err)
	}

	oldData, _ := json.Marshal(oldRelease)
	newData, _ := json.Marshal(updates)
	if err := recordEvent(ctx, tx, id, types.EventUpdated, actor, string(oldData), string(newData), ""); err != nil {
		return err
	}

	return tx.Commit()
}

// ErrIllegalTransition is wrapped into TransitionRelease failures
var ErrIllegalTransition = fmt.Errorf("illegal release transition")

// TransitionRelease moves a release to the next status. Transitions are
// forward-only; moving to released stamps released_at.
func (s *SQLiteStorage) TransitionRelease(ctx context.Context, id string, next types.ReleaseStatus, actor string) error {
	if !next.IsValid() {
		return fmt.Errorf("invalid release status: %s", next)
	}

	r, err := s.GetRelease(ctx, id)
	if err != nil {
		return err
	}

	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("cannot transition release %s from %s to %s: %w",
			id, r.Status, next, ErrIllegalTransition)
	}

	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if next == types.ReleaseReleased {
		_, err = tx.ExecContext(ctx, `
			UPDATE releases SET status = ?, released_at = ?, updated_at = ? WHERE id = ?
		`, next, now, now, id)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE releases SET status = ?, updated_at = ? WHERE id = ?
		`, next, now, id)
	}
	if err != nil {
		return fmt.Errorf("failed to transition release: %w", err)
	}

	if err := recordEvent(ctx, tx, id, types.EventUpdated, actor,
		string(r.Status), string(next), "status change"); err != nil {
		return err
	}

	return tx.Commit()
}

// ListReleases returns all releases ordered by semantic version, newest first
func (s *SQLiteStorage) ListReleases(ctx context.Context) ([]*types.Release, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, version, description, status, created_at, updated_at, released_at
		FROM releases
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}
	defer rows.Close()

	var releases []*types.Release
	for rows.Next() {
		var r types.Release
		var releasedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.Name, &r.Version, &r.Description, &r.Status,
			&r.CreatedAt, &r.UpdatedAt, &releasedAt); err != nil {
			return nil, fmt.Errorf("failed to scan release: %w", err)
		}
		if releasedAt.Valid {
			r.ReleasedAt = &releasedAt.Time
		}
		releases = append(releases, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Semver ordering is not expressible in SQL; sort here
	sort.Slice(releases, func(i, j int) bool {
		return releases[i].CompareVersion(releases[j]) > 0
	})

	return releases, nil
}

// LinkCase links a test case into a release with an initial not_run result.
// Linking an already linked pair is a no-op.
func (s *SQLiteStorage) LinkCase(ctx context.Context, releaseID, caseID, actor string) error {
	if _, err := s.GetRelease(ctx, releaseID); err != nil {
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
		INSERT OR IGNORE INTO release_cases (release_id, case_id) VALUES (?, ?)
	`, releaseID, caseID)
	if err != nil {
		return fmt.Errorf("failed to link case: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected > 0 {
		if err := recordEvent(ctx, tx, releaseID, types.EventLinked, actor, "", "",
			fmt.Sprintf("Linked test case %s", caseID)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// UnlinkCase removes a test case from a release
func (s *SQLiteStorage) UnlinkCase(ctx context.Context, releaseID, caseID, actor string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		DELETE FROM release_cases WHERE release_id = ? AND case_id = ?
	`, releaseID, caseID)
	if err != nil {
		return fmt.Errorf("failed to unlink case: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected > 0 {
		if err := recordEvent(ctx, tx, releaseID, types.EventUnlinked, actor, "", "",
			fmt.Sprintf("Unlinked test case %s", caseID)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SetRunResult records an execution result for a case within a release.
// The pair must already be linked.
func (s *SQLiteStorage) SetRunResult(ctx context.Context, releaseID, caseID string, status types.RunStatus, actor string) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid run status: %s", status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE release_cases SET run_status = ?, executed_by = ?, executed_at = ?
		WHERE release_id = ? AND case_id = ?
	`, status, actor, time.Now(), releaseID, caseID)
	if err != nil {
		return fmt.Errorf("failed to set run result: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("case %s is not linked to release %s: %w", caseID, releaseID, ErrNotFound)
	}

	if err := recordEvent(ctx, tx, releaseID, types.EventRunRecorded, actor, "", string(status),
		fmt.Sprintf("Run result for %s", caseID)); err != nil {
		return err
	}

	return tx.Commit()
}

// GetReleaseCases returns the cases linked to a release with their results
func (s *SQLiteStorage) GetReleaseCases(ctx context.Context, releaseID string) ([]*types.CaseRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rc.release_id, rc.case_id, c.title, c.priority,
		       rc.run_status, rc.executed_by, rc.executed_at
		FROM release_cases rc
		JOIN test_cases c ON c.id = rc.case_id
		WHERE rc.release_id = ?
		ORDER BY c.priority ASC, rc.case_id
	`, releaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get release cases: %w", err)
	}
	defer rows.Close()

	var runs []*types.CaseRun
	for rows.Next() {
		var run types.CaseRun
		var executedBy sql.NullString
		var executedAt sql.NullTime
		if err := rows.Scan(&run.ReleaseID, &run.CaseID, &run.CaseTitle, &run.Priority,
			&run.Status, &executedBy, &executedAt); err != nil {
			return nil, fmt.Errorf("failed to scan case run: %w", err)
		}
		if executedBy.Valid {
			run.ExecutedBy = executedBy.String
		}
		if executedAt.Valid {
			run.ExecutedAt = &executedAt.Time
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// LinkStory links a mirrored JIRA story to a release
func (s *SQLiteStorage) LinkStory(ctx context.Context, releaseID, storyKey, actor string) error {
	return s.linkJiraEntity(ctx, releaseID, storyKey, actor,
		"release_stories", "story_key", "Linked story %s")
}

// LinkTicket links a mirrored production ticket to a release
func (s *SQLiteStorage) LinkTicket(ctx context.Context, releaseID, ticketKey, actor string) error {
	return s.linkJiraEntity(ctx, releaseID, ticketKey, actor,
		"release_tickets", "ticket_key", "Linked ticket %s")
}

func (s *SQLiteStorage) linkJiraEntity(ctx context.Context, releaseID, key, actor, table, column, commentFmt string) error {
	if _, err := s.GetRelease(ctx, releaseID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT OR IGNORE INTO %s (release_id, %s) VALUES (?, ?)
	`, table, column), releaseID, key)
	if err != nil {
		return fmt.Errorf("failed to link %s: %w", column, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected > 0 {
		if err := recordEvent(ctx, tx, releaseID, types.EventLinked, actor, "", "",
			fmt.Sprintf(commentFmt, key)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetReleaseSummary aggregates run results, stories, and tickets for a release
func (s *SQLiteStorage) GetReleaseSummary(ctx context.Context, releaseID string) (*types.ReleaseSummary, error) {
	release, err := s.GetRelease(ctx, releaseID)
	if err != nil {
		return nil, err
	}

	summary := &types.ReleaseSummary{
		Release: release,
		ByRunStatus: map[types.RunStatus]int{
			types.RunNotRun:  0,
			types.RunPass:    0,
			types.RunFail:    0,
			types.RunBlocked: 0,
		},
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_status, COUNT(*) FROM release_cases
		WHERE release_id = ? GROUP BY run_status
	`, releaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize runs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status types.RunStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan run count: %w", err)
		}
		summary.ByRunStatus[status] = count
		summary.TotalCases += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	executed := summary.ByRunStatus[types.RunPass] + summary.ByRunStatus[types.RunFail] +
		summary.ByRunStatus[types.RunBlocked]
	if executed > 0 {
		summary.PassRate = float64(summary.ByRunStatus[types.RunPass]) / float64(executed)
	}

	storyRows, err := s.db.QueryContext(ctx, `
		SELECT s.key, s.summary, s.description, s.status, s.assignee, s.story_points, s.synced_at
		FROM stories s
		JOIN release_stories rs ON rs.story_key = s.key
		WHERE rs.release_id = ?
		ORDER BY s.key
	`, releaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get release stories: %w", err)
	}
	defer storyRows.Close()
	for storyRows.Next() {
		var st types.Story
		if err := storyRows.Scan(&st.Key, &st.Summary, &st.Description, &st.Status,
			&st.Assignee, &st.StoryPoints, &st.SyncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		summary.Stories = append(summary.Stories, &st)
	}
	if err := storyRows.Err(); err != nil {
		return nil, err
	}

	ticketRows, err := s.db.QueryContext(ctx, `
		SELECT t.key, t.summary, t.severity, t.status, t.synced_at
		FROM tickets t
		JOIN release_tickets rt ON rt.ticket_key = t.key
		WHERE rt.release_id = ?
		ORDER BY t.key
	`, releaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get release tickets: %w", err)
	}
	defer ticketRows.Close()
	for ticketRows.Next() {
		var tk types.ProductionTicket
		if err := ticketRows.Scan(&tk.Key, &tk.Summary, &tk.Severity, &tk.Status, &tk.SyncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		summary.Tickets = append(summary.Tickets, &tk)
	}
	return summary, ticketRows.Err()
}
