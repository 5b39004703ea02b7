package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/caseflow/caseflow/internal/types"
)

// CreateWorkbook persists a workbook and its candidate rows in one
// transaction, generating a wb-N ID when unset. Rows must already carry
// their uuid IDs (assigned at import time).
func (s *SQLiteStorage) CreateWorkbook(ctx context.Context, w *types.Workbook, rows []*types.WorkbookRow, actor string) error {
	if err := w.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	for i, row := range rows {
		if err := row.Validate(); err != nil {
			return fmt.Errorf("row %d validation failed: %w", i, err)
		}
	}

	now := time.Now()
	w.CreatedAt = now
	w.UpdatedAt = now
	w.RowCount = len(rows)

	return s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		if w.ID == "" {
			id, err := nextID(ctx, conn, PrefixWorkbook)
			if err != nil {
				return err
			}
			w.ID = id
		}

		_, err := conn.ExecContext(ctx, `
			INSERT INTO workbooks (id, name, source_file, module_id, status, row_count, created_by, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, w.ID, w.Name, w.SourceFile, w.ModuleID, w.Status, w.RowCount, w.CreatedBy, w.CreatedAt, w.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert workbook: %w", err)
		}

		for _, row := range rows {
			row.WorkbookID = w.ID
			tagsJSON, _ := json.Marshal(row.Tags)
			_, err := conn.ExecContext(ctx, `
				INSERT INTO workbook_rows (
					id, workbook_id, line_number, title, description, preconditions,
					steps, expected_result, priority, tags, status,
					duplicate_of, similarity
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, row.ID, row.WorkbookID, row.LineNumber, row.Title, row.Description,
				row.Preconditions, row.Steps, row.ExpectedResult, row.Priority,
				string(tagsJSON), row.Status, row.DuplicateOf, row.Similarity)
			if err != nil {
				return fmt.Errorf("failed to insert workbook row: %w", err)
			}
		}

		return recordEvent(ctx, conn, w.ID, types.EventImported, actor, "", "",
			fmt.Sprintf("Imported %d candidate rows from %s", len(rows), w.SourceFile))
	})
}

// GetWorkbook retrieves a workbook by ID
func (s *SQLiteStorage) GetWorkbook(ctx context.Context, id string) (*types.Workbook, error) {
	var w types.Workbook
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, source_file, module_id, status, row_count, created_by, created_at, updated_at
		FROM workbooks WHERE id = ?
	`, id).Scan(&w.ID, &w.Name, &w.SourceFile, &w.ModuleID, &w.Status,
		&w.RowCount, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("workbook %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workbook: %w", err)
	}
	return &w, nil
}

// ListWorkbooks returns all workbooks, newest first
func (s *SQLiteStorage) ListWorkbooks(ctx context.Context) ([]*types.Workbook, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, source_file, module_id, status, row_count, created_by, created_at, updated_at
		FROM workbooks ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workbooks: %w", err)
	}
	defer rows.Close()

	var workbooks []*types.Workbook
	for rows.Next() {
		var w types.Workbook
		if err := rows.Scan(&w.ID, &w.Name, &w.SourceFile, &w.ModuleID, &w.Status,
			&w.RowCount, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workbook: %w", err)
		}
		workbooks = append(workbooks, &w)
	}
	return workbooks, rows.Err()
}

const rowColumns = `id, workbook_id, line_number, title, description, preconditions,
       steps, expected_result, priority, tags, status,
       duplicate_of, similarity, reviewed_by, reviewed_at, case_id`

func scanRow(scan func(dest ...interface{}) error) (*types.WorkbookRow, error) {
	var r types.WorkbookRow
	var tagsJSON string
	var reviewedAt sql.NullTime

	err := scan(
		&r.ID, &r.WorkbookID, &r.LineNumber, &r.Title, &r.Description,
		&r.Preconditions, &r.Steps, &r.ExpectedResult, &r.Priority, &tagsJSON,
		&r.Status, &r.DuplicateOf, &r.Similarity, &r.ReviewedBy, &reviewedAt, &r.CaseID,
	)
	if err != nil {
		return nil, err
	}

	if tagsJSON != "" && tagsJSON != "[]" {
		if err := json.Unmarshal([]byte(tagsJSON), &r.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode row tags: %w", err)
		}
	}
	if reviewedAt.Valid {
		r.ReviewedAt = &reviewedAt.Time
	}
	return &r, nil
}

// GetWorkbookRows returns the rows of a workbook in CSV line order
func (s *SQLiteStorage) GetWorkbookRows(ctx context.Context, workbookID string) ([]*types.WorkbookRow, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM workbook_rows WHERE workbook_id = ? ORDER BY line_number
	`, rowColumns), workbookID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workbook rows: %w", err)
	}
	defer rows.Close()

	var result []*types.WorkbookRow
	for rows.Next() {
		r, err := scanRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workbook row: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// GetWorkbookRow retrieves a single candidate row by its uuid
func (s *SQLiteStorage) GetWorkbookRow(ctx context.Context, rowID string) (*types.WorkbookRow, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM workbook_rows WHERE id = ?
	`, rowColumns), rowID)

	r, err := scanRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("workbook row %s: %w", rowID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workbook row: %w", err)
	}
	return r, nil
}

// ReviewRow stamps a review decision onto a row. caseID is the materialized
// test case for approvals, empty otherwise. A row can only be reviewed once.
func (s *SQLiteStorage) ReviewRow(ctx context.Context, rowID string, status types.RowStatus, reviewer, caseID string) error {
	if status != types.RowApproved && status != types.RowRejected {
		return fmt.Errorf("review status must be approved or rejected (got %s)", status)
	}

	row, err := s.GetWorkbookRow(ctx, rowID)
	if err != nil {
		return err
	}
	if row.Status == types.RowApproved || row.Status == types.RowRejected {
		return fmt.Errorf("row %s already reviewed as %s", rowID, row.Status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		UPDATE workbook_rows SET status = ?, reviewed_by = ?, reviewed_at = ?, case_id = ?
		WHERE id = ?
	`, status, reviewer, time.Now(), caseID, rowID)
	if err != nil {
		return fmt.Errorf("failed to review row: %w", err)
	}

	// Workbook moves out of pending on first review
	_, err = tx.ExecContext(ctx, `
		UPDATE workbooks SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, types.WorkbookReviewing, time.Now(), row.WorkbookID, types.WorkbookPending)
	if err != nil {
		return fmt.Errorf("failed to update workbook status: %w", err)
	}

	eventType := types.EventApproved
	if status == types.RowRejected {
		eventType = types.EventRejected
	}
	if err := recordEvent(ctx, tx, row.WorkbookID, eventType, reviewer, "", "",
		fmt.Sprintf("Row %d (%s)", row.LineNumber, row.Title)); err != nil {
		return err
	}

	return tx.Commit()
}

// MarkRowDuplicate flags a pending row as a duplicate of an existing case
func (s *SQLiteStorage) MarkRowDuplicate(ctx context.Context, rowID, duplicateOf string, similarity float64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE workbook_rows SET status = ?, duplicate_of = ?, similarity = ?
		WHERE id = ? AND status = ?
	`, types.RowDuplicate, duplicateOf, similarity, rowID, types.RowPending)
	if err != nil {
		return fmt.Errorf("failed to mark row duplicate: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("workbook row %s not pending: %w", rowID, ErrNotFound)
	}
	return nil
}

// FinalizeWorkbook derives the workbook status from its row states:
// approved when every row is reviewed and at least one was approved,
// rejected when all rows were rejected, reviewing otherwise.
func (s *SQLiteStorage) FinalizeWorkbook(ctx context.Context, workbookID, actor string) (types.WorkbookStatus, error) {
	if _, err := s.GetWorkbook(ctx, workbookID); err != nil {
		return "", err
	}

	var pending, approved, rejected, duplicate int
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM workbook_rows WHERE workbook_id = ? GROUP BY status
	`, workbookID)
	if err != nil {
		return "", fmt.Errorf("failed to count row states: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status types.RowStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return "", fmt.Errorf("failed to scan row state: %w", err)
		}
		switch status {
		case types.RowPending:
			pending += count
		case types.RowApproved:
			approved += count
		case types.RowRejected:
			rejected += count
		case types.RowDuplicate:
			duplicate += count
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	status := types.WorkbookReviewing
	switch {
	case pending > 0 || duplicate > 0:
		// Duplicates count as unreviewed: someone still has to decide
		status = types.WorkbookReviewing
	case approved > 0:
		status = types.WorkbookApproved
	case rejected > 0:
		status = types.WorkbookRejected
	default:
		// Empty workbook; nothing to approve
		status = types.WorkbookRejected
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE workbooks SET status = ?, updated_at = ? WHERE id = ?
	`, status, time.Now(), workbookID); err != nil {
		return "", fmt.Errorf("failed to finalize workbook: %w", err)
	}

	if err := recordEvent(ctx, tx, workbookID, types.EventUpdated, actor, "", string(status),
		fmt.Sprintf("Finalized: %d approved, %d rejected, %d pending, %d duplicates",
			approved, rejected, pending, duplicate)); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return status, nil
}
