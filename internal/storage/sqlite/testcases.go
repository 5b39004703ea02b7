package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/caseflow/caseflow/internal/types"
)

// CreateCase creates a new test case, generating a tc-N ID when unset
func (s *SQLiteStorage) CreateCase(ctx context.Context, c *types.TestCase, actor string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if c.ModuleID != "" {
		if _, err := s.GetModule(ctx, c.ModuleID); err != nil {
			return fmt.Errorf("module %s: %w", c.ModuleID, err)
		}
	}

	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	return s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		if c.ID == "" {
			id, err := nextID(ctx, conn, PrefixCase)
			if err != nil {
				return err
			}
			c.ID = id
		}

		_, err := conn.ExecContext(ctx, `
			INSERT INTO test_cases (
				id, title, description, preconditions, steps, expected_result,
				module_id, priority, status, automation, source, source_ref,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			c.ID, c.Title, c.Description, c.Preconditions, c.Steps,
			c.ExpectedResult, nullable(c.ModuleID), c.Priority, c.Status,
			c.Automation, c.Source, c.SourceRef, c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert test case: %w", err)
		}

		for _, tag := range c.Tags {
			tag = normalizeTag(tag)
			if tag == "" {
				continue
			}
			if _, err := conn.ExecContext(ctx, `
				INSERT OR IGNORE INTO tags (case_id, tag) VALUES (?, ?)
			`, c.ID, tag); err != nil {
				return fmt.Errorf("failed to insert tag: %w", err)
			}
		}

		data, _ := json.Marshal(c)
		return recordEvent(ctx, conn, c.ID, types.EventCreated, actor, "", string(data), "")
	})
}

const caseColumns = `id, title, description, preconditions, steps, expected_result,
       module_id, priority, status, automation, source, source_ref,
       created_at, updated_at, deprecated_at`

// scanCase scans one test_cases row from any row scanner
func scanCase(scan func(dest ...interface{}) error) (*types.TestCase, error) {
	var c types.TestCase
	var moduleID sql.NullString
	var deprecatedAt sql.NullTime

	err := scan(
		&c.ID, &c.Title, &c.Description, &c.Preconditions, &c.Steps,
		&c.ExpectedResult, &moduleID, &c.Priority, &c.Status, &c.Automation,
		&c.Source, &c.SourceRef, &c.CreatedAt, &c.UpdatedAt, &deprecatedAt,
	)
	if err != nil {
		return nil, err
	}

	if moduleID.Valid {
		c.ModuleID = moduleID.String
	}
	if deprecatedAt.Valid {
		c.DeprecatedAt = &deprecatedAt.Time
	}
	return &c, nil
}

// GetCase retrieves a test case by ID, including its tags
func (s *SQLiteStorage) GetCase(ctx context.Context, id string) (*types.TestCase, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM test_cases WHERE id = ?", caseColumns), id)

	c, err := scanCase(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("test case %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get test case: %w", err)
	}

	tags, err := s.GetTags(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Tags = tags

	return c, nil
}

// Allowed fields for update to prevent SQL injection
var allowedCaseUpdateFields = map[string]bool{
	"title":           true,
	"description":     true,
	"preconditions":   true,
	"steps":           true,
	"expected_result": true,
	"module_id":       true,
	"priority":        true,
	"status":          true,
	"automation":      true,
}

// UpdateCase updates fields on a test case
func (s *SQLiteStorage) UpdateCase(ctx context.Context, id string, updates map[string]interface{}, actor string) error {
	oldCase, err := s.GetCase(ctx, id)
	if err != nil {
		return err
	}

	// Updates are also applied to a copy of the stored case so the whole
	// entity can be re-validated before writing. Without this a patch could
	// move a case into a state CreateCase would have rejected, e.g.
	// activating a draft that has no expected result.
	merged := *oldCase

	setClauses := []string{"updated_at = ?"}
	args := []interface{}{time.Now()}

	for key, value := range updates {
		if !allowedCaseUpdateFields[key] {
			return fmt.Errorf("invalid field for update: %s", key)
		}

		switch key {
		case "priority":
			// JSON-decoded updates arrive as float64
			priority, ok := value.(int)
			if !ok {
				if f, isFloat := value.(float64); isFloat {
					priority, ok = int(f), true
				}
			}
			if ok {
				if priority < 0 || priority > 4 {
					return fmt.Errorf("priority must be between 0 and 4 (got %d)", priority)
				}
				value = priority
			}
		case "status":
			if status, ok := value.(string); ok {
				if !types.CaseStatus(status).IsValid() {
					return fmt.Errorf("invalid case status: %s", status)
				}
			}
		case "automation":
			if automation, ok := value.(string); ok {
				if !types.AutomationStatus(automation).IsValid() {
					return fmt.Errorf("invalid automation status: %s", automation)
				}
			}
		case "title":
			if title, ok := value.(string); ok {
				if len(title) == 0 || len(title) > 500 {
					return fmt.Errorf("title must be 1-500 characters")
				}
			}
		case "module_id":
			if moduleID, ok := value.(string); ok && moduleID != "" {
				if _, err := s.GetModule(ctx, moduleID); err != nil {
					return fmt.Errorf("module %s: %w", moduleID, err)
				}
			}
		}

		switch key {
		case "title":
			if v, ok := value.(string); ok {
				merged.Title = v
			}
		case "description":
			if v, ok := value.(string); ok {
				merged.Description = v
			}
		case "preconditions":
			if v, ok := value.(string); ok {
				merged.Preconditions = v
			}
		case "steps":
			if v, ok := value.(string); ok {
				merged.Steps = v
			}
		case "expected_result":
			if v, ok := value.(string); ok {
				merged.ExpectedResult = v
			}
		case "module_id":
			if v, ok := value.(string); ok {
				merged.ModuleID = v
			}
		case "priority":
			if v, ok := value.(int); ok {
				merged.Priority = v
			}
		case "status":
			if v, ok := value.(string); ok {
				merged.Status = types.CaseStatus(v)
			}
		case "automation":
			if v, ok := value.(string); ok {
				merged.Automation = types.AutomationStatus(v)
			}
		}

		setClauses = append(setClauses, fmt.Sprintf("%s = ?", key))
		args = append(args, value)
	}
	args = append(args, id)

	if err := merged.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf("UPDATE test_cases SET %s WHERE id = ?", strings.Join(setClauses, ", "))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update test case: %w", err)
	}

	oldData, _ := json.Marshal(oldCase)
	newData, _ := json.Marshal(updates)
	if err := recordEvent(ctx, tx, id, types.EventUpdated, actor, string(oldData), string(newData), ""); err != nil {
		return err
	}

	return tx.Commit()
}

// DeprecateCase marks a test case deprecated with a reason. Deprecated cases
// stay queryable (release history references them) but drop out of default
// listings.
func (s *SQLiteStorage) DeprecateCase(ctx context.Context, id string, reason string, actor string) error {
	if _, err := s.GetCase(ctx, id); err != nil {
		return err
	}

	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		UPDATE test_cases SET status = ?, deprecated_at = ?, updated_at = ?
		WHERE id = ?
	`, types.CaseDeprecated, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to deprecate test case: %w", err)
	}

	if err := recordEvent(ctx, tx, id, types.EventDeprecated, actor, "", "", reason); err != nil {
		return err
	}

	return tx.Commit()
}

// ListCases finds test cases matching the filter
func (s *SQLiteStorage) ListCases(ctx context.Context, filter types.CaseFilter) ([]*types.TestCase, error) {
	whereClauses := []string{}
	args := []interface{}{}

	if filter.Text != "" {
		whereClauses = append(whereClauses, "(title LIKE ? OR description LIKE ? OR steps LIKE ? OR id LIKE ?)")
		pattern := "%" + filter.Text + "%"
		args = append(args, pattern, pattern, pattern, pattern)
	}

	if filter.ModuleID != nil {
		whereClauses = append(whereClauses, "module_id = ?")
		args = append(args, *filter.ModuleID)
	}

	if filter.Status != nil {
		whereClauses = append(whereClauses, "status = ?")
		args = append(args, *filter.Status)
	} else {
		// Deprecated cases are excluded unless asked for explicitly
		whereClauses = append(whereClauses, "status != ?")
		args = append(args, types.CaseDeprecated)
	}

	if filter.Automation != nil {
		whereClauses = append(whereClauses, "automation = ?")
		args = append(args, *filter.Automation)
	}

	if filter.Priority != nil {
		whereClauses = append(whereClauses, "priority = ?")
		args = append(args, *filter.Priority)
	}

	if filter.Since != nil {
		whereClauses = append(whereClauses, "created_at >= ?")
		args = append(args, *filter.Since)
	}

	// Each tag requires an EXISTS subquery so that ALL tags must match
	for _, tag := range filter.Tags {
		whereClauses = append(whereClauses, `
			EXISTS (
				SELECT 1 FROM tags t
				WHERE t.case_id = test_cases.id AND t.tag = ?
			)`)
		args = append(args, normalizeTag(tag))
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = "WHERE " + strings.Join(whereClauses, " AND ")
	}

	limitSQL := ""
	if filter.Limit > 0 {
		limitSQL = fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	querySQL := fmt.Sprintf(`
		SELECT %s
		FROM test_cases
		%s
		ORDER BY priority ASC, created_at DESC
		%s
	`, caseColumns, whereSQL, limitSQL)

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list test cases: %w", err)
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
