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

// CreateModule creates a new module, generating an md-N ID when unset
func (s *SQLiteStorage) CreateModule(ctx context.Context, m *types.Module, actor string) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now

	return s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		if m.ID == "" {
			id, err := nextID(ctx, conn, PrefixModule)
			if err != nil {
				return err
			}
			m.ID = id
		}

		_, err := conn.ExecContext(ctx, `
			INSERT INTO modules (id, name, description, owner, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, m.ID, m.Name, m.Description, m.Owner, m.CreatedAt, m.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert module: %w", err)
		}

		data, _ := json.Marshal(m)
		return recordEvent(ctx, conn, m.ID, types.EventCreated, actor, "", string(data), "")
	})
}

// GetModule retrieves a module by ID
func (s *SQLiteStorage) GetModule(ctx context.Context, id string) (*types.Module, error) {
	return s.getModuleWhere(ctx, "m.id = ?", id)
}

// GetModuleByName retrieves a module by its unique name
func (s *SQLiteStorage) GetModuleByName(ctx context.Context, name string) (*types.Module, error) {
	return s.getModuleWhere(ctx, "m.name = ?", name)
}

func (s *SQLiteStorage) getModuleWhere(ctx context.Context, where string, arg interface{}) (*types.Module, error) {
	var m types.Module
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT m.id, m.name, m.description, m.owner, m.created_at, m.updated_at,
		       (SELECT COUNT(*) FROM test_cases c WHERE c.module_id = m.id) AS case_count
		FROM modules m
		WHERE %s
	`, where), arg).Scan(
		&m.ID, &m.Name, &m.Description, &m.Owner, &m.CreatedAt, &m.UpdatedAt, &m.CaseCount,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("module %v: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get module: %w", err)
	}
	return &m, nil
}

var allowedModuleUpdateFields = map[string]bool{
	"name":        true,
	"description": true,
	"owner":       true,
}

// UpdateModule updates fields on a module
func (s *SQLiteStorage) UpdateModule(ctx context.Context, id string, updates map[string]interface{}, actor string) error {
	oldModule, err := s.GetModule(ctx, id)
	if err != nil {
		return err
	}

	setClauses := []string{"updated_at = ?"}
	args := []interface{}{time.Now()}

	for key, value := range updates {
		if !allowedModuleUpdateFields[key] {
			return fmt.Errorf("invalid field for update: %s", key)
		}
		if key == "name" {
			if name, ok := value.(string); ok {
				trimmed := strings.TrimSpace(name)
				if trimmed == "" || len(trimmed) > 120 {
					return fmt.Errorf("name must be 1-120 characters")
				}
			}
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

	query := fmt.Sprintf("UPDATE modules SET %s WHERE id = ?", strings.Join(setClauses, ", "))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update module: %w", err)
	}

	oldData, _ := json.Marshal(oldModule)
	newData, _ := json.Marshal(updates)
	if err := recordEvent(ctx, tx, id, types.EventUpdated, actor, string(oldData), string(newData), ""); err != nil {
		return err
	}

	return tx.Commit()
}

// ErrModuleNotEmpty is wrapped into DeleteModule failures for non-empty modules
var ErrModuleNotEmpty = fmt.Errorf("module still has test cases")

// DeleteModule removes an empty module. Deleting a module that still has
// test cases fails; reassign or deprecate them first.
func (s *SQLiteStorage) DeleteModule(ctx context.Context, id string, actor string) error {
	m, err := s.GetModule(ctx, id)
	if err != nil {
		return err
	}
	if m.CaseCount > 0 {
		return fmt.Errorf("cannot delete module %s with %d test cases: %w", id, m.CaseCount, ErrModuleNotEmpty)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM modules WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete module: %w", err)
	}

	oldData, _ := json.Marshal(m)
	if err := recordEvent(ctx, tx, id, types.EventUpdated, actor, string(oldData), "", "deleted"); err != nil {
		return err
	}

	return tx.Commit()
}

// ListModules returns all modules with their case counts, ordered by name
func (s *SQLiteStorage) ListModules(ctx context.Context) ([]*types.Module, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.name, m.description, m.owner, m.created_at, m.updated_at,
		       (SELECT COUNT(*) FROM test_cases c WHERE c.module_id = m.id) AS case_count
		FROM modules m
		ORDER BY m.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	defer rows.Close()

	var modules []*types.Module
	for rows.Next() {
		var m types.Module
		if err := rows.Scan(&m.ID, &m.Name, &m.Description, &m.Owner,
			&m.CreatedAt, &m.UpdatedAt, &m.CaseCount); err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		modules = append(modules, &m)
	}
	return modules, rows.Err()
}
