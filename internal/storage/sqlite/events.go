package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/caseflow/caseflow/internal/types"
)

// EventCounts holds audit-event count statistics for monitoring
type EventCounts struct {
	TotalEvents    int
	EventsByEntity map[string]int
	EventsByType   map[string]int
}

// GetEvents returns the audit trail for an entity, newest first
func (s *SQLiteStorage) GetEvents(ctx context.Context, entityID string, limit int) ([]*types.Event, error) {
	limitSQL := ""
	if limit > 0 {
		limitSQL = fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, entity_id, event_type, actor, old_value, new_value, comment, created_at
		FROM events
		WHERE entity_id = ?
		ORDER BY created_at DESC, id DESC
		%s
	`, limitSQL), entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []*types.Event
	for rows.Next() {
		var e types.Event
		var oldValue, newValue, comment sql.NullString
		if err := rows.Scan(&e.ID, &e.EntityID, &e.EventType, &e.Actor,
			&oldValue, &newValue, &comment, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if oldValue.Valid {
			e.OldValue = oldValue.String
		}
		if newValue.Valid {
			e.NewValue = newValue.String
		}
		if comment.Valid {
			e.Comment = comment.String
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// CleanupEventsByAge deletes events older than the retention period.
// Deletions are batched for performance (batchSize events per transaction).
func (s *SQLiteStorage) CleanupEventsByAge(ctx context.Context, retentionDays, batchSize int) (int, error) {
	if retentionDays < 0 {
		return 0, fmt.Errorf("retention days cannot be negative")
	}
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be at least 1")
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	totalDeleted := 0

	for {
		select {
		case <-ctx.Done():
			return totalDeleted, ctx.Err()
		default:
		}

		result, err := s.db.ExecContext(ctx, `
			DELETE FROM events
			WHERE id IN (
				SELECT id FROM events
				WHERE created_at < ?
				ORDER BY created_at ASC
				LIMIT ?
			)
		`, cutoff, batchSize)
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to execute delete: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to get rows affected: %w", err)
		}
		totalDeleted += int(rowsAffected)

		if rowsAffected < int64(batchSize) {
			break
		}
	}

	return totalDeleted, nil
}

// CleanupEventsByEntityLimit enforces per-entity event limits. For each
// entity with more than perEntityLimit events, oldest events are deleted.
func (s *SQLiteStorage) CleanupEventsByEntityLimit(ctx context.Context, perEntityLimit, batchSize int) (int, error) {
	if perEntityLimit < 0 {
		return 0, fmt.Errorf("per-entity limit cannot be negative")
	}
	if perEntityLimit == 0 {
		// 0 means unlimited
		return 0, nil
	}
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be at least 1")
	}

	// Find entities over the limit
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, COUNT(*) AS n FROM events
		GROUP BY entity_id
		HAVING n > ?
	`, perEntityLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to find over-limit entities: %w", err)
	}
	defer rows.Close()

	type overLimit struct {
		entityID string
		count    int
	}
	var entities []overLimit
	for rows.Next() {
		var e overLimit
		if err := rows.Scan(&e.entityID, &e.count); err != nil {
			return 0, fmt.Errorf("failed to scan entity count: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	totalDeleted := 0
	for _, e := range entities {
		select {
		case <-ctx.Done():
			return totalDeleted, ctx.Err()
		default:
		}

		excess := e.count - perEntityLimit
		for excess > 0 {
			batch := batchSize
			if excess < batch {
				batch = excess
			}

			result, err := s.db.ExecContext(ctx, `
				DELETE FROM events
				WHERE id IN (
					SELECT id FROM events
					WHERE entity_id = ?
					ORDER BY created_at ASC, id ASC
					LIMIT ?
				)
			`, e.entityID, batch)
			if err != nil {
				return totalDeleted, fmt.Errorf("failed to trim entity %s: %w", e.entityID, err)
			}

			rowsAffected, err := result.RowsAffected()
			if err != nil {
				return totalDeleted, fmt.Errorf("failed to get rows affected: %w", err)
			}
			totalDeleted += int(rowsAffected)
			excess -= int(rowsAffected)

			if rowsAffected == 0 {
				break
			}
		}
	}

	return totalDeleted, nil
}

// CleanupEventsByGlobalLimit enforces the global event cap by deleting
// oldest events until the total is at or under globalLimit.
func (s *SQLiteStorage) CleanupEventsByGlobalLimit(ctx context.Context, globalLimit, batchSize int) (int, error) {
	if globalLimit < 0 {
		return 0, fmt.Errorf("global limit cannot be negative")
	}
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be at least 1")
	}

	totalDeleted := 0

	for {
		select {
		case <-ctx.Done():
			return totalDeleted, ctx.Err()
		default:
		}

		var total int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&total); err != nil {
			return totalDeleted, fmt.Errorf("failed to count events: %w", err)
		}

		excess := total - globalLimit
		if excess <= 0 {
			break
		}

		batch := batchSize
		if excess < batch {
			batch = excess
		}

		result, err := s.db.ExecContext(ctx, `
			DELETE FROM events
			WHERE id IN (
				SELECT id FROM events
				ORDER BY created_at ASC, id ASC
				LIMIT ?
			)
		`, batch)
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to execute delete: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to get rows affected: %w", err)
		}
		totalDeleted += int(rowsAffected)

		if rowsAffected == 0 {
			break
		}
	}

	return totalDeleted, nil
}

// GetEventCounts returns event statistics for monitoring
func (s *SQLiteStorage) GetEventCounts(ctx context.Context) (*EventCounts, error) {
	counts := &EventCounts{
		EventsByEntity: make(map[string]int),
		EventsByType:   make(map[string]int),
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&counts.TotalEvents); err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, COUNT(*) FROM events GROUP BY entity_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count events by entity: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var entity string
		var count int
		if err := rows.Scan(&entity, &count); err != nil {
			return nil, fmt.Errorf("failed to scan entity count: %w", err)
		}
		counts.EventsByEntity[entity] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	typeRows, err := s.db.QueryContext(ctx, `
		SELECT event_type, COUNT(*) FROM events GROUP BY event_type
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count events by type: %w", err)
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var eventType string
		var count int
		if err := typeRows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan type count: %w", err)
		}
		counts.EventsByType[eventType] = count
	}
	return counts, typeRows.Err()
}

// VacuumDatabase reclaims disk space after large cleanups. VACUUM locks the
// database, so callers should run it off-hours.
func (s *SQLiteStorage) VacuumDatabase(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}
