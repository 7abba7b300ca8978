package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dotcommander/sparkq/internal/models"
)

// InsertTaskEventTx appends one audit row. Always called inside the
// transaction performing the transition it records, so the log never
// disagrees with task state.
func InsertTaskEventTx(tx *sql.Tx, kind, taskID, queueID, message string, now time.Time) error {
	_, err := tx.Exec(`
		INSERT INTO task_events (kind, task_id, queue_id, message, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, kind, taskID, nullIfEmpty(queueID), message, fmtTime(now))
	if err != nil {
		return fmt.Errorf("failed to append task event: %w", err)
	}
	return nil
}

// ListTaskEvents returns the audit trail for one task, oldest first.
func ListTaskEvents(db *sql.DB, taskID string, limit int) ([]*models.TaskEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT id, kind, task_id, queue_id, message, created_at
		FROM task_events
		WHERE task_id = ?
		ORDER BY id ASC
		LIMIT ?
	`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query task events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.TaskEvent
	for rows.Next() {
		var (
			e         models.TaskEvent
			queueID   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.TaskID, &queueID, &e.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan task event: %w", err)
		}
		e.QueueID = scanNullString(queueID)
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
