package store

import (
	"database/sql"
	"fmt"

	"github.com/dotcommander/sparkq/internal/models"
)

// CountByStatus returns task counts per status, optionally scoped to one
// queue.
func CountByStatus(db *sql.DB, queueID string) (models.TaskStatusCounts, error) {
	query := `SELECT status, COUNT(*) FROM tasks`
	var args []any
	if queueID != "" {
		query += ` WHERE queue_id = ?`
		args = append(args, queueID)
	}
	query += ` GROUP BY status`

	rows, err := db.Query(query, args...)
	if err != nil {
		return models.TaskStatusCounts{}, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts models.TaskStatusCounts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return models.TaskStatusCounts{}, fmt.Errorf("failed to scan status count: %w", err)
		}
		switch models.TaskStatus(status) {
		case models.TaskStatusQueued:
			counts.Queued = n
		case models.TaskStatusRunning:
			counts.Running = n
		case models.TaskStatusSucceeded:
			counts.Succeeded = n
		case models.TaskStatusFailed:
			counts.Failed = n
		}
	}
	return counts, rows.Err()
}

// QueuesWithQueuedTasks returns every queue that has at least one queued
// task, with its queued count, ordered by queue creation.
func QueuesWithQueuedTasks(db *sql.DB) ([]*models.QueueQueuedCount, error) {
	rows, err := db.Query(`
		SELECT q.id, COUNT(t.id)
		FROM queues q
		JOIN tasks t ON t.queue_id = q.id AND t.status = ?
		GROUP BY q.id
		ORDER BY q.created_at ASC, q.id ASC
	`, models.TaskStatusQueued)
	if err != nil {
		return nil, fmt.Errorf("failed to query queues with queued tasks: %w", err)
	}

	type pair struct {
		queueID string
		count   int
	}
	var pairs []pair
	func() {
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			var p pair
			if scanErr := rows.Scan(&p.queueID, &p.count); scanErr != nil {
				err = fmt.Errorf("failed to scan queued count: %w", scanErr)
				return
			}
			pairs = append(pairs, p)
		}
		if rowsErr := rows.Err(); rowsErr != nil {
			err = rowsErr
		}
	}()
	if err != nil {
		return nil, err
	}

	// Second pass loads the full queue rows (SQLite single-connection
	// safety: no nested queries while rows are open).
	out := make([]*models.QueueQueuedCount, 0, len(pairs))
	for _, p := range pairs {
		queue, err := GetQueue(db, p.queueID)
		if err != nil {
			return nil, err
		}
		out = append(out, &models.QueueQueuedCount{Queue: queue, QueuedCount: p.count})
	}
	return out, nil
}
