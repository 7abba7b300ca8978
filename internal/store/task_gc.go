package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dotcommander/sparkq/internal/models"
)

// PurgeTerminalOlderThan deletes succeeded and failed tasks that finished
// before the cutoff. Queued and running tasks are never purged, regardless
// of age. Returns the number of rows deleted.
func PurgeTerminalOlderThan(db *sql.DB, cutoff time.Time) (int64, error) {
	var count int64

	err := Transact(db, func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			DELETE FROM tasks
			WHERE status IN (?, ?)
			  AND finished_at IS NOT NULL
			  AND finished_at < ?
		`, models.TaskStatusSucceeded, models.TaskStatusFailed, fmtTime(cutoff))
		if err != nil {
			return fmt.Errorf("failed to purge terminal tasks: %w", err)
		}

		ra, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to count purged tasks: %w", err)
		}
		count = ra
		return nil
	})

	return count, err
}

// PurgeTaskEventsOlderThan trims the audit log with the same cutoff so it
// does not outgrow the tasks it describes.
func PurgeTaskEventsOlderThan(db *sql.DB, cutoff time.Time) (int64, error) {
	var count int64

	err := Transact(db, func(tx *sql.Tx) error {
		result, err := tx.Exec(`DELETE FROM task_events WHERE created_at < ?`, fmtTime(cutoff))
		if err != nil {
			return fmt.Errorf("failed to purge task events: %w", err)
		}
		ra, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to count purged events: %w", err)
		}
		count = ra
		return nil
	})

	return count, err
}
