package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dotcommander/sparkq/internal/models"
)

// AtomicClaimTx moves a task from queued to running with a conditional
// update: the WHERE clause re-checks the status, so of any number of
// concurrent claimers exactly one sees RowsAffected == 1. The loser gets
// a conflict error and observes no change.
//
// claimed_at and started_at are set together on this edge; attempts is
// incremented exactly once per successful claim.
func AtomicClaimTx(tx *sql.Tx, taskID string, now time.Time) (*models.Task, error) {
	if taskID == "" {
		return nil, models.Validationf("task ID is required")
	}

	ts := fmtTime(now)
	result, err := tx.Exec(`
		UPDATE tasks
		SET status = ?,
		    claimed_at = ?,
		    started_at = ?,
		    attempts = attempts + 1,
		    updated_at = ?
		WHERE id = ? AND status = ?
	`, models.TaskStatusRunning, ts, ts, ts, taskID, models.TaskStatusQueued)
	if err != nil {
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Either another claimer won, or the task moved on (or vanished).
		if _, getErr := GetTaskTx(tx, taskID); getErr != nil {
			return nil, getErr
		}
		return nil, models.Conflictf("task %s is no longer queued", taskID)
	}

	task, err := GetTaskTx(tx, taskID)
	if err != nil {
		return nil, err
	}

	if err := InsertTaskEventTx(tx, models.EventKindTaskClaimed, taskID, task.QueueID,
		fmt.Sprintf("Claimed (attempt %d)", task.Attempts), now); err != nil {
		return nil, err
	}

	return task, nil
}

// AtomicClaim is the standalone-transaction variant.
func AtomicClaim(db *sql.DB, taskID string, now time.Time) (*models.Task, error) {
	var task *models.Task
	err := Transact(db, func(tx *sql.Tx) error {
		t, err := AtomicClaimTx(tx, taskID, now)
		if err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}
