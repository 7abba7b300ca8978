package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dotcommander/sparkq/internal/models"
)

// CompleteTaskTx moves a running task to succeeded. The guarded UPDATE
// only fires while status is still running; a supervisor auto-fail that
// commits first makes this a precondition error, never a torn write.
func CompleteTaskTx(tx *sql.Tx, taskID, summary string, data json.RawMessage, now time.Time) (*models.Task, error) {
	if summary == "" {
		return nil, models.Validationf("result summary is required")
	}

	ts := fmtTime(now)
	result, err := tx.Exec(`
		UPDATE tasks
		SET status = ?, result_summary = ?, result_data = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, models.TaskStatusSucceeded, summary, nullIfEmptyJSON(data), ts, ts,
		taskID, models.TaskStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("failed to complete task: %w", err)
	}

	if err := requireTransition(tx, result, taskID, "complete"); err != nil {
		return nil, err
	}

	task, err := GetTaskTx(tx, taskID)
	if err != nil {
		return nil, err
	}

	if err := InsertTaskEventTx(tx, models.EventKindTaskSucceeded, taskID, task.QueueID,
		"Succeeded: "+summary, now); err != nil {
		return nil, err
	}
	return task, nil
}

// FailTaskTx moves a running task to failed with an explicit error message.
func FailTaskTx(tx *sql.Tx, taskID, errorMessage string, now time.Time) (*models.Task, error) {
	return failTx(tx, taskID, errorMessage, models.EventKindTaskFailed, now)
}

// AutoFailTx is the supervisor's variant of Fail: same guarded transition,
// but the error text identifies timeout exceedance as the cause.
func AutoFailTx(tx *sql.Tx, taskID, reason string, now time.Time) (*models.Task, error) {
	return failTx(tx, taskID, reason, models.EventKindTaskAutoFailed, now)
}

func failTx(tx *sql.Tx, taskID, errorMessage, eventKind string, now time.Time) (*models.Task, error) {
	if errorMessage == "" {
		return nil, models.Validationf("error message is required")
	}

	ts := fmtTime(now)
	result, err := tx.Exec(`
		UPDATE tasks
		SET status = ?, error = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, models.TaskStatusFailed, errorMessage, ts, ts, taskID, models.TaskStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("failed to fail task: %w", err)
	}

	if err := requireTransition(tx, result, taskID, "fail"); err != nil {
		return nil, err
	}

	task, err := GetTaskTx(tx, taskID)
	if err != nil {
		return nil, err
	}

	if err := InsertTaskEventTx(tx, eventKind, taskID, task.QueueID,
		"Failed: "+errorMessage, now); err != nil {
		return nil, err
	}
	return task, nil
}

// MarkStaleWarnedTx sets stale_warned_at if the task is still running and
// not yet warned. Idempotent: a second call is a no-op, not an error.
func MarkStaleWarnedTx(tx *sql.Tx, taskID string, now time.Time) error {
	ts := fmtTime(now)
	result, err := tx.Exec(`
		UPDATE tasks
		SET stale_warned_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND stale_warned_at IS NULL
	`, ts, ts, taskID, models.TaskStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to mark task stale: %w", err)
	}

	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if ra == 0 {
		return nil
	}

	task, err := GetTaskTx(tx, taskID)
	if err != nil {
		return err
	}
	return InsertTaskEventTx(tx, models.EventKindTaskStaleWarn, taskID, task.QueueID,
		"Running past timeout", now)
}

// requireTransition converts RowsAffected == 0 on a guarded status update
// into a precondition error carrying the observed status.
func requireTransition(tx *sql.Tx, result sql.Result, taskID, op string) error {
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if ra > 0 {
		return nil
	}

	task, err := GetTaskTx(tx, taskID)
	if err != nil {
		return err
	}
	return models.Preconditionf(string(task.Status), "cannot %s task %s: not running", op, taskID)
}
