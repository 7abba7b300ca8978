package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dotcommander/sparkq/internal/models"
)

// CloneForRequeueTx creates a fresh queued task from a terminal source,
// copying queue, tool, class, payload, timeout, and agent role. The source
// row is untouched (kept for audit); the clone gets a new id, a new
// friendly label, and attempts = 0.
func CloneForRequeueTx(tx *sql.Tx, sourceTaskID string, now time.Time) (*models.Task, error) {
	source, err := GetTaskTx(tx, sourceTaskID)
	if err != nil {
		return nil, err
	}
	if !source.Status.IsTerminal() {
		return nil, models.Preconditionf(string(source.Status), "task %s is not terminal; only succeeded or failed tasks can be requeued", sourceTaskID)
	}

	clone, err := CreateTaskTx(tx, CreateTaskParams{
		QueueID:        source.QueueID,
		ToolName:       source.ToolName,
		TaskClass:      source.TaskClass,
		Payload:        source.Payload,
		TimeoutSeconds: source.TimeoutSeconds,
		AgentRoleKey:   source.AgentRoleKey,
	}, now)
	if err != nil {
		return nil, err
	}

	if err := InsertTaskEventTx(tx, models.EventKindTaskRequeued, sourceTaskID, source.QueueID,
		fmt.Sprintf("Requeued as %s", clone.ID), now); err != nil {
		return nil, err
	}
	return clone, nil
}

// CloneForRequeue is the standalone-transaction variant.
func CloneForRequeue(db *sql.DB, sourceTaskID string, now time.Time) (*models.Task, error) {
	var clone *models.Task
	err := Transact(db, func(tx *sql.Tx) error {
		c, err := CloneForRequeueTx(tx, sourceTaskID, now)
		if err != nil {
			return err
		}
		clone = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return clone, nil
}
