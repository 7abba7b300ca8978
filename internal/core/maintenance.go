package core

import (
	"database/sql"
	"time"

	"github.com/dotcommander/sparkq/internal/models"
	"github.com/dotcommander/sparkq/internal/store"
)

// ListRunning returns every running task. The supervisor sweeps this set.
func (c *Core) ListRunning() ([]*models.Task, error) {
	return store.ListRunningTasks(c.db)
}

// MarkStaleWarned records the stale warning on a running task. Safe to
// call repeatedly; only the first call writes.
func (c *Core) MarkStaleWarned(taskID string) error {
	return store.Transact(c.db, func(tx *sql.Tx) error {
		return store.MarkStaleWarnedTx(tx, taskID, c.clock.Now())
	})
}

// AutoFail force-fails a running task that ran too long. A worker that
// completes the task first wins; the supervisor's precondition error is
// then expected and harmless.
func (c *Core) AutoFail(taskID, reason string) (*models.Task, error) {
	var task *models.Task
	err := store.Transact(c.db, func(tx *sql.Tx) error {
		t, err := store.AutoFailTx(tx, taskID, reason, c.clock.Now())
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

// PurgeOlderThan deletes terminal tasks that finished before the cutoff
// and trims their orphaned events. Returns the number of tasks removed.
func (c *Core) PurgeOlderThan(retention time.Duration) (int64, error) {
	cutoff := c.clock.Now().Add(-retention)
	purged, err := store.PurgeTerminalOlderThan(c.db, cutoff)
	if err != nil {
		return 0, err
	}
	if _, err := store.PurgeTaskEventsOlderThan(c.db, cutoff); err != nil {
		return purged, err
	}
	return purged, nil
}
