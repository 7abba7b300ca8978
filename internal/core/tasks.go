package core

import (
	"database/sql"
	"encoding/json"

	"github.com/dotcommander/sparkq/internal/models"
	"github.com/dotcommander/sparkq/internal/store"
)

// EnqueueParams are the caller-supplied inputs for Enqueue.
type EnqueueParams struct {
	QueueID        string
	ToolName       string
	Payload        json.RawMessage
	TimeoutSeconds int
	AgentRoleKey   string
}

// Enqueue resolves the tool to its class and timeout, then inserts a
// queued task. An explicit positive TimeoutSeconds overrides the
// resolved default; unknown tools are rejected before touching the db.
func (c *Core) Enqueue(p EnqueueParams) (*models.Task, error) {
	if p.QueueID == "" {
		return nil, models.Validationf("queue_id is required")
	}
	if p.ToolName == "" {
		return nil, models.Validationf("tool_name is required")
	}
	if len(p.Payload) > 0 && !json.Valid(p.Payload) {
		return nil, models.Validationf("payload must be valid JSON")
	}

	res, err := c.resolver.Resolve(p.ToolName, p.TimeoutSeconds)
	if err != nil {
		return nil, err
	}

	var task *models.Task
	err = store.Transact(c.db, func(tx *sql.Tx) error {
		t, err := store.CreateTaskTx(tx, store.CreateTaskParams{
			QueueID:        p.QueueID,
			ToolName:       res.ToolName,
			TaskClass:      res.TaskClass,
			Payload:        p.Payload,
			TimeoutSeconds: res.TimeoutSeconds,
			AgentRoleKey:   p.AgentRoleKey,
		}, c.clock.Now())
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

// GetTask reads one task by id.
func (c *Core) GetTask(id string) (*models.Task, error) {
	return store.GetTask(c.db, id)
}

// Peek returns the next claimable task for a queue without changing any
// state. Returns (nil, nil) when the queue has no queued tasks.
func (c *Core) Peek(queueID string) (*models.Task, error) {
	if _, err := store.GetQueue(c.db, queueID); err != nil {
		return nil, err
	}
	return store.PeekOldestQueuedTx(c.db, queueID)
}

// Claim attempts to move the given task from queued to running and, on
// success, returns the claim descriptor the runner hands to a worker.
// Exactly one of any set of concurrent claimers succeeds; the rest get
// a conflict error.
func (c *Core) Claim(taskID string) (*models.ClaimDescriptor, error) {
	var desc *models.ClaimDescriptor
	err := store.Transact(c.db, func(tx *sql.Tx) error {
		task, err := store.AtomicClaimTx(tx, taskID, c.clock.Now())
		if err != nil {
			return err
		}
		queue, err := store.GetQueueTx(tx, task.QueueID)
		if err != nil {
			return err
		}
		desc = models.NewClaimDescriptor(task, queue)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return desc, nil
}

// ClaimNext peeks the queue and claims the head in one transaction.
// Returns (nil, nil) when the queue is empty; a conflict can still
// surface if another claimer races the same head between our read and
// our guarded update.
func (c *Core) ClaimNext(queueID string) (*models.ClaimDescriptor, error) {
	var desc *models.ClaimDescriptor
	err := store.Transact(c.db, func(tx *sql.Tx) error {
		queue, err := store.GetQueueTx(tx, queueID)
		if err != nil {
			return err
		}
		head, err := store.PeekOldestQueuedTx(tx, queueID)
		if err != nil {
			return err
		}
		if head == nil {
			return nil
		}
		task, err := store.AtomicClaimTx(tx, head.ID, c.clock.Now())
		if err != nil {
			return err
		}
		desc = models.NewClaimDescriptor(task, queue)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return desc, nil
}

// Complete moves a running task to succeeded with a mandatory summary.
func (c *Core) Complete(taskID, summary string, data json.RawMessage) (*models.Task, error) {
	if len(data) > 0 && !json.Valid(data) {
		return nil, models.Validationf("result data must be valid JSON")
	}

	var task *models.Task
	err := store.Transact(c.db, func(tx *sql.Tx) error {
		t, err := store.CompleteTaskTx(tx, taskID, summary, data, c.clock.Now())
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

// Fail moves a running task to failed with an explicit error message.
func (c *Core) Fail(taskID, errorMessage string) (*models.Task, error) {
	var task *models.Task
	err := store.Transact(c.db, func(tx *sql.Tx) error {
		t, err := store.FailTaskTx(tx, taskID, errorMessage, c.clock.Now())
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

// Requeue clones a terminal task into a fresh queued task at the tail
// of its queue. The source row is preserved for audit.
func (c *Core) Requeue(taskID string) (*models.Task, error) {
	return store.CloneForRequeue(c.db, taskID, c.clock.Now())
}

// UpdateTask edits payload, timeout, or agent role on a queued task.
func (c *Core) UpdateTask(taskID string, upd store.TaskUpdate) (*models.Task, error) {
	if len(upd.Payload) > 0 && !json.Valid(upd.Payload) {
		return nil, models.Validationf("payload must be valid JSON")
	}

	var task *models.Task
	err := store.Transact(c.db, func(tx *sql.Tx) error {
		t, err := store.UpdateTaskTx(tx, taskID, upd, c.clock.Now())
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

// DeleteTask removes a task in any state.
func (c *Core) DeleteTask(taskID string) error {
	return store.Transact(c.db, func(tx *sql.Tx) error {
		return store.DeleteTaskTx(tx, taskID, c.clock.Now())
	})
}

// ListTasks returns tasks matching the filters plus the total count.
func (c *Core) ListTasks(f store.TaskFilters) ([]*models.Task, int, error) {
	if f.Status != "" && !models.ValidTaskStatus(string(f.Status)) {
		return nil, 0, models.Validationf("unknown task status: %s", f.Status)
	}
	return store.ListTasks(c.db, f, c.clock.Now())
}

// TaskEvents returns the audit trail for one task, oldest first.
func (c *Core) TaskEvents(taskID string, limit int) ([]*models.TaskEvent, error) {
	if _, err := store.GetTask(c.db, taskID); err != nil {
		return nil, err
	}
	return store.ListTaskEvents(c.db, taskID, limit)
}
