package core

import (
	"database/sql"

	"github.com/dotcommander/sparkq/internal/models"
	"github.com/dotcommander/sparkq/internal/store"
)

// CreateQueue opens a new FIFO work lane under a session.
func (c *Core) CreateQueue(sessionID, name, instructions string) (*models.Queue, error) {
	if sessionID == "" {
		return nil, models.Validationf("session_id is required")
	}
	if name == "" {
		return nil, models.Validationf("queue name must not be empty")
	}

	var queue *models.Queue
	err := store.Transact(c.db, func(tx *sql.Tx) error {
		q, err := store.CreateQueueTx(tx, sessionID, name, instructions, c.clock.Now())
		if err != nil {
			return err
		}
		queue = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return queue, nil
}

// GetQueue reads one queue by id.
func (c *Core) GetQueue(id string) (*models.Queue, error) {
	return store.GetQueue(c.db, id)
}

// GetQueueByName reads one queue by its globally unique name.
func (c *Core) GetQueueByName(name string) (*models.Queue, error) {
	return store.GetQueueByName(c.db, name)
}

// ListQueues returns queues, optionally scoped to one session.
func (c *Core) ListQueues(sessionID string) ([]*models.Queue, error) {
	return store.ListQueues(c.db, sessionID)
}

// UpdateQueue applies a partial update to a queue's mutable fields.
func (c *Core) UpdateQueue(id string, upd store.QueueUpdate) (*models.Queue, error) {
	if upd.Status != nil {
		switch *upd.Status {
		case models.QueueStatusActive, models.QueueStatusIdle, models.QueueStatusPlanned,
			models.QueueStatusEnded, models.QueueStatusArchived:
		default:
			return nil, models.Validationf("unknown queue status: %s", *upd.Status)
		}
	}

	var queue *models.Queue
	err := store.Transact(c.db, func(tx *sql.Tx) error {
		q, err := store.UpdateQueueTx(tx, id, upd, c.clock.Now())
		if err != nil {
			return err
		}
		queue = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return queue, nil
}

// ArchiveQueue moves a queue to archived; it stops accepting tasks.
func (c *Core) ArchiveQueue(id string) (*models.Queue, error) {
	return c.setQueueStatus(id, models.QueueStatusArchived)
}

// UnarchiveQueue reverses an archive, returning the queue to active.
func (c *Core) UnarchiveQueue(id string) (*models.Queue, error) {
	return c.setQueueStatus(id, models.QueueStatusActive)
}

func (c *Core) setQueueStatus(id string, status models.QueueStatus) (*models.Queue, error) {
	var queue *models.Queue
	err := store.Transact(c.db, func(tx *sql.Tx) error {
		q, err := store.SetQueueStatusTx(tx, id, status, c.clock.Now())
		if err != nil {
			return err
		}
		queue = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return queue, nil
}

// DeleteQueue removes a queue; cascade deletes its non-terminal tasks too.
func (c *Core) DeleteQueue(id string, cascade bool) error {
	return store.Transact(c.db, func(tx *sql.Tx) error {
		return store.DeleteQueueTx(tx, id, cascade)
	})
}

// QueuesWithQueuedTasks returns queues that have at least one queued task,
// each with its queued count.
func (c *Core) QueuesWithQueuedTasks() ([]*models.QueueQueuedCount, error) {
	return store.QueuesWithQueuedTasks(c.db)
}

// CountByStatus returns task counts per status, optionally per queue.
func (c *Core) CountByStatus(queueID string) (models.TaskStatusCounts, error) {
	return store.CountByStatus(c.db, queueID)
}
