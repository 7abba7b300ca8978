package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dotcommander/sparkq/internal/models"
)

// CreateQueueTx inserts a queue under a session. Queue names are globally
// unique (case-sensitive); the UNIQUE index enforces it and the violation
// is surfaced as a validation error.
func CreateQueueTx(tx *sql.Tx, sessionID, name, instructions string, now time.Time) (*models.Queue, error) {
	session, err := GetSessionTx(tx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionStatusEnded {
		return nil, models.Preconditionf(string(session.Status), "session %s has ended", sessionID)
	}

	id := generateQueueID()
	ts := fmtTime(now)

	_, err = tx.Exec(`
		INSERT INTO queues (id, session_id, name, instructions, status, task_seq, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
	`, id, sessionID, name, instructions, models.QueueStatusActive, ts, ts)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, models.Validationf("queue name already in use: %s", name)
		}
		return nil, fmt.Errorf("failed to insert queue: %w", err)
	}

	return getQueueByQuerier(tx, id)
}

// GetQueue retrieves a queue by ID.
func GetQueue(db *sql.DB, id string) (*models.Queue, error) {
	return getQueueByQuerier(db, id)
}

// GetQueueTx retrieves a queue by ID in an existing transaction.
func GetQueueTx(tx *sql.Tx, id string) (*models.Queue, error) {
	return getQueueByQuerier(tx, id)
}

// GetQueueByName retrieves a queue by its globally unique name.
func GetQueueByName(db *sql.DB, name string) (*models.Queue, error) {
	row := db.QueryRow(queueSelect+` WHERE name = ?`, name)
	q, err := scanQueueRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFoundf("queue not found: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query queue: %w", err)
	}
	return q, nil
}

const queueSelect = `
	SELECT id, session_id, name, instructions, status, default_agent_role_key,
	       codex_session_id, model_profile, task_seq, created_at, updated_at
	FROM queues`

func getQueueByQuerier(q Querier, id string) (*models.Queue, error) {
	row := q.QueryRow(queueSelect+` WHERE id = ?`, id)
	queue, err := scanQueueRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFoundf("queue not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query queue: %w", err)
	}
	return queue, nil
}

// ListQueues returns queues, optionally filtered by session, oldest first.
func ListQueues(db *sql.DB, sessionID string) ([]*models.Queue, error) {
	query := queueSelect
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query queues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Queue
	for rows.Next() {
		q, err := scanQueueRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue row: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// QueueUpdate carries the mutable queue fields. Nil pointers leave the
// column untouched.
type QueueUpdate struct {
	Name                *string
	Instructions        *string
	Status              *models.QueueStatus
	DefaultAgentRoleKey *string
	CodexSessionID      *string
	ModelProfile        *string
}

// UpdateQueueTx applies a partial update to a queue.
func UpdateQueueTx(tx *sql.Tx, id string, upd QueueUpdate, now time.Time) (*models.Queue, error) {
	q, err := GetQueueTx(tx, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		if *upd.Name == "" {
			return nil, models.Validationf("queue name must not be empty")
		}
		q.Name = *upd.Name
	}
	if upd.Instructions != nil {
		q.Instructions = *upd.Instructions
	}
	if upd.Status != nil {
		q.Status = *upd.Status
	}
	if upd.DefaultAgentRoleKey != nil {
		q.DefaultAgentRoleKey = *upd.DefaultAgentRoleKey
	}
	if upd.CodexSessionID != nil {
		q.CodexSessionID = *upd.CodexSessionID
	}
	if upd.ModelProfile != nil {
		q.ModelProfile = *upd.ModelProfile
	}

	_, err = tx.Exec(`
		UPDATE queues
		SET name = ?, instructions = ?, status = ?, default_agent_role_key = ?,
		    codex_session_id = ?, model_profile = ?, updated_at = ?
		WHERE id = ?
	`, q.Name, q.Instructions, q.Status, nullIfEmpty(q.DefaultAgentRoleKey),
		nullIfEmpty(q.CodexSessionID), nullIfEmpty(q.ModelProfile), fmtTime(now), id)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, models.Validationf("queue name already in use: %s", q.Name)
		}
		return nil, fmt.Errorf("failed to update queue: %w", err)
	}

	return GetQueueTx(tx, id)
}

// SetQueueStatusTx moves a queue to the given status. Archive/unarchive
// are reversible moves through here.
func SetQueueStatusTx(tx *sql.Tx, id string, status models.QueueStatus, now time.Time) (*models.Queue, error) {
	if _, err := GetQueueTx(tx, id); err != nil {
		return nil, err
	}
	_, err := tx.Exec(`UPDATE queues SET status = ?, updated_at = ? WHERE id = ?`,
		status, fmtTime(now), id)
	if err != nil {
		return nil, fmt.Errorf("failed to set queue status: %w", err)
	}
	return GetQueueTx(tx, id)
}

// DeleteQueueTx removes a queue. Without cascade, a queue that still has
// queued or running tasks is rejected; terminal tasks are deleted with the
// queue either way.
func DeleteQueueTx(tx *sql.Tx, id string, cascade bool) error {
	if _, err := GetQueueTx(tx, id); err != nil {
		return err
	}

	if !cascade {
		var liveCount int
		err := tx.QueryRow(`
			SELECT COUNT(*) FROM tasks WHERE queue_id = ? AND status IN (?, ?)
		`, id, models.TaskStatusQueued, models.TaskStatusRunning).Scan(&liveCount)
		if err != nil {
			return fmt.Errorf("failed to count live tasks: %w", err)
		}
		if liveCount > 0 {
			return models.Preconditionf("", "queue %s still has %d non-terminal task(s); pass cascade to delete them", id, liveCount)
		}
	}

	if _, err := tx.Exec(`DELETE FROM tasks WHERE queue_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete queue tasks: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM queues WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete queue: %w", err)
	}
	return nil
}

// NextTaskSeqTx bumps and returns the queue's friendly-id counter.
// Runs inside the enqueue transaction so labels are never reused.
func NextTaskSeqTx(tx *sql.Tx, queueID string) (int64, error) {
	res, err := tx.Exec(`UPDATE queues SET task_seq = task_seq + 1 WHERE id = ?`, queueID)
	if err != nil {
		return 0, fmt.Errorf("failed to bump task_seq: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if ra == 0 {
		return 0, models.NotFoundf("queue not found: %s", queueID)
	}

	var seq int64
	if err := tx.QueryRow(`SELECT task_seq FROM queues WHERE id = ?`, queueID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to read task_seq: %w", err)
	}
	return seq, nil
}

func scanQueueRow(row rowScanner) (*models.Queue, error) {
	var (
		q              models.Queue
		agentRoleKey   sql.NullString
		codexSessionID sql.NullString
		modelProfile   sql.NullString
		createdAt      string
		updatedAt      string
	)
	if err := row.Scan(&q.ID, &q.SessionID, &q.Name, &q.Instructions, &q.Status,
		&agentRoleKey, &codexSessionID, &modelProfile, &q.TaskSeq, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	q.DefaultAgentRoleKey = scanNullString(agentRoleKey)
	q.CodexSessionID = scanNullString(codexSessionID)
	q.ModelProfile = scanNullString(modelProfile)

	var err error
	if q.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if q.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &q, nil
}
