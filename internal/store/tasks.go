package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dotcommander/sparkq/internal/models"
)

// CreateTaskParams groups the inputs for CreateTaskTx.
type CreateTaskParams struct {
	QueueID        string
	ToolName       string
	TaskClass      string
	Payload        json.RawMessage
	TimeoutSeconds int
	AgentRoleKey   string
}

// CreateTaskTx inserts a queued task. The owning queue must exist and be
// accepting tasks (not archived or ended). The friendly label comes from
// the queue's counter, bumped in the same transaction.
func CreateTaskTx(tx *sql.Tx, p CreateTaskParams, now time.Time) (*models.Task, error) {
	if p.TimeoutSeconds <= 0 {
		return nil, models.Validationf("timeout must be positive, got %d", p.TimeoutSeconds)
	}

	queue, err := GetQueueTx(tx, p.QueueID)
	if err != nil {
		return nil, err
	}
	if !queue.Status.AcceptsTasks() {
		return nil, models.Preconditionf(string(queue.Status), "queue %s is not accepting tasks", queue.Name)
	}

	seq, err := NextTaskSeqTx(tx, p.QueueID)
	if err != nil {
		return nil, err
	}

	taskID := generateTaskID()
	ts := fmtTime(now)

	_, err = tx.Exec(`
		INSERT INTO tasks (id, queue_id, friendly_id, tool_name, task_class, payload, status,
			timeout_seconds, attempts, agent_role_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
	`, taskID, p.QueueID, FriendlyLabel(queue.Name, seq), p.ToolName, p.TaskClass,
		nullIfEmptyJSON(p.Payload), models.TaskStatusQueued, p.TimeoutSeconds,
		nullIfEmpty(p.AgentRoleKey), ts, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}

	if err := InsertTaskEventTx(tx, models.EventKindTaskEnqueued, taskID, p.QueueID,
		fmt.Sprintf("Enqueued %s (%s)", p.ToolName, p.TaskClass), now); err != nil {
		return nil, err
	}

	return getTaskByQuerier(tx, taskID)
}

// GetTask retrieves a task by ID.
func GetTask(db *sql.DB, taskID string) (*models.Task, error) {
	return getTaskByQuerier(db, taskID)
}

// GetTaskTx retrieves a task by ID in an existing transaction.
func GetTaskTx(tx *sql.Tx, taskID string) (*models.Task, error) {
	return getTaskByQuerier(tx, taskID)
}

func getTaskByQuerier(q Querier, taskID string) (*models.Task, error) {
	row := q.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, taskID)

	task, err := scanTaskRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFoundf("task not found: %s", taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	return task, nil
}

// PeekOldestQueuedTx returns the queued task with the smallest created_at
// for the queue, id as the deterministic tiebreak. Side-effect-free;
// returns nil when the queue is empty.
func PeekOldestQueuedTx(q Querier, queueID string) (*models.Task, error) {
	row := q.QueryRow(`
		SELECT `+taskColumns+` FROM tasks
		WHERE queue_id = ? AND status = ?
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`, queueID, models.TaskStatusQueued)

	task, err := scanTaskRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to peek queue: %w", err)
	}
	return task, nil
}

// TaskFilters restricts ListTasks. Zero values mean "no filter".
type TaskFilters struct {
	QueueID   string
	Status    models.TaskStatus
	StaleOnly bool
	Limit     int
	Offset    int
}

const defaultListLimit = 50

// ListTasks returns tasks matching the filters plus the total match count
// (pre-pagination). Ordering is created_at ascending, id as tiebreak.
// StaleOnly selects running tasks whose elapsed time exceeds their timeout
// as of now.
func ListTasks(db *sql.DB, f TaskFilters, now time.Time) ([]*models.Task, int, error) {
	where := ` WHERE 1=1`
	var args []any

	if f.QueueID != "" {
		where += ` AND queue_id = ?`
		args = append(args, f.QueueID)
	}
	if f.Status != "" {
		where += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.StaleOnly {
		// Fixed-width UTC timestamps parse cleanly in SQLite's julianday.
		where += ` AND status = ? AND started_at IS NOT NULL
			AND (julianday(?) - julianday(started_at)) * 86400.0 > timeout_seconds`
		args = append(args, models.TaskStatusRunning, fmtTime(now))
	}

	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM tasks`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + taskColumns + ` FROM tasks` + where +
		` ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*models.Task
	for rows.Next() {
		scanner := &taskRowScanner{}
		if err := scanner.scan(rows); err != nil {
			return nil, 0, fmt.Errorf("failed to scan task row: %w", err)
		}
		if err := scanner.hydrate(); err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, &scanner.task)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating task rows: %w", err)
	}

	return tasks, total, nil
}

// ListRunningTasks returns every running task, for the stale sweep.
func ListRunningTasks(db *sql.DB) ([]*models.Task, error) {
	tasks, _, err := ListTasks(db, TaskFilters{Status: models.TaskStatusRunning, Limit: 1 << 30}, time.Time{})
	return tasks, err
}

// TaskUpdate carries the fields editable while a task is not running.
type TaskUpdate struct {
	Payload        json.RawMessage
	TimeoutSeconds *int
	AgentRoleKey   *string
}

// UpdateTaskTx edits payload, timeout, or agent role. Rejected while the
// task is running; terminal tasks are frozen too (requeue instead).
func UpdateTaskTx(tx *sql.Tx, taskID string, upd TaskUpdate, now time.Time) (*models.Task, error) {
	task, err := GetTaskTx(tx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != models.TaskStatusQueued {
		return nil, models.Preconditionf(string(task.Status), "task %s can only be edited while queued", taskID)
	}

	payload := task.Payload
	if upd.Payload != nil {
		payload = upd.Payload
	}
	timeout := task.TimeoutSeconds
	if upd.TimeoutSeconds != nil {
		timeout = *upd.TimeoutSeconds
	}
	if timeout <= 0 {
		return nil, models.Validationf("timeout must be positive, got %d", timeout)
	}
	agentRole := task.AgentRoleKey
	if upd.AgentRoleKey != nil {
		agentRole = *upd.AgentRoleKey
	}

	_, err = tx.Exec(`
		UPDATE tasks SET payload = ?, timeout_seconds = ?, agent_role_key = ?, updated_at = ?
		WHERE id = ?
	`, nullIfEmptyJSON(payload), timeout, nullIfEmpty(agentRole), fmtTime(now), taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return GetTaskTx(tx, taskID)
}

// DeleteTaskTx erases a task in any state, leaving a tombstone event.
func DeleteTaskTx(tx *sql.Tx, taskID string, now time.Time) error {
	task, err := GetTaskTx(tx, taskID)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM tasks WHERE id = ?`, taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	return InsertTaskEventTx(tx, models.EventKindTaskDeleted, taskID, task.QueueID,
		fmt.Sprintf("Deleted in status %s", task.Status), now)
}

// nullIfEmptyJSON maps empty payloads to NULL.
func nullIfEmptyJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
