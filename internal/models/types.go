package models

import (
	"encoding/json"
	"time"
)

// ID Strategy:
// - Sessions, Queues, Tasks use string IDs (e.g. "task_1234567890_a3f9")
//   generated at insert time; collision-free without coordination.
// - Task events use int64 (append-only log, sequential indexing).
// - Tasks additionally carry a per-queue friendly label ("BACK-END-3")
//   assigned from the owning queue's counter and never reused.

// SessionStatus represents the lifecycle state of a session.
type SessionStatus string

// Session status constants.
const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusEnded  SessionStatus = "ended"
)

// QueueStatus represents the lifecycle state of a queue.
type QueueStatus string

// Queue status constants.
const (
	QueueStatusActive   QueueStatus = "active"
	QueueStatusIdle     QueueStatus = "idle"
	QueueStatusPlanned  QueueStatus = "planned"
	QueueStatusEnded    QueueStatus = "ended"
	QueueStatusArchived QueueStatus = "archived"
)

// AcceptsTasks reports whether new tasks may be enqueued on a queue in
// this state. Archived and ended queues reject enqueue and requeue.
func (s QueueStatus) AcceptsTasks() bool {
	switch s {
	case QueueStatusArchived, QueueStatusEnded:
		return false
	default:
		return true
	}
}

// TaskStatus represents the current state of a task.
type TaskStatus string

// Task status constants.
const (
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
)

// IsTerminal reports whether the status is absorbing. Terminal tasks can
// only be deleted or cloned via requeue; they never transition again.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusSucceeded || s == TaskStatusFailed
}

// ValidTaskStatus reports whether s is a known task status value.
func ValidTaskStatus(s string) bool {
	switch TaskStatus(s) {
	case TaskStatusQueued, TaskStatusRunning, TaskStatusSucceeded, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Project holds project-level identity. Created once at initialization.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RepoPath  string    `json:"repo_path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session is a named work period grouping queues.
type Session struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Status      SessionStatus `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     *time.Time    `json:"ended_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Queue is a FIFO work lane within a session. Names are globally unique
// across all queues, case-sensitive.
type Queue struct {
	ID                  string      `json:"id"`
	SessionID           string      `json:"session_id"`
	Name                string      `json:"name"`
	Instructions        string      `json:"instructions,omitempty"`
	Status              QueueStatus `json:"status"`
	DefaultAgentRoleKey string      `json:"default_agent_role_key,omitempty"`
	CodexSessionID      string      `json:"codex_session_id,omitempty"`
	ModelProfile        string      `json:"model_profile,omitempty"`
	TaskSeq             int64       `json:"task_seq"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// Task is a single unit of work belonging to exactly one queue.
type Task struct {
	ID             string          `json:"id"`
	FriendlyID     string          `json:"friendly_id"`
	QueueID        string          `json:"queue_id"`
	ToolName       string          `json:"tool_name"`
	TaskClass      string          `json:"task_class"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Status         TaskStatus      `json:"status"`
	TimeoutSeconds int             `json:"timeout"`
	Attempts       int             `json:"attempts"`
	ResultSummary  string          `json:"result_summary,omitempty"`
	ResultData     json.RawMessage `json:"result_data,omitempty"`
	Error          string          `json:"error,omitempty"`
	AgentRoleKey   string          `json:"agent_role_key,omitempty"`
	ClaimedAt      *time.Time      `json:"claimed_at,omitempty"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
	StaleWarnedAt  *time.Time      `json:"stale_warned_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsStale reports whether a running task has exceeded its timeout at now.
func (t *Task) IsStale(now time.Time) bool {
	if t.Status != TaskStatusRunning || t.StartedAt == nil {
		return false
	}
	return now.Sub(*t.StartedAt) > time.Duration(t.TimeoutSeconds)*time.Second
}

// QueueRef is the queue summary embedded in a claim descriptor.
type QueueRef struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Instructions string `json:"instructions,omitempty"`
}

// ClaimDescriptor is the document returned by a successful claim and
// streamed by the runner on stdout, one JSON object per line.
type ClaimDescriptor struct {
	ID         string          `json:"id"`
	FriendlyID string          `json:"friendly_id"`
	Queue      QueueRef        `json:"queue"`
	ToolName   string          `json:"tool_name"`
	TaskClass  string          `json:"task_class"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Status     TaskStatus      `json:"status"`
	Timeout    int             `json:"timeout"`
	Attempts   int             `json:"attempts"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  time.Time       `json:"started_at"`
	ClaimedAt  time.Time       `json:"claimed_at"`
}

// NewClaimDescriptor builds the claim descriptor for a freshly claimed task.
func NewClaimDescriptor(t *Task, q *Queue) *ClaimDescriptor {
	d := &ClaimDescriptor{
		ID:         t.ID,
		FriendlyID: t.FriendlyID,
		Queue:      QueueRef{ID: q.ID, Name: q.Name, Instructions: q.Instructions},
		ToolName:   t.ToolName,
		TaskClass:  t.TaskClass,
		Payload:    t.Payload,
		Status:     t.Status,
		Timeout:    t.TimeoutSeconds,
		Attempts:   t.Attempts,
		CreatedAt:  t.CreatedAt,
	}
	if t.StartedAt != nil {
		d.StartedAt = *t.StartedAt
	}
	if t.ClaimedAt != nil {
		d.ClaimedAt = *t.ClaimedAt
	}
	return d
}

// QueueQueuedCount pairs a queue with its number of queued tasks.
type QueueQueuedCount struct {
	Queue       *Queue `json:"queue"`
	QueuedCount int    `json:"queued_count"`
}

// TaskStatusCounts breaks down task counts by status.
type TaskStatusCounts struct {
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Total returns the sum across all statuses.
func (c TaskStatusCounts) Total() int {
	return c.Queued + c.Running + c.Succeeded + c.Failed
}

// TaskEvent is one row of the append-only task audit log. Events are
// written in the same transaction as the transition they record.
type TaskEvent struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	TaskID    string    `json:"task_id"`
	QueueID   string    `json:"queue_id,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Task event kinds.
const (
	EventKindTaskEnqueued   = "task_enqueued"
	EventKindTaskClaimed    = "task_claimed"
	EventKindTaskSucceeded  = "task_succeeded"
	EventKindTaskFailed     = "task_failed"
	EventKindTaskAutoFailed = "task_auto_failed"
	EventKindTaskStaleWarn  = "task_stale_warned"
	EventKindTaskRequeued   = "task_requeued"
	EventKindTaskDeleted    = "task_deleted"
)
