package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dotcommander/sparkq/internal/models"
)

// timeLayout is the fixed-width TEXT encoding for all persisted
// timestamps. Fixed width (always 9 fractional digits, always UTC) means
// lexical comparison in SQL equals chronological comparison, which the
// peek ordering, the stale sweep, and the purge cutoff all rely on.
const timeLayout = "2006-01-02 15:04:05.000000000"

// fmtTime encodes a timestamp for storage.
func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime decodes a stored timestamp.
func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// scanNullString converts sql.NullString to string (empty if NULL)
func scanNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// scanNullTimeText converts a nullable stored timestamp to *time.Time.
func scanNullTimeText(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// scanNullJSON converts a nullable TEXT column to a raw JSON value.
func scanNullJSON(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// taskRowScanner encapsulates the common task row scanning logic.
type taskRowScanner struct {
	task          models.Task
	payload       sql.NullString
	resultSummary sql.NullString
	resultData    sql.NullString
	errText       sql.NullString
	agentRoleKey  sql.NullString
	claimedAt     sql.NullString
	startedAt     sql.NullString
	finishedAt    sql.NullString
	staleWarnedAt sql.NullString
	createdAt     string
	updatedAt     string
}

// taskColumns is the SELECT list every task read uses, in scan order.
const taskColumns = `id, queue_id, friendly_id, tool_name, task_class, payload, status,
	timeout_seconds, attempts, result_summary, result_data, error, agent_role_key,
	claimed_at, started_at, finished_at, stale_warned_at, created_at, updated_at`

func (s *taskRowScanner) scan(row rowScanner) error {
	return row.Scan(
		&s.task.ID,
		&s.task.QueueID,
		&s.task.FriendlyID,
		&s.task.ToolName,
		&s.task.TaskClass,
		&s.payload,
		&s.task.Status,
		&s.task.TimeoutSeconds,
		&s.task.Attempts,
		&s.resultSummary,
		&s.resultData,
		&s.errText,
		&s.agentRoleKey,
		&s.claimedAt,
		&s.startedAt,
		&s.finishedAt,
		&s.staleWarnedAt,
		&s.createdAt,
		&s.updatedAt,
	)
}

func (s *taskRowScanner) hydrate() error {
	s.task.Payload = scanNullJSON(s.payload)
	s.task.ResultSummary = scanNullString(s.resultSummary)
	s.task.ResultData = scanNullJSON(s.resultData)
	s.task.Error = scanNullString(s.errText)
	s.task.AgentRoleKey = scanNullString(s.agentRoleKey)

	var err error
	if s.task.ClaimedAt, err = scanNullTimeText(s.claimedAt); err != nil {
		return err
	}
	if s.task.StartedAt, err = scanNullTimeText(s.startedAt); err != nil {
		return err
	}
	if s.task.FinishedAt, err = scanNullTimeText(s.finishedAt); err != nil {
		return err
	}
	if s.task.StaleWarnedAt, err = scanNullTimeText(s.staleWarnedAt); err != nil {
		return err
	}
	if s.task.CreatedAt, err = parseTime(s.createdAt); err != nil {
		return err
	}
	if s.task.UpdatedAt, err = parseTime(s.updatedAt); err != nil {
		return err
	}
	return nil
}

// scanTaskRow scans and hydrates a task from a single row.
func scanTaskRow(row rowScanner) (*models.Task, error) {
	scanner := &taskRowScanner{}
	if err := scanner.scan(row); err != nil {
		return nil, err
	}
	if err := scanner.hydrate(); err != nil {
		return nil, err
	}
	return &scanner.task, nil
}
