package store

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/sparkq/internal/models"
)

func completeTask(db *sql.DB, taskID, summary string, data json.RawMessage, now time.Time) (*models.Task, error) {
	var task *models.Task
	err := Transact(db, func(tx *sql.Tx) error {
		t, err := CompleteTaskTx(tx, taskID, summary, data, now)
		if err != nil {
			return err
		}
		task = t
		return nil
	})
	return task, err
}

func failTask(db *sql.DB, taskID, message string, now time.Time) (*models.Task, error) {
	var task *models.Task
	err := Transact(db, func(tx *sql.Tx) error {
		t, err := FailTaskTx(tx, taskID, message, now)
		if err != nil {
			return err
		}
		task = t
		return nil
	})
	return task, err
}

func TestCompleteTask(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	session := createTestSession(t, db, "complete-session")
	queue := createTestQueue(t, db, session.ID, "complete-queue")
	task := createTestTask(t, db, queue.ID, testBase)
	claimTestTask(t, db, task.ID, testBase.Add(time.Second))

	finishedAt := testBase.Add(time.Minute)
	done, err := completeTask(db, task.ID, "wrote the report", json.RawMessage(`{"lines":42}`), finishedAt)
	require.NoError(t, err)

	assert.Equal(t, models.TaskStatusSucceeded, done.Status)
	assert.Equal(t, "wrote the report", done.ResultSummary)
	assert.JSONEq(t, `{"lines":42}`, string(done.ResultData))
	require.NotNil(t, done.FinishedAt)
	assert.True(t, done.FinishedAt.Equal(finishedAt))
}

func TestCompleteTask_SummaryRequired(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	session := createTestSession(t, db, "summary-session")
	queue := createTestQueue(t, db, session.ID, "summary-queue")
	task := createTestTask(t, db, queue.ID, testBase)
	claimTestTask(t, db, task.ID, testBase.Add(time.Second))

	_, err := completeTask(db, task.ID, "", nil, testBase.Add(time.Minute))
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindValidation))

	// Task stays running.
	got, err := GetTask(db, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusRunning, got.Status)
}

func TestCompleteTask_NotRunning(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	session := createTestSession(t, db, "not-running-session")
	queue := createTestQueue(t, db, session.ID, "not-running-queue")
	task := createTestTask(t, db, queue.ID, testBase)

	_, err := completeTask(db, task.ID, "too early", nil, testBase.Add(time.Minute))
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindPrecondition))

	ce := models.AsClassified(err)
	assert.Equal(t, string(models.TaskStatusQueued), ce.ObservedStatus)
}

func TestFailTask(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	session := createTestSession(t, db, "fail-session")
	queue := createTestQueue(t, db, session.ID, "fail-queue")
	task := createTestTask(t, db, queue.ID, testBase)
	claimTestTask(t, db, task.ID, testBase.Add(time.Second))

	failed, err := failTask(db, task.ID, "script exited 1", testBase.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, models.TaskStatusFailed, failed.Status)
	assert.Equal(t, "script exited 1", failed.Error)
	require.NotNil(t, failed.FinishedAt)

	events, err := ListTaskEvents(db, task.ID, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, models.EventKindTaskFailed, events[2].Kind)
}

func TestTerminalStatesAreAbsorbing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	session := createTestSession(t, db, "absorbing-session")
	queue := createTestQueue(t, db, session.ID, "absorbing-queue")
	task := createTestTask(t, db, queue.ID, testBase)
	claimTestTask(t, db, task.ID, testBase.Add(time.Second))

	_, err := completeTask(db, task.ID, "first outcome", nil, testBase.Add(time.Minute))
	require.NoError(t, err)

	// No transition leaves a terminal state.
	_, err = completeTask(db, task.ID, "second outcome", nil, testBase.Add(2*time.Minute))
	assert.True(t, models.IsKind(err, models.KindPrecondition))

	_, err = failTask(db, task.ID, "late failure", testBase.Add(2*time.Minute))
	assert.True(t, models.IsKind(err, models.KindPrecondition))

	_, err = AtomicClaim(db, task.ID, testBase.Add(2*time.Minute))
	assert.True(t, models.IsKind(err, models.KindConflict))

	got, err := GetTask(db, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusSucceeded, got.Status)
	assert.Equal(t, "first outcome", got.ResultSummary)
}

func TestAutoFail_UsesDistinctEventKind(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	session := createTestSession(t, db, "autofail-session")
	queue := createTestQueue(t, db, session.ID, "autofail-queue")
	task := createTestTask(t, db, queue.ID, testBase)
	claimTestTask(t, db, task.ID, testBase.Add(time.Second))

	require.NoError(t, Transact(db, func(tx *sql.Tx) error {
		_, err := AutoFailTx(tx, task.ID, "auto-failed: exceeded 2m0s timeout", testBase.Add(5*time.Minute))
		return err
	}))

	got, err := GetTask(db, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, got.Status)

	events, err := ListTaskEvents(db, task.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.EventKindTaskAutoFailed, events[len(events)-1].Kind)
}

func TestMarkStaleWarned_Idempotent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	session := createTestSession(t, db, "stale-session")
	queue := createTestQueue(t, db, session.ID, "stale-queue")
	task := createTestTask(t, db, queue.ID, testBase)
	claimTestTask(t, db, task.ID, testBase.Add(time.Second))

	warnAt := testBase.Add(3 * time.Minute)
	require.NoError(t, Transact(db, func(tx *sql.Tx) error {
		return MarkStaleWarnedTx(tx, task.ID, warnAt)
	}))
	require.NoError(t, Transact(db, func(tx *sql.Tx) error {
		return MarkStaleWarnedTx(tx, task.ID, warnAt.Add(time.Minute))
	}))

	got, err := GetTask(db, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.StaleWarnedAt)
	assert.True(t, got.StaleWarnedAt.Equal(warnAt), "second call must not move the warn timestamp")

	events, err := ListTaskEvents(db, task.ID, 0)
	require.NoError(t, err)
	warnEvents := 0
	for _, e := range events {
		if e.Kind == models.EventKindTaskStaleWarn {
			warnEvents++
		}
	}
	assert.Equal(t, 1, warnEvents)
}
