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

func TestCloneForRequeue(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	session := createTestSession(t, db, "requeue-session")
	queue := createTestQueue(t, db, session.ID, "requeue-queue")

	var source *models.Task
	require.NoError(t, Transact(db, func(tx *sql.Tx) error {
		tk, err := CreateTaskTx(tx, CreateTaskParams{
			QueueID:        queue.ID,
			ToolName:       "llm-sonnet",
			TaskClass:      "LLM_LITE",
			Payload:        json.RawMessage(`{"prompt":"hello"}`),
			TimeoutSeconds: 300,
			AgentRoleKey:   "reviewer",
		}, testBase)
		if err != nil {
			return err
		}
		source = tk
		return nil
	}))

	claimTestTask(t, db, source.ID, testBase.Add(time.Second))
	_, err := failTask(db, source.ID, "flaky tool", testBase.Add(time.Minute))
	require.NoError(t, err)

	clone, err := CloneForRequeue(db, source.ID, testBase.Add(2*time.Minute))
	require.NoError(t, err)

	assert.NotEqual(t, source.ID, clone.ID)
	assert.NotEqual(t, source.FriendlyID, clone.FriendlyID)
	assert.Equal(t, models.TaskStatusQueued, clone.Status)
	assert.Equal(t, 0, clone.Attempts)
	assert.Equal(t, source.QueueID, clone.QueueID)
	assert.Equal(t, "llm-sonnet", clone.ToolName)
	assert.Equal(t, "LLM_LITE", clone.TaskClass)
	assert.Equal(t, 300, clone.TimeoutSeconds)
	assert.Equal(t, "reviewer", clone.AgentRoleKey)
	assert.JSONEq(t, `{"prompt":"hello"}`, string(clone.Payload))
	assert.Empty(t, clone.Error)
	assert.Nil(t, clone.FinishedAt)

	// Source row is untouched except for the audit event.
	got, err := GetTask(db, source.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, got.Status)

	events, err := ListTaskEvents(db, source.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.EventKindTaskRequeued, events[len(events)-1].Kind)
}

func TestCloneForRequeue_TerminalOnly(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	session := createTestSession(t, db, "requeue-live-session")
	queue := createTestQueue(t, db, session.ID, "requeue-live-queue")

	queued := createTestTask(t, db, queue.ID, testBase)
	_, err := CloneForRequeue(db, queued.ID, testBase.Add(time.Second))
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindPrecondition))

	claimTestTask(t, db, queued.ID, testBase.Add(time.Second))
	_, err = CloneForRequeue(db, queued.ID, testBase.Add(2*time.Second))
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindPrecondition))
}

func TestCloneForRequeue_ArchivedQueueRejects(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	session := createTestSession(t, db, "requeue-arch-session")
	queue := createTestQueue(t, db, session.ID, "requeue-arch-queue")

	task := createTestTask(t, db, queue.ID, testBase)
	claimTestTask(t, db, task.ID, testBase.Add(time.Second))
	_, err := failTask(db, task.ID, "boom", testBase.Add(time.Minute))
	require.NoError(t, err)

	require.NoError(t, Transact(db, func(tx *sql.Tx) error {
		_, err := SetQueueStatusTx(tx, queue.ID, models.QueueStatusArchived, testBase.Add(2*time.Minute))
		return err
	}))

	_, err = CloneForRequeue(db, task.ID, testBase.Add(3*time.Minute))
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindPrecondition))
}
