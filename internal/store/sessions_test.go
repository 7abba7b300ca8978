package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/sparkq/internal/models"
)

func TestSessionLifecycle(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	session := createTestSession(t, db, "sprint-12")
	assert.Equal(t, models.SessionStatusActive, session.Status)
	assert.Nil(t, session.EndedAt)

	endedAt := testBase.Add(time.Hour)
	require.NoError(t, Transact(db, func(tx *sql.Tx) error {
		s, err := EndSessionTx(tx, session.ID, endedAt)
		if err != nil {
			return err
		}
		assert.Equal(t, models.SessionStatusEnded, s.Status)
		require.NotNil(t, s.EndedAt)
		assert.True(t, s.EndedAt.Equal(endedAt))
		return nil
	}))

	// Ending twice is a precondition error.
	err := Transact(db, func(tx *sql.Tx) error {
		_, err := EndSessionTx(tx, session.ID, endedAt.Add(time.Minute))
		return err
	})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindPrecondition))
}

func TestListSessions_NewestFirst(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, Transact(db, func(tx *sql.Tx) error {
		_, err := CreateSessionTx(tx, "older", "", testBase)
		return err
	}))
	require.NoError(t, Transact(db, func(tx *sql.Tx) error {
		_, err := CreateSessionTx(tx, "newer", "", testBase.Add(time.Minute))
		return err
	}))

	sessions, err := ListSessions(db)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "newer", sessions[0].Name)
	assert.Equal(t, "older", sessions[1].Name)
}

func TestUpdateSession(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	session := createTestSession(t, db, "rename-me")

	newName := "renamed"
	newDesc := "new description"
	require.NoError(t, Transact(db, func(tx *sql.Tx) error {
		s, err := UpdateSessionTx(tx, session.ID, SessionUpdate{
			Name:        &newName,
			Description: &newDesc,
		}, testBase.Add(time.Second))
		if err != nil {
			return err
		}
		assert.Equal(t, "renamed", s.Name)
		assert.Equal(t, "new description", s.Description)
		return nil
	}))
}

func TestDeleteSession_Cascade(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	session := createTestSession(t, db, "cascade-session")
	queue := createTestQueue(t, db, session.ID, "cascade-queue")
	task := createTestTask(t, db, queue.ID, testBase)

	// Without cascade, the session still owning queues is rejected.
	err := Transact(db, func(tx *sql.Tx) error {
		return DeleteSessionTx(tx, session.ID, false)
	})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindPrecondition))

	require.NoError(t, Transact(db, func(tx *sql.Tx) error {
		return DeleteSessionTx(tx, session.ID, true)
	}))

	_, err = GetSession(db, session.ID)
	assert.True(t, models.IsKind(err, models.KindNotFound))
	_, err = GetQueue(db, queue.ID)
	assert.True(t, models.IsKind(err, models.KindNotFound))
	_, err = GetTask(db, task.ID)
	assert.True(t, models.IsKind(err, models.KindNotFound))
}
