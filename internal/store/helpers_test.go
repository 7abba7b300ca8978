package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/dotcommander/sparkq/internal/models"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := InitDBWithPath(dbPath)
	if err != nil {
		t.Fatalf("InitDBWithPath: %v", err)
	}
	return db, func() { _ = db.Close() }
}

var testBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestSession creates a session directly for test setup.
func createTestSession(t *testing.T, db *sql.DB, name string) *models.Session {
	t.Helper()
	var session *models.Session
	if err := Transact(db, func(tx *sql.Tx) error {
		s, err := CreateSessionTx(tx, name, "", testBase)
		if err != nil {
			return err
		}
		session = s
		return nil
	}); err != nil {
		t.Fatalf("createTestSession(%q): %v", name, err)
	}
	return session
}

// createTestQueue creates a queue under a fresh or given session.
func createTestQueue(t *testing.T, db *sql.DB, sessionID, name string) *models.Queue {
	t.Helper()
	var queue *models.Queue
	if err := Transact(db, func(tx *sql.Tx) error {
		q, err := CreateQueueTx(tx, sessionID, name, "", testBase)
		if err != nil {
			return err
		}
		queue = q
		return nil
	}); err != nil {
		t.Fatalf("createTestQueue(%q): %v", name, err)
	}
	return queue
}

// createTestTask enqueues a task at the given instant.
func createTestTask(t *testing.T, db *sql.DB, queueID string, now time.Time) *models.Task {
	t.Helper()
	var task *models.Task
	if err := Transact(db, func(tx *sql.Tx) error {
		tk, err := CreateTaskTx(tx, CreateTaskParams{
			QueueID:        queueID,
			ToolName:       "run-script",
			TaskClass:      "MEDIUM_SCRIPT",
			TimeoutSeconds: 120,
		}, now)
		if err != nil {
			return err
		}
		task = tk
		return nil
	}); err != nil {
		t.Fatalf("createTestTask: %v", err)
	}
	return task
}

// claimTestTask moves a queued task to running.
func claimTestTask(t *testing.T, db *sql.DB, taskID string, now time.Time) *models.Task {
	t.Helper()
	task, err := AtomicClaim(db, taskID, now)
	if err != nil {
		t.Fatalf("claimTestTask(%s): %v", taskID, err)
	}
	return task
}
