package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dotcommander/sparkq/internal/models"
)

// CreateSessionTx inserts and returns a session inside an existing transaction.
func CreateSessionTx(tx *sql.Tx, name, description string, now time.Time) (*models.Session, error) {
	id := generateSessionID()
	ts := fmtTime(now)

	_, err := tx.Exec(`
		INSERT INTO sessions (id, name, description, status, started_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, name, nullIfEmpty(description), models.SessionStatusActive, ts, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}

	return getSessionByQuerier(tx, id)
}

// GetSession retrieves a session by ID.
func GetSession(db *sql.DB, id string) (*models.Session, error) {
	return getSessionByQuerier(db, id)
}

// GetSessionTx retrieves a session by ID in an existing transaction.
func GetSessionTx(tx *sql.Tx, id string) (*models.Session, error) {
	return getSessionByQuerier(tx, id)
}

func getSessionByQuerier(q Querier, id string) (*models.Session, error) {
	row := q.QueryRow(`
		SELECT id, name, description, status, started_at, ended_at, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id)

	s, err := scanSessionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFoundf("session not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return s, nil
}

// ListSessions returns all sessions, newest first.
func ListSessions(db *sql.DB) ([]*models.Session, error) {
	rows, err := db.Query(`
		SELECT id, name, description, status, started_at, ended_at, created_at, updated_at
		FROM sessions ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Session
	for rows.Next() {
		s, err := scanSessionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SessionUpdate carries the mutable session fields. Nil pointers leave the
// column untouched.
type SessionUpdate struct {
	Name        *string
	Description *string
}

// UpdateSessionTx renames or re-describes a session.
func UpdateSessionTx(tx *sql.Tx, id string, upd SessionUpdate, now time.Time) (*models.Session, error) {
	s, err := GetSessionTx(tx, id)
	if err != nil {
		return nil, err
	}

	name := s.Name
	if upd.Name != nil {
		name = *upd.Name
	}
	if name == "" {
		return nil, models.Validationf("session name must not be empty")
	}
	description := s.Description
	if upd.Description != nil {
		description = *upd.Description
	}

	_, err = tx.Exec(`
		UPDATE sessions SET name = ?, description = ?, updated_at = ? WHERE id = ?
	`, name, nullIfEmpty(description), fmtTime(now), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	return GetSessionTx(tx, id)
}

// EndSessionTx marks a session ended. Ending an ended session is rejected.
func EndSessionTx(tx *sql.Tx, id string, now time.Time) (*models.Session, error) {
	s, err := GetSessionTx(tx, id)
	if err != nil {
		return nil, err
	}
	if s.Status == models.SessionStatusEnded {
		return nil, models.Preconditionf(string(s.Status), "session %s already ended", id)
	}

	ts := fmtTime(now)
	_, err = tx.Exec(`
		UPDATE sessions SET status = ?, ended_at = ?, updated_at = ? WHERE id = ?
	`, models.SessionStatusEnded, ts, ts, id)
	if err != nil {
		return nil, fmt.Errorf("failed to end session: %w", err)
	}

	return GetSessionTx(tx, id)
}

// DeleteSessionTx removes a session. Without cascade, a session that still
// owns queues is rejected. With cascade, its queues and their tasks go too.
func DeleteSessionTx(tx *sql.Tx, id string, cascade bool) error {
	if _, err := GetSessionTx(tx, id); err != nil {
		return err
	}

	var queueCount int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM queues WHERE session_id = ?`, id).Scan(&queueCount); err != nil {
		return fmt.Errorf("failed to count session queues: %w", err)
	}

	if queueCount > 0 {
		if !cascade {
			return models.Preconditionf("", "session %s still owns %d queue(s); pass cascade to delete them", id, queueCount)
		}
		if _, err := tx.Exec(`
			DELETE FROM tasks WHERE queue_id IN (SELECT id FROM queues WHERE session_id = ?)
		`, id); err != nil {
			return fmt.Errorf("failed to delete session tasks: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM queues WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete session queues: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func scanSessionRow(row rowScanner) (*models.Session, error) {
	var (
		s           models.Session
		description sql.NullString
		startedAt   string
		endedAt     sql.NullString
		createdAt   string
		updatedAt   string
	)
	if err := row.Scan(&s.ID, &s.Name, &description, &s.Status, &startedAt, &endedAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	s.Description = scanNullString(description)

	var err error
	if s.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if s.EndedAt, err = scanNullTimeText(endedAt); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// nullIfEmpty maps "" to NULL for optional TEXT columns.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
