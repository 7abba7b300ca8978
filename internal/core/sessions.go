package core

import (
	"database/sql"

	"github.com/dotcommander/sparkq/internal/models"
	"github.com/dotcommander/sparkq/internal/store"
)

// CreateSession opens a new named work period.
func (c *Core) CreateSession(name, description string) (*models.Session, error) {
	if name == "" {
		return nil, models.Validationf("session name must not be empty")
	}

	var session *models.Session
	err := store.Transact(c.db, func(tx *sql.Tx) error {
		s, err := store.CreateSessionTx(tx, name, description, c.clock.Now())
		if err != nil {
			return err
		}
		session = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession reads one session.
func (c *Core) GetSession(id string) (*models.Session, error) {
	return store.GetSession(c.db, id)
}

// ListSessions returns all sessions, newest first.
func (c *Core) ListSessions() ([]*models.Session, error) {
	return store.ListSessions(c.db)
}

// UpdateSession renames or re-describes a session; End moves it to ended.
type SessionPatch struct {
	Name        *string
	Description *string
	End         bool
}

// UpdateSession applies a patch to a session.
func (c *Core) UpdateSession(id string, patch SessionPatch) (*models.Session, error) {
	var session *models.Session
	err := store.Transact(c.db, func(tx *sql.Tx) error {
		now := c.clock.Now()
		s, err := store.UpdateSessionTx(tx, id, store.SessionUpdate{
			Name:        patch.Name,
			Description: patch.Description,
		}, now)
		if err != nil {
			return err
		}
		if patch.End {
			if s, err = store.EndSessionTx(tx, id, now); err != nil {
				return err
			}
		}
		session = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// DeleteSession removes a session; cascade deletes its queues and tasks.
func (c *Core) DeleteSession(id string, cascade bool) error {
	return store.Transact(c.db, func(tx *sql.Tx) error {
		return store.DeleteSessionTx(tx, id, cascade)
	})
}
