package core

import (
	"github.com/dotcommander/sparkq/internal/models"
	"github.com/dotcommander/sparkq/internal/store"
)

// EnsureProject creates the singleton project row on first serve and
// returns it on every later call.
func (c *Core) EnsureProject(name, repoPath string) (*models.Project, error) {
	if name == "" {
		name = "sparkq"
	}
	return store.EnsureProject(c.db, name, repoPath, c.clock.Now())
}

// Project returns the singleton project row, or a not_found error when
// the server has never run.
func (c *Core) Project() (*models.Project, error) {
	return store.GetProject(c.db)
}
