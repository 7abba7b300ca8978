// Package core owns the task state machine. It exposes the enqueue /
// peek / claim / complete / fail / requeue / delete / list operations as
// transactional operations on the store, validates inputs, and returns
// classified errors that callers branch on. All wall time comes from the
// injected clock; tool timeouts come from the injected resolver.
package core

import (
	"database/sql"

	"github.com/dotcommander/sparkq/internal/clock"
	"github.com/dotcommander/sparkq/internal/tools"
)

// Core coordinates the store, the clock, and the tool resolver.
type Core struct {
	db       *sql.DB
	clock    clock.Clock
	resolver *tools.Resolver
}

// New builds a Core around an initialized database.
func New(db *sql.DB, clk clock.Clock, resolver *tools.Resolver) *Core {
	if clk == nil {
		clk = clock.System{}
	}
	return &Core{db: db, clock: clk, resolver: resolver}
}

// DB exposes the underlying handle for callers that manage lifecycle
// (close on shutdown).
func (c *Core) DB() *sql.DB { return c.db }

// Clock exposes the injected clock (the supervisor shares it).
func (c *Core) Clock() clock.Clock { return c.clock }
