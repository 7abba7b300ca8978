package commands

import (
	"database/sql"
	"errors"
	"log/slog"

	"github.com/dotcommander/sparkq/internal/app"
	"github.com/dotcommander/sparkq/internal/core"
	"github.com/dotcommander/sparkq/internal/output"
	"github.com/dotcommander/sparkq/internal/store"
	"github.com/dotcommander/sparkq/internal/tools"
)

// DB is an alias so command code doesn't need to import database/sql.
type DB = sql.DB

type printedError struct {
	err error
}

func (e printedError) Error() string {
	// Intentionally hide the original error: the JSON error response is the output.
	return "error already printed"
}

func openDB() (*DB, func(), error) {
	dbPath, err := app.GetDBPath()
	if err != nil {
		return nil, nil, err
	}
	if _, err := app.EnsureDBDir(dbPath); err != nil {
		return nil, nil, err
	}

	db, err := store.InitDB()
	if err != nil {
		return nil, nil, err
	}

	return db, func() { _ = db.Close() }, nil
}

// withCore opens the store and hands a ready Core to fn. Commands talk
// to the database directly; only serve and runner need the HTTP surface.
func withCore(fn func(c *core.Core) error) error {
	settings, err := app.LoadSettings()
	if err != nil {
		return cmdErr(err)
	}

	db, closeDB, err := openDB()
	if err != nil {
		return cmdErr(err)
	}
	defer closeDB()

	c := core.New(db, nil, tools.NewResolver(settings))
	if err := fn(c); err != nil {
		return cmdErr(err)
	}
	return nil
}

func cmdErr(err error) error {
	if err == nil {
		return nil
	}
	attrs := []any{"error", err.Error()}
	type slogAttrError interface {
		SlogAttrs() []any
	}
	var detailed slogAttrError
	if errors.As(err, &detailed) {
		attrs = append(attrs, detailed.SlogAttrs()...)
	}
	slog.Error("command error", attrs...)
	_ = output.PrintError(err)
	return printedError{err: err}
}
