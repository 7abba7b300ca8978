package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dotcommander/sparkq/internal/models"
)

// EnsureProject returns the singleton project row, creating it on first
// use. The project is never destroyed during a run.
func EnsureProject(db *sql.DB, name, repoPath string, now time.Time) (*models.Project, error) {
	var project *models.Project
	err := Transact(db, func(tx *sql.Tx) error {
		p, err := getProjectTx(tx)
		if err == nil {
			project = p
			return nil
		}
		if !models.IsKind(err, models.KindNotFound) {
			return err
		}

		ts := fmtTime(now)
		id := generateProjectID()
		if _, err := tx.Exec(`
			INSERT INTO projects (id, name, repo_path, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, id, name, nullIfEmpty(repoPath), ts, ts); err != nil {
			return fmt.Errorf("failed to insert project: %w", err)
		}

		project, err = getProjectTx(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// GetProject returns the singleton project row.
func GetProject(db *sql.DB) (*models.Project, error) {
	row := db.QueryRow(`SELECT id, name, repo_path, created_at, updated_at FROM projects ORDER BY created_at ASC LIMIT 1`)
	return scanProjectRow(row)
}

func getProjectTx(tx *sql.Tx) (*models.Project, error) {
	row := tx.QueryRow(`SELECT id, name, repo_path, created_at, updated_at FROM projects ORDER BY created_at ASC LIMIT 1`)
	return scanProjectRow(row)
}

func scanProjectRow(row rowScanner) (*models.Project, error) {
	var (
		p         models.Project
		repoPath  sql.NullString
		createdAt string
		updatedAt string
	)
	err := row.Scan(&p.ID, &p.Name, &repoPath, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFoundf("project not initialized")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project: %w", err)
	}

	p.RepoPath = scanNullString(repoPath)
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
