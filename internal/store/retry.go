package store

import (
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dotcommander/sparkq/internal/models"
)

// RetryWithBackoff wraps an operation with exponential backoff retry logic.
// Retries on transient SQLite errors (SQLITE_BUSY, "database is locked").
// Classified errors (validation, precondition, conflict, not-found) and
// constraint violations stop immediately.
func RetryWithBackoff(operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 10 * time.Second
	b.RandomizationFactor = 0.1

	return backoff.Retry(func() error {
		err := operation()
		if err == nil {
			return nil
		}

		if isRetryableError(err) {
			return err // Will be retried
		}

		// Non-retryable error: stop immediately
		return backoff.Permanent(err)
	}, b)
}

// isRetryableError determines if an error should be retried.
//
// Error detection relies on modernc.org/sqlite error message strings.
// If modernc changes its error format in a major version bump, update
// the string matchers below. Current baseline: modernc.org/sqlite v1.45+.
func isRetryableError(err error) bool {
	// Errors already classified by the core are final: claim losses,
	// validation failures, and preconditions must surface to the caller.
	switch models.KindOf(err) {
	case models.KindTransient:
		return true
	case models.KindNotFound, models.KindPrecondition, models.KindValidation, models.KindConflict:
		return false
	}

	errStr := err.Error()

	// SQLite busy/locked errors are retryable
	if strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "SQLITE_BUSY") {
		return true
	}

	// Constraint violations are NOT retryable
	return false
}

// IsUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure (used to classify duplicate queue names as validation errors).
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}
