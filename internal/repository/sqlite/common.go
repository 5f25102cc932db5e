// Package sqlite provides SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/fjmerc/softvault/internal/repository"
)

// timeLayout is used for every timestamp column. Fixed-width UTC values sort
// lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Rows written by hand or by older tooling may use plain RFC3339
		return time.Parse(time.RFC3339, s)
	}
	return t, nil
}

// validateArtifactFilename rejects filenames that could not have come from
// the artifact naming scheme before they are linked to a record.
func validateArtifactFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("%w: filename cannot be empty", repository.ErrInvalidInput)
	}
	if strings.ContainsAny(filename, "/\\") {
		return fmt.Errorf("%w: filename contains path separator", repository.ErrInvalidInput)
	}
	if strings.Contains(filename, "..") {
		return fmt.Errorf("%w: filename contains path traversal sequence", repository.ErrInvalidInput)
	}
	return nil
}

// beginImmediateTx starts a transaction with retry logic for robustness.
func beginImmediateTx(ctx context.Context, db *sql.DB) (*sql.Tx, error) {
	const maxRetries = 5
	baseDelay := 50 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		tx, err := db.BeginTx(ctx, &sql.TxOptions{
			Isolation: sql.LevelSerializable,
		})
		if err == nil {
			return tx, nil
		}

		lastErr = err

		if !isSQLiteBusyError(err) {
			return nil, err
		}

		if attempt < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<uint(attempt))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return nil, fmt.Errorf("failed to begin transaction after %d attempts: %w", maxRetries, lastErr)
}

// isSQLiteBusyError checks if an error is an SQLITE_BUSY or SQLITE_LOCKED error.
func isSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "sqlite_busy") ||
		strings.Contains(errStr, "sqlite_locked") ||
		strings.Contains(errStr, "(5)") || // SQLITE_BUSY
		strings.Contains(errStr, "(6)") || // SQLITE_LOCKED
		strings.Contains(errStr, "(517)") || // SQLITE_BUSY_SNAPSHOT
		strings.Contains(errStr, "(262)") // SQLITE_BUSY_RECOVERY
}

// isUniqueViolation checks if an error is a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "(2067)") || // SQLITE_CONSTRAINT_UNIQUE
		strings.Contains(errStr, "(1555)") // SQLITE_CONSTRAINT_PRIMARYKEY
}
