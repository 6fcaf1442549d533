package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates a referenced club, student or membership does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a duplicate membership, duplicate email, or a concurrent
	// mutation that could not be serialized. Callers may retry after re-reading state.
	ErrConflict = errors.New("conflict")
	// ErrInvalidRole indicates a role outside the role catalog.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidInput indicates a malformed entity field such as an empty name.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInconsistent indicates the membership index and the canonical records disagree.
	// It is never healed silently; run RebuildIndexes.
	ErrInconsistent = errors.New("membership index inconsistent")
	// ErrUnavailable indicates storage stayed unavailable after bounded retries.
	ErrUnavailable = errors.New("storage unavailable")
)

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

func pairNotFound(clubID, studentID string) error {
	return fmt.Errorf("student %s is not a member of club %s: %w", studentID, clubID, ErrNotFound)
}

// inconsistent wraps both ErrInconsistent and ErrNotFound so callers that only
// distinguish missing pairs still see a not-found failure.
func inconsistent(clubID, studentID, detail string) error {
	return fmt.Errorf("club %s student %s: %s: %w: %w", clubID, studentID, detail, ErrInconsistent, ErrNotFound)
}

// isDuplicate reports whether err is a unique or primary key violation.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// isTransient reports whether err is a storage contention failure worth retrying.
func isTransient(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected, lock_not_available
		return pgErr.Code == "40001" || pgErr.Code == "40P01" || pgErr.Code == "55P03"
	}
	return false
}

// resultLabel classifies err for metrics.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInconsistent):
		return "inconsistent"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidRole):
		return "invalid_role"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
