package database

import (
	"database/sql"
	stderrors "errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/example/srsbot/internal/apperr"
)

// isUniqueViolation reports whether err comes from a unique constraint.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if stderrors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// conflictOr maps unique violations to apperr.Conflict and returns other
// errors unchanged.
func conflictOr(err error, format string, args ...interface{}) error {
	if isUniqueViolation(err) {
		return apperr.Conflict(err, format, args...)
	}
	return err
}

// notFoundOr maps sql.ErrNoRows to apperr.NotFound.
func notFoundOr(err error, format string, args ...interface{}) error {
	if stderrors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(format, args...)
	}
	return err
}
