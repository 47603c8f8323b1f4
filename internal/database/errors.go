package database

import (
	"errors"

	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// IsUniqueViolation reports whether err is a unique-constraint failure
// from either supported driver. The pipeline treats these as "the row
// already exists", never as an error to surface.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
