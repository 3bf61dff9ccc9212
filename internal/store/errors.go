package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

var (
	// ErrSchema marks every SchemaError.
	ErrSchema = errors.New("schema error")

	// ErrMissingColumn is wrapped by a SchemaError when a migration step
	// needs a column an earlier version should have created.
	ErrMissingColumn = errors.New("missing column")

	// ErrReadOnly is returned for writes against a read-only store.
	ErrReadOnly = errors.New("store is read-only")
)

// SchemaError reports a schema precondition that was not met while
// opening, creating or migrating a store. It is fatal for the store.
type SchemaError struct {
	Version int
	Op      string
	Err     error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error at version %d (%s): %v", e.Version, e.Op, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrSchema) true for any SchemaError.
func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// IsSchemaError reports whether err is or wraps a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// IsConstraint reports whether err is a SQLite constraint violation
// (UNIQUE, FOREIGN KEY, NOT NULL, CHECK) from either driver.
func IsConstraint(err error) bool {
	if err == nil {
		return false
	}

	var mattnErr sqlite3.Error
	if errors.As(err, &mattnErr) {
		return mattnErr.Code == sqlite3.ErrConstraint
	}

	var moderncErr *sqlite.Error
	if errors.As(err, &moderncErr) {
		return moderncErr.Code()&0xff == sqlitelib.SQLITE_CONSTRAINT
	}

	return strings.Contains(err.Error(), "constraint failed")
}
