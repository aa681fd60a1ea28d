package cache

import (
	"errors"
	"strings"
)

// ErrDuplicateKey is returned when an insert violates a uniqueness
// constraint (duplicate account id or category name). It propagates to
// the caller unmodified so the surface layer can react.
var ErrDuplicateKey = errors.New("duplicate key")

// isUniqueViolation reports whether err is a SQLite uniqueness
// violation. The driver surfaces constraint failures as formatted
// messages, for both explicit UNIQUE indexes and primary keys.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
