package db

import (
	"strings"

	"github.com/hydrofabric/basinmap/errors"
)

// ErrDatabaseClosed is returned when operations are attempted on a closed
// database. Typical during graceful shutdown when the connection closes
// before job goroutines finish.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed reports whether an error indicates a closed connection.
// Handles both wrapped ErrDatabaseClosed and raw driver errors, which the
// sql package returns unwrapped.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "sql: database is closed")
}
