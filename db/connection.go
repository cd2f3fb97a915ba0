// Package db opens and migrates the sqlite databases backing the
// hydrofabric store and the job queue.
package db

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hydrofabric/basinmap/errors"
)

// SQLiteBusyTimeoutMS is how long a connection waits on a locked database
// before erroring. Subset jobs hold write transactions while the server
// reads job status.
const SQLiteBusyTimeoutMS = 5000

// Open opens a SQLite database at path with WAL mode, foreign keys, and a
// busy timeout. If logger is nil the open is silent.
func Open(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	if logger != nil {
		logger.Debugw("Opening database", "path", path)
	}
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	// WAL allows concurrent reads while a job transaction writes.
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "enable WAL mode")
	}
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "enable foreign keys")
	}
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "set busy timeout")
	}

	if logger != nil {
		logger.Infow("Database opened",
			"path", path,
			"wal_mode", true,
			"foreign_keys", true,
		)
	}
	return conn, nil
}

// OpenReadOnly opens an existing SQLite database without allowing writes.
// The hydrofabric geodatabase is reference data and must never be mutated
// by the server.
func OpenReadOnly(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "open database read-only")
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "database not readable at %s", path)
	}
	if logger != nil {
		logger.Infow("Database opened read-only", "path", path)
	}
	return conn, nil
}
