package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWithMigrations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "jobs.db")

	conn, err := OpenWithMigrations(dbPath, nil)
	require.NoError(t, err)
	defer conn.Close()

	for _, table := range []string{"schema_migrations", "jobs"} {
		var exists int
		err = conn.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&exists)
		require.NoError(t, err)
		assert.Equal(t, 1, exists, "table %s should exist after migrations", table)
	}
}

func TestMigrate(t *testing.T) {
	t.Run("records applied versions", func(t *testing.T) {
		conn, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, Migrate(conn, nil))

		var count int
		require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
		assert.GreaterOrEqual(t, count, 2)
	})

	t.Run("is idempotent", func(t *testing.T) {
		conn, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, Migrate(conn, nil))
		var before int
		require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&before))

		require.NoError(t, Migrate(conn, nil))
		var after int
		require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&after))
		assert.Equal(t, before, after)
	})

	t.Run("fails on closed database", func(t *testing.T) {
		conn, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		conn.Close()

		assert.Error(t, Migrate(conn, nil))
	})
}
