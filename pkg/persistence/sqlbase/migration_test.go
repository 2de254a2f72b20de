package sqlbase

import (
	"database/sql"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	db.SetMaxOpenConns(1)

	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestMigrationManager(t *testing.T) {
	t.Parallel()

	db := openMemory(t)
	logger := slog.New(slog.DiscardHandler)

	migrations := map[int]string{
		2: `ALTER TABLE items ADD COLUMN label TEXT`,
		1: `CREATE TABLE items (id INTEGER PRIMARY KEY)`,
	}

	manager := NewMigrationManager(logger, db, SQLite, migrations)
	assert.Equal(t, 2, manager.LatestVersion())

	require.NoError(t, manager.RunMigrations(t.Context()))

	version, err := manager.CurrentVersion(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	_, err = db.ExecContext(t.Context(), `INSERT INTO items (id, label) VALUES (1, 'a')`)
	require.NoError(t, err, "migrations run in version order")

	require.NoError(t, manager.RunMigrations(t.Context()), "rerunning is a no-op")

	migrations[3] = `ALTER TABLE items ADD COLUMN size INTEGER`
	require.NoError(t, NewMigrationManager(logger, db, SQLite, migrations).RunMigrations(t.Context()))

	version, err = manager.CurrentVersion(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 3, version)
}

func TestMigrationManager_FailedMigrationRollsBack(t *testing.T) {
	t.Parallel()

	db := openMemory(t)

	manager := NewMigrationManager(slog.New(slog.DiscardHandler), db, SQLite, map[int]string{
		1: `CREATE TABLE ok (id INTEGER)`,
		2: `THIS IS NOT SQL`,
	})

	err := manager.RunMigrations(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute migration 2")

	version, err := manager.CurrentVersion(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}
