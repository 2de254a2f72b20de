// Package sqlite provides embedded SQLite persistence for flow checkpoints and processed chunks.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/flowpipe/pkg/persistence/sqlbase"
	_ "modernc.org/sqlite"
)

// Persistence implements the persistence layer on a local SQLite database.
type Persistence struct {
	*sqlbase.Store
}

// NewPersistence opens the database at path, accepting a "sqlite://" prefix, and migrates it.
func NewPersistence(ctx context.Context, logger *slog.Logger, path string) (*Persistence, error) {
	path = strings.TrimPrefix(path, "sqlite://")
	if path == "" {
		return nil, fmt.Errorf("database path is not set")
	}

	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0750)
		if err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Writers serialize on the database file; one connection avoids SQLITE_BUSY.
	database.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		_, err = database.ExecContext(ctx, pragma)
		if err != nil {
			_ = database.Close()

			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger = logger.With("module", "sqlite")

	err = sqlbase.NewMigrationManager(logger, database, sqlbase.SQLite, migrations()).RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{Store: sqlbase.NewStore(database, sqlbase.SQLite, logger)}, nil
}
