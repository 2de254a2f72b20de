package sqlbase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/flowpipe/pkg/models"
	"github.com/dukex/flowpipe/pkg/persistence"
)

var _ persistence.Persistence = (*Store)(nil)

// Store implements persistence.Persistence on top of database/sql. The schema is owned by
// the dialect specific packages: flow_checkpoints and processed_chunks.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// NewStore wraps an open, migrated database.
func NewStore(db *sql.DB, dialect Dialect, logger *slog.Logger) *Store {
	return &Store{db: db, dialect: dialect, logger: logger}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close(_ context.Context) error {
	if s.db != nil {
		err := s.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

const checkpointColumns = `
			checkpoint_key
		  , job_key
		  , item_index
		  , pipe_index
		  , state
		  , updated_at`

func scanCheckpoint(row interface{ Scan(dest ...any) error }) (*models.Checkpoint, error) {
	var checkpoint models.Checkpoint

	err := row.Scan(
		&checkpoint.Key,
		&checkpoint.JobKey,
		&checkpoint.ItemIndex,
		&checkpoint.PipeIndex,
		&checkpoint.State,
		&checkpoint.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	checkpoint.UpdatedAt = checkpoint.UpdatedAt.UTC()

	return &checkpoint, nil
}

// Checkpoint returns the checkpoint stored under key.
func (s *Store) Checkpoint(ctx context.Context, key string) (*models.Checkpoint, error) {
	if err := persistence.ValidateKey(key); err != nil {
		return nil, persistence.NewCheckpointError("Checkpoint", key, err)
	}

	query := s.dialect.Bind(`SELECT` + checkpointColumns + `
		FROM flow_checkpoints
		WHERE checkpoint_key = ?`)

	checkpoint, err := scanCheckpoint(s.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewCheckpointError("Checkpoint", key, persistence.ErrCheckpointNotFound)
		}

		return nil, fmt.Errorf("failed to query checkpoint %s: %w", key, err)
	}

	return checkpoint, nil
}

// Checkpoints returns the checkpoints of a job and its chunks, ordered by key.
func (s *Store) Checkpoints(ctx context.Context, jobKey string) ([]*models.Checkpoint, error) {
	if err := persistence.ValidateKey(jobKey); err != nil {
		return nil, persistence.NewCheckpointError("Checkpoints", jobKey, err)
	}

	query := s.dialect.Bind(`SELECT` + checkpointColumns + `
		FROM flow_checkpoints
		WHERE job_key = ?
		ORDER BY checkpoint_key`)

	rows, err := s.db.QueryContext(ctx, query, jobKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints of %s: %w", jobKey, err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	checkpoints := make([]*models.Checkpoint, 0)

	for rows.Next() {
		checkpoint, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}

		checkpoints = append(checkpoints, checkpoint)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating checkpoints: %w", err)
	}

	return checkpoints, nil
}

// SaveCheckpoint inserts or replaces the checkpoint.
func (s *Store) SaveCheckpoint(ctx context.Context, checkpoint *models.Checkpoint) error {
	if err := persistence.ValidateKey(checkpoint.Key); err != nil {
		return persistence.NewCheckpointError("SaveCheckpoint", checkpoint.Key, err)
	}

	jobKey := checkpoint.JobKey
	if jobKey == "" {
		jobKey = persistence.JobKeyOf(checkpoint.Key)
	}

	query := s.dialect.Bind(`
		INSERT INTO flow_checkpoints (` + checkpointColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (checkpoint_key) DO UPDATE SET
			job_key = excluded.job_key
		  , item_index = excluded.item_index
		  , pipe_index = excluded.pipe_index
		  , state = excluded.state
		  , updated_at = excluded.updated_at`)

	_, err := s.db.ExecContext(ctx, query,
		checkpoint.Key,
		jobKey,
		checkpoint.ItemIndex,
		checkpoint.PipeIndex,
		checkpoint.State,
		checkpoint.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", checkpoint.Key, err)
	}

	return nil
}

// ChunkProcessed reports whether hash is recorded for the job.
func (s *Store) ChunkProcessed(ctx context.Context, jobKey, hash string) (bool, error) {
	if err := persistence.ValidateKey(jobKey); err != nil {
		return false, persistence.NewCheckpointError("ChunkProcessed", jobKey, err)
	}

	query := s.dialect.Bind(`SELECT COUNT(*) FROM processed_chunks WHERE job_key = ? AND hash = ?`)

	var count int

	err := s.db.QueryRowContext(ctx, query, jobKey, hash).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query chunk %s of %s: %w", hash, jobKey, err)
	}

	return count > 0, nil
}

// SaveProcessedChunk records the chunk. Recording the same hash twice is a no-op.
func (s *Store) SaveProcessedChunk(ctx context.Context, chunk *models.ProcessedChunk) error {
	if err := persistence.ValidateKey(chunk.JobKey); err != nil {
		return persistence.NewCheckpointError("SaveProcessedChunk", chunk.JobKey, err)
	}

	query := s.dialect.Bind(`
		INSERT INTO processed_chunks (job_key, hash, processed_at)
		VALUES (?, ?, ?)
		ON CONFLICT (job_key, hash) DO NOTHING`)

	_, err := s.db.ExecContext(ctx, query, chunk.JobKey, chunk.Hash, chunk.ProcessedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save chunk %s of %s: %w", chunk.Hash, chunk.JobKey, err)
	}

	return nil
}

// ProcessedChunks returns the chunks of a job in the order they were recorded.
func (s *Store) ProcessedChunks(ctx context.Context, jobKey string) ([]*models.ProcessedChunk, error) {
	if err := persistence.ValidateKey(jobKey); err != nil {
		return nil, persistence.NewCheckpointError("ProcessedChunks", jobKey, err)
	}

	query := s.dialect.Bind(`
		SELECT job_key, hash, processed_at
		FROM processed_chunks
		WHERE job_key = ?
		ORDER BY id`)

	rows, err := s.db.QueryContext(ctx, query, jobKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks of %s: %w", jobKey, err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	chunks := make([]*models.ProcessedChunk, 0)

	for rows.Next() {
		var chunk models.ProcessedChunk

		err := rows.Scan(&chunk.JobKey, &chunk.Hash, &chunk.ProcessedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}

		chunk.ProcessedAt = chunk.ProcessedAt.UTC()
		chunks = append(chunks, &chunk)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating chunks: %w", err)
	}

	return chunks, nil
}

// Reset deletes the job's checkpoints and processed chunks in one transaction.
func (s *Store) Reset(ctx context.Context, jobKey string) error {
	if err := persistence.ValidateKey(jobKey); err != nil {
		return persistence.NewCheckpointError("Reset", jobKey, err)
	}

	transaction, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, table := range []string{"flow_checkpoints", "processed_chunks"} {
		_, err = transaction.ExecContext(ctx, s.dialect.Bind("DELETE FROM "+table+" WHERE job_key = ?"), jobKey)
		if err != nil {
			_ = transaction.Rollback()

			return fmt.Errorf("failed to reset %s of %s: %w", table, jobKey, err)
		}
	}

	err = transaction.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit reset of %s: %w", jobKey, err)
	}

	s.logger.InfoContext(ctx, "Job reset", "job_key", jobKey)

	return nil
}
