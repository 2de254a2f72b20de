// Package persistence provides the storage abstraction for flow checkpoints and
// processed chunk hashes.
package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukex/flowpipe/pkg/models"
)

// ChunkSeparator joins a job key and a chunk hash into a chunk checkpoint key.
const ChunkSeparator = "#"

// Persistence stores checkpoints and processed chunks. Implementations must give
// read-your-writes consistency per key.
type Persistence interface {
	// Checkpoint returns the checkpoint stored under key or ErrCheckpointNotFound.
	Checkpoint(ctx context.Context, key string) (*models.Checkpoint, error)
	// Checkpoints returns the checkpoints of a job: its own and those of its chunks.
	Checkpoints(ctx context.Context, jobKey string) ([]*models.Checkpoint, error)
	SaveCheckpoint(ctx context.Context, checkpoint *models.Checkpoint) error

	ChunkProcessed(ctx context.Context, jobKey, hash string) (bool, error)
	SaveProcessedChunk(ctx context.Context, chunk *models.ProcessedChunk) error
	ProcessedChunks(ctx context.Context, jobKey string) ([]*models.ProcessedChunk, error)

	// Reset deletes every checkpoint and processed chunk of a job.
	Reset(ctx context.Context, jobKey string) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// JobKeyOf returns the job part of a checkpoint key.
func JobKeyOf(key string) string {
	job, _, _ := strings.Cut(key, ChunkSeparator)

	return job
}

// BelongsTo reports whether key is the checkpoint key of jobKey or of one of its chunks.
func BelongsTo(key, jobKey string) bool {
	return key == jobKey || strings.HasPrefix(key, jobKey+ChunkSeparator)
}

// ValidateKey rejects empty keys and keys that could escape a storage namespace.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}

	if strings.Contains(key, "..") || strings.ContainsAny(key, "/\\\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return nil
}
