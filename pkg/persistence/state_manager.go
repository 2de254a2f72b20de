package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowpipe/pkg/flow"
	"github.com/dukex/flowpipe/pkg/models"
)

var _ flow.StateManager = (*StateManager)(nil)

// StateManager exposes a Persistence as the checkpoint collaborator of the flow runners.
type StateManager struct {
	store  Persistence
	logger *slog.Logger
}

// NewStateManager wraps store.
func NewStateManager(store Persistence, logger *slog.Logger) *StateManager {
	return &StateManager{
		store:  store,
		logger: logger.With("module", "state_manager"),
	}
}

// Store returns the wrapped persistence.
func (s *StateManager) Store() Persistence {
	return s.store
}

func (s *StateManager) checkpoint(ctx context.Context, meta flow.Metadata) (*models.Checkpoint, error) {
	key := flow.CheckpointKey(meta)

	checkpoint, err := s.store.Checkpoint(ctx, key)
	if err != nil {
		if IsCheckpointNotFound(err) {
			return &models.Checkpoint{Key: key, JobKey: flow.JobKey(meta)}, nil
		}

		return nil, NewCheckpointError("Checkpoint", key, err)
	}

	return checkpoint, nil
}

// LastProcessedItemIndex returns the checkpointed item index, 0 without a checkpoint.
func (s *StateManager) LastProcessedItemIndex(ctx context.Context, meta flow.Metadata) (int, error) {
	checkpoint, err := s.checkpoint(ctx, meta)
	if err != nil {
		return 0, err
	}

	return checkpoint.ItemIndex, nil
}

// LastProcessorIndex returns the checkpointed pipe index, 0 without a checkpoint.
func (s *StateManager) LastProcessorIndex(ctx context.Context, meta flow.Metadata) (int, error) {
	checkpoint, err := s.checkpoint(ctx, meta)
	if err != nil {
		return 0, err
	}

	return checkpoint.PipeIndex, nil
}

// LastState returns the checkpointed state, "" without a checkpoint.
func (s *StateManager) LastState(ctx context.Context, meta flow.Metadata) (flow.State, error) {
	checkpoint, err := s.checkpoint(ctx, meta)
	if err != nil {
		return "", err
	}

	return flow.State(checkpoint.State), nil
}

// SaveState persists the cursor under the checkpoint key of meta.
func (s *StateManager) SaveState(ctx context.Context, meta flow.Metadata, itemIndex, pipeIndex int, state flow.State) error {
	checkpoint := &models.Checkpoint{
		Key:       flow.CheckpointKey(meta),
		JobKey:    flow.JobKey(meta),
		ItemIndex: itemIndex,
		PipeIndex: pipeIndex,
		State:     string(state),
		UpdatedAt: time.Now().UTC(),
	}

	err := s.store.SaveCheckpoint(ctx, checkpoint)
	if err != nil {
		return NewCheckpointError("SaveCheckpoint", checkpoint.Key, err)
	}

	s.logger.DebugContext(ctx, "Checkpoint saved",
		"key", checkpoint.Key,
		"item_index", itemIndex,
		"pipe_index", pipeIndex,
		"state", state)

	return nil
}

// IsChunkProcessed reports whether the job already completed the chunk.
func (s *StateManager) IsChunkProcessed(ctx context.Context, meta flow.Metadata, hash string) (bool, error) {
	processed, err := s.store.ChunkProcessed(ctx, flow.JobKey(meta), hash)
	if err != nil {
		return false, fmt.Errorf("failed to check chunk %s: %w", hash, err)
	}

	return processed, nil
}

// MarkChunkProcessed records the chunk as completed for the job.
func (s *StateManager) MarkChunkProcessed(ctx context.Context, meta flow.Metadata, hash string) error {
	chunk := &models.ProcessedChunk{
		JobKey:      flow.JobKey(meta),
		Hash:        hash,
		ProcessedAt: time.Now().UTC(),
	}

	err := s.store.SaveProcessedChunk(ctx, chunk)
	if err != nil {
		return fmt.Errorf("failed to mark chunk %s processed: %w", hash, err)
	}

	return nil
}
