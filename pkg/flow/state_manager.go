package flow

import "context"

// StateManager persists the checkpoint cursor and the processed chunk hashes of a flow.
// Implementations must give read-your-writes consistency per CheckpointKey / JobKey.
type StateManager interface {
	// LastProcessedItemIndex returns the item index of the checkpoint, 0 when none exists.
	LastProcessedItemIndex(ctx context.Context, meta Metadata) (int, error)

	// LastProcessorIndex returns the pipe index of the checkpoint, 0 when none exists.
	LastProcessorIndex(ctx context.Context, meta Metadata) (int, error)

	// LastState returns the state of the checkpoint, "" when none exists.
	LastState(ctx context.Context, meta Metadata) (State, error)

	// SaveState persists the cursor.
	SaveState(ctx context.Context, meta Metadata, itemIndex, pipeIndex int, state State) error

	// IsChunkProcessed reports whether hash was marked processed for the job.
	IsChunkProcessed(ctx context.Context, meta Metadata, hash string) (bool, error)

	// MarkChunkProcessed records hash as processed for the job.
	MarkChunkProcessed(ctx context.Context, meta Metadata, hash string) error
}
