package flow

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
)

// WithChunkSize sets the number of source items per batch chunk.
func WithChunkSize[T any](size int) RunnerOption[T] {
	return func(o *runnerOptions[T]) {
		o.chunk = size
	}
}

// WithResumeState sets the state chunks after the first one start at. It defaults to
// the initial state of the flow.
func WithResumeState[T any](state State) RunnerOption[T] {
	return func(o *runnerOptions[T]) {
		o.resume = state
	}
}

// WithFullRun makes the batch runner drive every remaining state of each chunk instead of
// a single state.
func WithFullRun[T any]() RunnerOption[T] {
	return func(o *runnerOptions[T]) {
		o.full = true
	}
}

// BatchResult reports what a batch run did with each chunk.
type BatchResult[T any] struct {
	// Executed holds the hashes of chunks run in this invocation.
	Executed []string
	// Skipped holds the hashes of chunks already processed by an earlier run.
	Skipped []string
	// Processed is the accumulated processed hash list, in chunk order.
	Processed []string
	// History is every chunk seen, in order.
	History [][]T
	// Last is the final context of the last executed chunk.
	Last *Context[T]
}

// BatchFlowRunner splits the source in chunks and runs a sub-flow per chunk, skipping
// chunks whose content hash is already marked processed.
type BatchFlowRunner[T any] struct {
	flow   *Flow[T]
	opts   runnerOptions[T]
	logger *slog.Logger
}

// NewBatchFlowRunner creates a batch runner for f. The default chunk size is 1.
func NewBatchFlowRunner[T any](f *Flow[T], opts ...RunnerOption[T]) *BatchFlowRunner[T] {
	o := runnerOptions[T]{chunk: 1}
	for _, opt := range opts {
		opt(&o)
	}

	if o.resume == "" {
		o.resume, _ = f.InitState()
	}

	return &BatchFlowRunner[T]{
		flow:   f,
		opts:   o,
		logger: f.logger.With("module", "batch_runner", "flow_id", f.id),
	}
}

// Run processes every chunk, the first one starting at state.
func (r *BatchFlowRunner[T]) Run(ctx context.Context, state State) (*BatchResult[T], error) {
	chunks, err := Chunks(r.flow.source, r.opts.chunk)
	if err != nil {
		return nil, err
	}

	if state == "" {
		state, _ = r.flow.InitState()
	}

	var (
		result   = &BatchResult[T]{}
		meta     = r.flow.Metadata()
		sm       = r.flow.stateManager
		previous []T
		current  = state
	)

	for index, chunk := range chunks {
		err := ctx.Err()
		if err != nil {
			return result, err
		}

		hash, err := ChunkHash(chunk)
		if err != nil {
			return result, fmt.Errorf("chunk %d: %w", index, err)
		}

		logger := r.logger.With("chunk_index", index, "chunk_hash", hash, "chunk_size", len(chunk))

		processed, err := sm.IsChunkProcessed(ctx, meta, hash)
		if err != nil {
			return result, fmt.Errorf("failed to check chunk %s: %w", hash, err)
		}

		if processed {
			logger.InfoContext(ctx, "Chunk already processed, skipping")
			r.opts.observer.emit(ctx, Event{Kind: EventChunkSkipped, FlowID: r.flow.id, State: current, ChunkHash: hash, ItemIndex: index, Count: len(chunk)})

			result.Skipped = append(result.Skipped, hash)
			result.Processed = append(result.Processed, hash)
			result.History = append(result.History, chunk)
			previous = chunk

			continue
		}

		logger.InfoContext(ctx, "Executing chunk", "state", current)

		sub := r.subFlow(chunk, hash, index, previous, result.Processed)

		last, err := r.runChunk(ctx, sub, current)
		if last != nil {
			result.Last = last
		}

		if err != nil {
			return result, fmt.Errorf("chunk %s: %w", hash, err)
		}

		err = sm.MarkChunkProcessed(ctx, meta, hash)
		if err != nil {
			return result, fmt.Errorf("failed to mark chunk %s processed: %w", hash, err)
		}

		r.opts.observer.emit(ctx, Event{Kind: EventChunkProcessed, FlowID: r.flow.id, State: current, ChunkHash: hash, ItemIndex: index, Count: len(chunk)})

		result.Executed = append(result.Executed, hash)
		result.Processed = append(result.Processed, hash)
		result.History = append(result.History, chunk)
		previous = chunk
		current = r.opts.resume
	}

	r.logger.InfoContext(ctx, "Batch run completed", "chunks", len(chunks), "executed", len(result.Executed), "skipped", len(result.Skipped))

	return result, nil
}

func (r *BatchFlowRunner[T]) subFlow(chunk []T, hash string, index int, previous []T, processed []string) *Flow[T] {
	sub := r.flow.WithSource(chunk)
	sub.metadata[MetaProcessedChunk] = hash
	sub.metadata[MetaProcessedChunks] = slices.Clone(processed)
	sub.metadata[MetaChunkIndex] = index

	if previous != nil {
		sub.metadata[MetaPreviousChunk] = slices.Clone(previous)
	}

	return sub
}

func (r *BatchFlowRunner[T]) runChunk(ctx context.Context, sub *Flow[T], state State) (*Context[T], error) {
	if r.opts.full {
		return NewRecursiveFlowRunner(sub, WithObserver[T](r.opts.observer), WithMeasure[T](r.opts.measure)).Run(ctx, state)
	}

	return NewOneStepRunner(sub, WithObserver[T](r.opts.observer)).Run(ctx, state)
}
