// Package persistencetest provides a behavioural test suite shared by every
// persistence.Persistence implementation.
package persistencetest

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/flowpipe/pkg/flow"
	"github.com/dukex/flowpipe/pkg/models"
	"github.com/dukex/flowpipe/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) persistence.Persistence

// Run exercises the persistence contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("checkpoint not found", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Checkpoint(t.Context(), "missing")
		require.Error(t, err)
		assert.True(t, persistence.IsCheckpointNotFound(err))
	})

	t.Run("save and load checkpoint", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		checkpoint := &models.Checkpoint{
			Key:       "job-1",
			JobKey:    "job-1",
			ItemIndex: 3,
			PipeIndex: 1,
			State:     "translate",
			UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
		}
		require.NoError(t, store.SaveCheckpoint(ctx, checkpoint))

		loaded, err := store.Checkpoint(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, checkpoint.Key, loaded.Key)
		assert.Equal(t, checkpoint.JobKey, loaded.JobKey)
		assert.Equal(t, 3, loaded.ItemIndex)
		assert.Equal(t, 1, loaded.PipeIndex)
		assert.Equal(t, "translate", loaded.State)
		assert.WithinDuration(t, checkpoint.UpdatedAt, loaded.UpdatedAt, time.Second)

		checkpoint.ItemIndex = 4
		checkpoint.PipeIndex = 0
		require.NoError(t, store.SaveCheckpoint(ctx, checkpoint))

		loaded, err = store.Checkpoint(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, 4, loaded.ItemIndex)
		assert.Equal(t, 0, loaded.PipeIndex)
	})

	t.Run("job checkpoints include chunks", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		for _, key := range []string{"job-2", "job-2#aaa", "job-2#bbb", "job-20", "other"} {
			require.NoError(t, store.SaveCheckpoint(ctx, &models.Checkpoint{
				Key:       key,
				JobKey:    persistence.JobKeyOf(key),
				State:     "s",
				UpdatedAt: time.Now().UTC(),
			}))
		}

		checkpoints, err := store.Checkpoints(ctx, "job-2")
		require.NoError(t, err)

		keys := make([]string, 0, len(checkpoints))
		for _, checkpoint := range checkpoints {
			keys = append(keys, checkpoint.Key)
		}

		assert.ElementsMatch(t, []string{"job-2", "job-2#aaa", "job-2#bbb"}, keys)
	})

	t.Run("processed chunks", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		processed, err := store.ChunkProcessed(ctx, "job-3", "abc")
		require.NoError(t, err)
		assert.False(t, processed)

		for _, hash := range []string{"abc", "def", "abc"} {
			require.NoError(t, store.SaveProcessedChunk(ctx, &models.ProcessedChunk{
				JobKey:      "job-3",
				Hash:        hash,
				ProcessedAt: time.Now().UTC(),
			}))
		}

		processed, err = store.ChunkProcessed(ctx, "job-3", "abc")
		require.NoError(t, err)
		assert.True(t, processed)

		processed, err = store.ChunkProcessed(ctx, "other", "abc")
		require.NoError(t, err)
		assert.False(t, processed, "chunks are tracked per job")

		chunks, err := store.ProcessedChunks(ctx, "job-3")
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "abc", chunks[0].Hash)
		assert.Equal(t, "def", chunks[1].Hash)

		empty, err := store.ProcessedChunks(ctx, "nothing")
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})

	t.Run("reset", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		require.NoError(t, store.SaveCheckpoint(ctx, &models.Checkpoint{Key: "job-4", JobKey: "job-4", State: "s", UpdatedAt: time.Now().UTC()}))
		require.NoError(t, store.SaveCheckpoint(ctx, &models.Checkpoint{Key: "job-4#x", JobKey: "job-4", State: "s", UpdatedAt: time.Now().UTC()}))
		require.NoError(t, store.SaveCheckpoint(ctx, &models.Checkpoint{Key: "job-5", JobKey: "job-5", State: "s", UpdatedAt: time.Now().UTC()}))
		require.NoError(t, store.SaveProcessedChunk(ctx, &models.ProcessedChunk{JobKey: "job-4", Hash: "x", ProcessedAt: time.Now().UTC()}))

		require.NoError(t, store.Reset(ctx, "job-4"))

		checkpoints, err := store.Checkpoints(ctx, "job-4")
		require.NoError(t, err)
		assert.Empty(t, checkpoints)

		processed, err := store.ChunkProcessed(ctx, "job-4", "x")
		require.NoError(t, err)
		assert.False(t, processed)

		_, err = store.Checkpoint(ctx, "job-5")
		require.NoError(t, err, "other jobs are untouched")
	})

	t.Run("health check", func(t *testing.T) {
		store := newStore(t)

		assert.NoError(t, store.HealthCheck(t.Context()))
	})

	t.Run("drives a resumable flow", func(t *testing.T) {
		store := newStore(t)
		runResumableFlow(t, store)
	})
}

// runResumableFlow aborts a flow halfway and checks the second run resumes at the failed item.
func runResumableFlow(t *testing.T, store persistence.Persistence) {
	t.Helper()

	sm := persistence.NewStateManager(store, slog.New(slog.DiscardHandler))
	calls := map[string]int{}
	crash := true

	build := func() *flow.Flow[string] {
		f, err := flow.NewBuilder("resumable", []string{"a", "b", "c"}).
			WithStateManager(sm).
			WithErrorStrategy(flow.AbortOnError[string]()).
			OnState("upper").
			Pipe("count", func(_ context.Context, fc *flow.Context[string]) (*flow.Context[string], error) {
				calls[fc.Item()]++

				if fc.Item() == "b" && crash {
					crash = false

					return nil, assert.AnError
				}

				return fc, nil
			}).
			OnState("done").
			Pipe("noop", func(_ context.Context, fc *flow.Context[string]) (*flow.Context[string], error) {
				return fc, nil
			}).
			Build()
		require.NoError(t, err)

		return f
	}

	_, err := flow.NewRecursiveFlowRunner(build()).Run(t.Context(), "")
	require.ErrorIs(t, err, assert.AnError)

	checkpoint, err := store.Checkpoint(t.Context(), "resumable")
	require.NoError(t, err)
	assert.Equal(t, 1, checkpoint.ItemIndex)
	assert.Equal(t, "upper", checkpoint.State)

	_, err = flow.NewRecursiveFlowRunner(build()).Run(t.Context(), "")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"a": 1, "b": 2, "c": 1}, calls)

	checkpoint, err = store.Checkpoint(t.Context(), "resumable")
	require.NoError(t, err)
	assert.Equal(t, "done", checkpoint.State)
	assert.Equal(t, 3, checkpoint.ItemIndex)
}
