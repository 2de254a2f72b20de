package sqlite_test

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukex/flowpipe/pkg/models"
	"github.com/dukex/flowpipe/pkg/persistence"
	"github.com/dukex/flowpipe/pkg/persistence/persistencetest"
	"github.com/dukex/flowpipe/pkg/persistence/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, path string) *sqlite.Persistence {
	t.Helper()

	store, err := sqlite.NewPersistence(t.Context(), slog.New(slog.DiscardHandler), path)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close(t.Context()) })

	return store
}

func TestPersistence_Contract(t *testing.T) {
	t.Parallel()

	persistencetest.Run(t, func(t *testing.T) persistence.Persistence {
		t.Helper()

		return newStore(t, "sqlite://"+filepath.Join(t.TempDir(), "flowpipe.db"))
	})
}

func TestPersistence_SurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "flowpipe.db")

	first, err := sqlite.NewPersistence(t.Context(), slog.New(slog.DiscardHandler), path)
	require.NoError(t, err)

	require.NoError(t, first.SaveCheckpoint(t.Context(), &models.Checkpoint{
		Key:       "job",
		JobKey:    "job",
		ItemIndex: 7,
		State:     "s",
		UpdatedAt: time.Now().UTC(),
	}))
	require.NoError(t, first.Close(t.Context()))

	second := newStore(t, path)

	checkpoint, err := second.Checkpoint(t.Context(), "job")
	require.NoError(t, err)
	assert.Equal(t, 7, checkpoint.ItemIndex)
}

func TestNewPersistence_EmptyPath(t *testing.T) {
	t.Parallel()

	_, err := sqlite.NewPersistence(t.Context(), slog.New(slog.DiscardHandler), "sqlite://")
	require.Error(t, err)
}
