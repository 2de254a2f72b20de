package cmd

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/dukex/flowpipe/pkg/channels/kafka"
	"github.com/dukex/flowpipe/pkg/persistence/file"
	"github.com/dukex/flowpipe/pkg/persistence/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePersistenceProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url      string
		expected string
	}{
		{url: "./data", expected: "file"},
		{url: "file:///tmp/data", expected: "file"},
		{url: "postgres://user@localhost/db", expected: "postgresql"},
		{url: "postgresql://user@localhost/db", expected: "postgresql"},
		{url: "sqlite:///tmp/flowpipe.db", expected: "sqlite"},
		{url: "redis://localhost:6379/0", expected: "redis"},
		{url: "mongodb://localhost", expected: "mongodb"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, ParsePersistenceProvider(tt.url))
		})
	}
}

func TestNewPersistence(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)

	t.Run("file", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()

		store, err := NewPersistence(t.Context(), logger, "file://"+dir)
		require.NoError(t, err)
		require.IsType(t, &file.Persistence{}, store)
		assert.Equal(t, dir, store.(*file.Persistence).Root())
	})

	t.Run("sqlite", func(t *testing.T) {
		t.Parallel()

		store, err := NewPersistence(t.Context(), logger, "sqlite://"+filepath.Join(t.TempDir(), "flowpipe.db"))
		require.NoError(t, err)
		require.IsType(t, &sqlite.Persistence{}, store)

		t.Cleanup(func() { _ = store.Close(t.Context()) })

		assert.NoError(t, store.HealthCheck(t.Context()))
	})

	t.Run("unsupported", func(t *testing.T) {
		t.Parallel()

		_, err := NewPersistence(t.Context(), logger, "mongodb://localhost")
		require.ErrorIs(t, err, ErrUnsupportedProvider)
	})
}

func TestNewEventBus(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)

	bus, err := NewEventBus(logger, "gochannel", "")
	require.NoError(t, err)
	require.NotNil(t, bus)
	assert.NoError(t, bus.Close(t.Context()))

	_, err = NewEventBus(logger, "kafka", " , ")
	require.ErrorIs(t, err, kafka.ErrNoBrokers)

	_, err = NewEventBus(logger, "nats", "")
	require.ErrorIs(t, err, ErrUnsupportedEventBus)
}

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(slog.New(slog.DiscardHandler))

	_, ok := reg.Pipe("trim")
	assert.True(t, ok)
}
