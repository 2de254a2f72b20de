package web_test

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukex/flowpipe/pkg/mocks"
	"github.com/dukex/flowpipe/pkg/models"
	"github.com/dukex/flowpipe/pkg/persistence"
	"github.com/dukex/flowpipe/pkg/persistence/file"
	"github.com/dukex/flowpipe/pkg/registry"
	"github.com/dukex/flowpipe/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T, store persistence.Persistence) *fiber.App {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaults()

	app := fiber.New()
	web.NewAPIHandlers(logger, store, reg).Register(app)

	return app
}

func seededStore(t *testing.T) *file.Persistence {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	ctx := t.Context()
	now := time.Now().UTC()

	for _, key := range []string{"job", "job#abc"} {
		require.NoError(t, store.SaveCheckpoint(ctx, &models.Checkpoint{
			Key:       key,
			JobKey:    "job",
			ItemIndex: 2,
			PipeIndex: 1,
			State:     "clean",
			UpdatedAt: now,
		}))
	}

	require.NoError(t, store.SaveProcessedChunk(ctx, &models.ProcessedChunk{JobKey: "job", Hash: "abc", ProcessedAt: now}))

	return store
}

func do(t *testing.T, app *fiber.App, method, target string) (*http.Response, []byte) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(method, target, nil))
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, body
}

func TestAPIHandlers_GetCheckpoints(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t, seededStore(t))

	resp, body := do(t, app, http.MethodGet, "/checkpoints/job")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result web.CheckpointsResponse
	require.NoError(t, json.Unmarshal(body, &result))

	assert.Equal(t, "job", result.JobKey)
	assert.Equal(t, 2, result.TotalCount)
	assert.Equal(t, "job", result.Checkpoints[0].Key)
	assert.Equal(t, "job#abc", result.Checkpoints[1].Key)

	resp, body = do(t, app, http.MethodGet, "/checkpoints/unknown")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, 0, result.TotalCount)
	assert.NotNil(t, result.Checkpoints)
}

func TestAPIHandlers_GetCheckpoint(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t, seededStore(t))

	tests := []struct {
		name           string
		target         string
		expectedStatus int
		expectedKey    string
		expectedType   string
	}{
		{name: "job", target: "/checkpoints/job/current", expectedStatus: http.StatusOK, expectedKey: "job"},
		{name: "chunk", target: "/checkpoints/job/current?chunk=abc", expectedStatus: http.StatusOK, expectedKey: "job#abc"},
		{name: "missing", target: "/checkpoints/nope/current", expectedStatus: http.StatusNotFound, expectedType: "not_found"},
		{name: "invalid key", target: "/checkpoints/a..b/current", expectedStatus: http.StatusBadRequest, expectedType: "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, app, http.MethodGet, tt.target)
			require.Equal(t, tt.expectedStatus, resp.StatusCode, string(body))

			if tt.expectedKey != "" {
				var checkpoint models.Checkpoint
				require.NoError(t, json.Unmarshal(body, &checkpoint))
				assert.Equal(t, tt.expectedKey, checkpoint.Key)
				assert.Equal(t, "clean", checkpoint.State)

				return
			}

			var problem map[string]any
			require.NoError(t, json.Unmarshal(body, &problem))
			assert.Equal(t, tt.expectedType, problem["type"])
		})
	}
}

func TestAPIHandlers_GetProcessedChunks(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t, seededStore(t))

	resp, body := do(t, app, http.MethodGet, "/checkpoints/job/chunks")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result web.ChunksResponse
	require.NoError(t, json.Unmarshal(body, &result))
	require.Len(t, result.Chunks, 1)
	assert.Equal(t, "abc", result.Chunks[0].Hash)
}

func TestAPIHandlers_ResetJob(t *testing.T) {
	t.Parallel()

	store := seededStore(t)
	app := setupTestApp(t, store)

	resp, _ := do(t, app, http.MethodDelete, "/checkpoints/job")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	checkpoints, err := store.Checkpoints(t.Context(), "job")
	require.NoError(t, err)
	assert.Empty(t, checkpoints)

	processed, err := store.ChunkProcessed(t.Context(), "job", "abc")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestAPIHandlers_PersistenceFailure(t *testing.T) {
	t.Parallel()

	store := &mocks.MockPersistence{}
	store.On("Checkpoints", mock.Anything, "job").Return(nil, errors.New("connection refused"))
	store.On("HealthCheck", mock.Anything).Return(errors.New("connection refused"))

	app := setupTestApp(t, store)

	resp, body := do(t, app, http.MethodGet, "/checkpoints/job")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var problem map[string]any
	require.NoError(t, json.Unmarshal(body, &problem))
	assert.Equal(t, "internal_error", problem["type"])

	resp, _ = do(t, app, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	store.AssertExpectations(t)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t, seededStore(t))

	resp, body := do(t, app, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestAPIHandlers_GetPipes(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t, seededStore(t))

	resp, body := do(t, app, http.MethodGet, "/pipes")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result web.PipesResponse
	require.NoError(t, json.Unmarshal(body, &result))

	assert.Len(t, result.Pipes, 11)
	assert.Equal(t, "fail", result.Pipes[0].ID)
	assert.Contains(t, result.Aggregations, "concat")
}
