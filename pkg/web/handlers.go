// Package web provides HTTP handlers to inspect and reset flow checkpoints.
package web

import (
	"log/slog"

	"github.com/dukex/flowpipe/pkg/models"
	"github.com/dukex/flowpipe/pkg/persistence"
	"github.com/dukex/flowpipe/pkg/registry"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
}

func NewAPIHandlers(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		logger:      logger.With("module", "web"),
		persistence: persistence,
		registry:    registry,
	}
}

// Register mounts every route on app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)
	app.Get("/pipes", h.GetPipes)

	c := app.Group("/checkpoints")
	c.Get("/:job", h.GetCheckpoints)
	c.Get("/:job/chunks", h.GetProcessedChunks)
	c.Get("/:job/current", h.GetCheckpoint)
	c.Delete("/:job", h.ResetJob)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.persistence.HealthCheck(c.Context())
	if err != nil {
		h.logger.WarnContext(c.Context(), "Health check failed", "error", err)

		return unavailable(c, err)
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *APIHandlers) GetCheckpoints(c fiber.Ctx) error {
	job := c.Params("job")

	checkpoints, err := h.persistence.Checkpoints(c.Context(), job)
	if err != nil {
		return handlePersistenceError(c, err)
	}

	if checkpoints == nil {
		checkpoints = []*models.Checkpoint{}
	}

	return c.JSON(CheckpointsResponse{
		JobKey:      job,
		Checkpoints: checkpoints,
		TotalCount:  len(checkpoints),
	})
}

// GetCheckpoint returns the checkpoint of the job itself, or of one of its chunks when
// the chunk query parameter carries a hash.
func (h *APIHandlers) GetCheckpoint(c fiber.Ctx) error {
	key := c.Params("job")
	if chunk := c.Query("chunk"); chunk != "" {
		key += persistence.ChunkSeparator + chunk
	}

	checkpoint, err := h.persistence.Checkpoint(c.Context(), key)
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(checkpoint)
}

func (h *APIHandlers) GetProcessedChunks(c fiber.Ctx) error {
	job := c.Params("job")

	chunks, err := h.persistence.ProcessedChunks(c.Context(), job)
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(ChunksResponse{
		JobKey:     job,
		Chunks:     chunks,
		TotalCount: len(chunks),
	})
}

// ResetJob forgets every checkpoint and processed chunk so the next run starts over.
func (h *APIHandlers) ResetJob(c fiber.Ctx) error {
	job := c.Params("job")

	err := h.persistence.Reset(c.Context(), job)
	if err != nil {
		return handlePersistenceError(c, err)
	}

	h.logger.InfoContext(c.Context(), "Job reset", "job_key", job)

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetPipes(c fiber.Ctx) error {
	factories := h.registry.Pipes()

	pipes := make([]PipeResponse, 0, len(factories))
	for _, f := range factories {
		pipes = append(pipes, PipeResponse{
			ID:          f.ID(),
			Name:        f.Name(),
			Description: f.Description(),
			Schema:      f.Schema(),
		})
	}

	return c.JSON(PipesResponse{
		Pipes:        pipes,
		Aggregations: h.registry.Aggregations(),
	})
}
