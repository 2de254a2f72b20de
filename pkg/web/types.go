// Package web provides HTTP request and response types for the checkpoint API.
package web

import "github.com/dukex/flowpipe/pkg/models"

// CheckpointsResponse lists the checkpoints of a job, its own and those of its chunks.
type CheckpointsResponse struct {
	JobKey      string               `json:"job_key"`
	Checkpoints []*models.Checkpoint `json:"checkpoints"`
	TotalCount  int                  `json:"total_count"`
}

// ChunksResponse lists the processed chunks of a job in processing order.
type ChunksResponse struct {
	JobKey     string                   `json:"job_key"`
	Chunks     []*models.ProcessedChunk `json:"chunks"`
	TotalCount int                      `json:"total_count"`
}

// PipeResponse describes a registered pipe type.
type PipeResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema,omitempty"`
}

// PipesResponse lists the registered pipe types and aggregations.
type PipesResponse struct {
	Pipes        []PipeResponse `json:"pipes"`
	Aggregations []string       `json:"aggregations"`
}
