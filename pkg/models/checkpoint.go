package models

import "time"

// Checkpoint is the persisted resume cursor of a flow (or of one chunk of a batch job).
type Checkpoint struct {
	Key       string    `json:"key"        validate:"required"`
	JobKey    string    `json:"job_key"    validate:"required"`
	ItemIndex int       `json:"item_index" validate:"gte=0"`
	PipeIndex int       `json:"pipe_index" validate:"gte=0"`
	State     string    `json:"state"      validate:"required"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProcessedChunk records a chunk content hash completed by a batch job.
type ProcessedChunk struct {
	JobKey      string    `json:"job_key"      validate:"required"`
	Hash        string    `json:"hash"         validate:"required"`
	ProcessedAt time.Time `json:"processed_at"`
}
