// Package protocol defines the contract between job definitions and pluggable pipes.
package protocol

import (
	"context"

	"github.com/dukex/flowpipe/pkg/flow"
)

// Pipe is the function a job pipe runs. Jobs flow over text items.
type Pipe = flow.PipeFunc[string]

// PipeFactory creates pipe instances and provides metadata about the pipe type.
type PipeFactory interface {
	// Create creates a new pipe with the given configuration
	Create(ctx context.Context, name string, config map[string]any) (Pipe, error)

	// ID returns the unique identifier for this pipe type
	ID() string

	// Name returns the human-readable name for this pipe type
	Name() string

	// Description returns a description of what this pipe does
	Description() string

	// Schema returns the JSON schema for configuring this pipe
	Schema() map[string]any
}

// AggregationFactory builds the reducer of a windowed pipe. argument names the context
// argument read from each buffered context; separator only applies to text joins.
type AggregationFactory func(argument, separator string) flow.Aggregation[string]
