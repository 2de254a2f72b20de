// Package registry maps the pipe and aggregation names used by job definitions to
// their factories.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/dukex/flowpipe/pkg/flow"
	"github.com/dukex/flowpipe/pkg/pipes"
	"github.com/dukex/flowpipe/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

var (
	// ErrUnknownPipe is returned for pipe types nobody registered.
	ErrUnknownPipe = errors.New("pipe type not registered")
	// ErrUnknownAggregation is returned for aggregation names nobody registered.
	ErrUnknownAggregation = errors.New("aggregation not registered")
	// ErrInvalidPipeConfig is returned when a configuration does not match the pipe schema.
	ErrInvalidPipeConfig = errors.New("invalid pipe configuration")
)

type Registry struct {
	logger       *slog.Logger
	pipes        map[string]protocol.PipeFactory
	aggregations map[string]protocol.AggregationFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:       log.With("module", "registry"),
		pipes:        make(map[string]protocol.PipeFactory),
		aggregations: make(map[string]protocol.AggregationFactory),
	}
}

// RegisterDefaults registers the built-in pipes and aggregations.
func (r *Registry) RegisterDefaults() {
	for _, factory := range pipes.Builtins() {
		r.RegisterPipe(factory)
	}

	for name, factory := range pipes.Aggregations() {
		r.RegisterAggregation(name, factory)
	}
}

func (r *Registry) RegisterPipe(factory protocol.PipeFactory) {
	if _, exists := r.pipes[factory.ID()]; exists {
		r.logger.Warn("Replacing registered pipe", "type", factory.ID())
	}

	r.pipes[factory.ID()] = factory
}

func (r *Registry) RegisterAggregation(name string, factory protocol.AggregationFactory) {
	r.aggregations[name] = factory
}

// Pipe returns the factory registered for pipeType.
func (r *Registry) Pipe(pipeType string) (protocol.PipeFactory, bool) {
	factory, ok := r.pipes[pipeType]

	return factory, ok
}

// Pipes lists the registered pipe factories ordered by id.
func (r *Registry) Pipes() []protocol.PipeFactory {
	factories := make([]protocol.PipeFactory, 0, len(r.pipes))
	for _, id := range slices.Sorted(maps.Keys(r.pipes)) {
		factories = append(factories, r.pipes[id])
	}

	return factories
}

// Aggregations lists the registered aggregation names.
func (r *Registry) Aggregations() []string {
	return slices.Sorted(maps.Keys(r.aggregations))
}

// CreatePipe validates config against the schema of pipeType and creates the pipe.
func (r *Registry) CreatePipe(ctx context.Context, pipeType, name string, config map[string]any) (protocol.Pipe, error) {
	factory, ok := r.pipes[pipeType]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownPipe, pipeType)
	}

	if config == nil {
		config = map[string]any{}
	}

	if err := validateConfig(factory.Schema(), config); err != nil {
		return nil, fmt.Errorf("pipe %s (%s): %w", name, pipeType, err)
	}

	pipe, err := factory.Create(ctx, name, config)
	if err != nil {
		return nil, fmt.Errorf("pipe %s (%s): %w", name, pipeType, err)
	}

	return pipe, nil
}

// CreateAggregation builds the aggregation registered under name.
func (r *Registry) CreateAggregation(name, argument, separator string) (flow.Aggregation[string], error) {
	factory, ok := r.aggregations[name]
	if !ok {
		return flow.Aggregation[string]{}, fmt.Errorf("%w: '%s'", ErrUnknownAggregation, name)
	}

	return factory(argument, separator), nil
}

func validateConfig(schema map[string]any, config map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(config))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPipeConfig, err)
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidPipeConfig, strings.Join(errs, "; "))
	}

	return nil
}
