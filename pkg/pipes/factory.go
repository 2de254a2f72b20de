package pipes

import (
	"context"

	"github.com/dukex/flowpipe/pkg/protocol"
)

// factory implements protocol.PipeFactory for the built-in pipes.
type factory struct {
	id          string
	name        string
	description string
	schema      map[string]any
	create      func(config map[string]any) (protocol.Pipe, error)
}

var _ protocol.PipeFactory = (*factory)(nil)

func (f *factory) Create(_ context.Context, _ string, config map[string]any) (protocol.Pipe, error) {
	return f.create(config)
}

func (f *factory) ID() string { return f.id }

func (f *factory) Name() string { return f.name }

func (f *factory) Description() string { return f.description }

func (f *factory) Schema() map[string]any { return f.schema }

func emptySchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           map[string]any{},
		"additionalProperties": false,
	}
}

// Builtins returns the factories of every built-in pipe.
func Builtins() []protocol.PipeFactory {
	return []protocol.PipeFactory{
		NewPassFactory(),
		NewTrimFactory(),
		NewLowerFactory(),
		NewUpperFactory(),
		NewPrefixFactory(),
		NewReplaceFactory(),
		NewWordsFactory(),
		NewLengthFactory(),
		NewTemplateFactory(),
		NewLogFactory(),
		NewFailFactory(),
	}
}
