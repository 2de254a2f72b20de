package pipes

import (
	"context"
	"strings"

	"github.com/dukex/flowpipe/pkg/flow"
	"github.com/dukex/flowpipe/pkg/protocol"
)

func transform(fn func(string) string) protocol.Pipe {
	return func(_ context.Context, fc *flow.Context[string]) (*flow.Context[string], error) {
		return WithText(fc, fn(CurrentText(fc))), nil
	}
}

func simple(id, name, description string, fn func(string) string) protocol.PipeFactory {
	return &factory{
		id:          id,
		name:        name,
		description: description,
		schema:      emptySchema(),
		create: func(map[string]any) (protocol.Pipe, error) {
			return transform(fn), nil
		},
	}
}

// NewPassFactory returns a pipe that leaves the context untouched, used behind windows.
func NewPassFactory() protocol.PipeFactory {
	return &factory{
		id:          "pass",
		name:        "Pass",
		description: "Forwards the context unchanged",
		schema:      emptySchema(),
		create: func(map[string]any) (protocol.Pipe, error) {
			return func(_ context.Context, fc *flow.Context[string]) (*flow.Context[string], error) {
				return fc, nil
			}, nil
		},
	}
}

func NewTrimFactory() protocol.PipeFactory {
	return simple("trim", "Trim", "Removes leading and trailing white space", strings.TrimSpace)
}

func NewLowerFactory() protocol.PipeFactory {
	return simple("lower", "Lower", "Lower-cases the text", strings.ToLower)
}

func NewUpperFactory() protocol.PipeFactory {
	return simple("upper", "Upper", "Upper-cases the text", strings.ToUpper)
}

// NewPrefixFactory prepends config "value" to the text.
func NewPrefixFactory() protocol.PipeFactory {
	return &factory{
		id:          "prefix",
		name:        "Prefix",
		description: "Prepends a fixed value to the text",
		schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"value": map[string]any{
					"type":        "string",
					"description": "Text placed in front of the item",
					"examples":    []string{"> ", "item: "},
				},
			},
			"required":             []string{"value"},
			"additionalProperties": false,
		},
		create: func(config map[string]any) (protocol.Pipe, error) {
			value, err := stringConfig(config, "value")
			if err != nil {
				return nil, err
			}

			return transform(func(text string) string { return value + text }), nil
		},
	}
}

// NewReplaceFactory replaces every config "old" with config "new".
func NewReplaceFactory() protocol.PipeFactory {
	return &factory{
		id:          "replace",
		name:        "Replace",
		description: "Replaces every occurrence of a substring",
		schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"old": map[string]any{"type": "string", "minLength": 1},
				"new": map[string]any{"type": "string"},
			},
			"required":             []string{"old", "new"},
			"additionalProperties": false,
		},
		create: func(config map[string]any) (protocol.Pipe, error) {
			oldValue, err := stringConfig(config, "old")
			if err != nil {
				return nil, err
			}

			newValue, err := stringConfig(config, "new")
			if err != nil {
				return nil, err
			}

			return transform(func(text string) string { return strings.ReplaceAll(text, oldValue, newValue) }), nil
		},
	}
}
