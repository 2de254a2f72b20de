package pipes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/flowpipe/pkg/flow"
	"github.com/dukex/flowpipe/pkg/protocol"
)

var (
	// ErrInvalidConfig is returned by factories for unusable pipe configuration.
	ErrInvalidConfig = errors.New("invalid pipe configuration")

	// ErrRejected is returned by the fail pipe.
	ErrRejected = errors.New("item rejected")
)

func stringConfig(config map[string]any, key string) (string, error) {
	value, ok := config[key].(string)
	if !ok {
		return "", fmt.Errorf("%w: missing required field '%s'", ErrInvalidConfig, key)
	}

	return value, nil
}

// NewFailFactory fails items whose text contains config "contains", every item when unset.
func NewFailFactory() protocol.PipeFactory {
	return &factory{
		id:          "fail",
		name:        "Fail",
		description: "Fails on items containing a substring, exercising the job error strategy",
		schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"contains": map[string]any{"type": "string"},
			},
			"additionalProperties": false,
		},
		create: func(config map[string]any) (protocol.Pipe, error) {
			needle, _ := config["contains"].(string)

			return func(_ context.Context, fc *flow.Context[string]) (*flow.Context[string], error) {
				text := CurrentText(fc)
				if needle == "" || strings.Contains(text, needle) {
					return nil, fmt.Errorf("%w: %q", ErrRejected, text)
				}

				return fc, nil
			}, nil
		},
	}
}
