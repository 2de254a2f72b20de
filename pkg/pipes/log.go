package pipes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/flowpipe/pkg/flow"
	flowlog "github.com/dukex/flowpipe/pkg/log"
	"github.com/dukex/flowpipe/pkg/protocol"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// NewLogFactory logs the working text with the logger carried by the run context.
func NewLogFactory() protocol.PipeFactory {
	return &factory{
		id:          "log",
		name:        "Log",
		description: "Logs the text at the configured level (debug, info, warn, error)",
		schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"level": map[string]any{
					"type":    "string",
					"enum":    []string{"debug", "info", "warn", "error"},
					"default": "info",
				},
				"message": map[string]any{
					"type":    "string",
					"default": "Item processed",
				},
			},
			"additionalProperties": false,
		},
		create: func(config map[string]any) (protocol.Pipe, error) {
			level := slog.LevelInfo

			if name, ok := config["level"].(string); ok {
				lvl, known := logLevels[name]
				if !known {
					return nil, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, name)
				}

				level = lvl
			}

			message := "Item processed"
			if m, ok := config["message"].(string); ok && m != "" {
				message = m
			}

			return func(ctx context.Context, fc *flow.Context[string]) (*flow.Context[string], error) {
				flowlog.FromContext(ctx).Log(ctx, level, message,
					"state", fc.State(),
					"iteration", fc.Iteration(),
					"text", CurrentText(fc))

				return fc, nil
			}, nil
		},
	}
}
