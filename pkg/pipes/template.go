package pipes

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/dukex/flowpipe/pkg/flow"
	"github.com/dukex/flowpipe/pkg/protocol"
)

var templateFuncs = template.FuncMap{
	"now": func() string {
		return time.Now().UTC().Format(time.RFC3339)
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"trim":  strings.TrimSpace,
}

// NewTemplateFactory renders config "template" with the text, item, state, iteration,
// current arguments and metadata of the context. The output becomes the text.
func NewTemplateFactory() protocol.PipeFactory {
	return &factory{
		id:          "template",
		name:        "Template",
		description: "Renders a Go template over the context, e.g. {{.iteration}}: {{upper .text}}",
		schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"template": map[string]any{
					"type":      "string",
					"minLength": 1,
				},
			},
			"required":             []string{"template"},
			"additionalProperties": false,
		},
		create: func(config map[string]any) (protocol.Pipe, error) {
			text, err := stringConfig(config, "template")
			if err != nil {
				return nil, err
			}

			tmpl, err := template.New("pipe").Funcs(templateFuncs).Option("missingkey=zero").Parse(text)
			if err != nil {
				return nil, fmt.Errorf("%w: failed to parse template: %w", ErrInvalidConfig, err)
			}

			return func(_ context.Context, fc *flow.Context[string]) (*flow.Context[string], error) {
				var buf strings.Builder

				err := tmpl.Execute(&buf, templateData(fc))
				if err != nil {
					return nil, fmt.Errorf("failed to execute template: %w", err)
				}

				return WithText(fc, buf.String()), nil
			}, nil
		},
	}
}

func templateData(fc *flow.Context[string]) map[string]any {
	args := make(map[string]any)

	for _, arg := range fc.Arguments() {
		if arg.Type != flow.ArgNew || arg.Ephemeral || arg.Name == ArgText {
			continue
		}

		args[arg.Name] = arg.Value
	}

	return map[string]any{
		"text":      CurrentText(fc),
		"item":      fc.Item(),
		"state":     string(fc.State()),
		"iteration": fc.Iteration(),
		"args":      args,
		"meta":      map[string]any(fc.Metadata()),
	}
}
