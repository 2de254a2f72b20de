package jobs

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dukex/flowpipe/pkg/models"
)

// WritePlan renders the states and pipes a job would run.
func WritePlan(w io.Writer, def *models.JobDefinition) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Job: %s\n", def.ID)

	if def.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", def.Description)
	}

	if def.Source.File != "" {
		fmt.Fprintf(&b, "Source: file %s\n", def.Source.File)
	} else {
		fmt.Fprintf(&b, "Source: %d inline items\n", len(def.Source.Items))
	}

	strategy := def.ErrorStrategy
	if strategy == "" {
		strategy = models.ErrorStrategyContinue
	}

	fmt.Fprintf(&b, "Error strategy: %s\n", strategy)

	if def.ChunkSize > 0 {
		fmt.Fprintf(&b, "Chunk size: %d\n", def.ChunkSize)
	}

	for i, state := range def.States {
		fmt.Fprintf(&b, "\nState %d: %s\n", i+1, state.Name)

		for j, pipe := range state.Pipes {
			fmt.Fprintf(&b, "  %d. %s [%s]", j+1, pipe.Name, pipe.Type)

			if len(pipe.Config) > 0 {
				config, err := json.Marshal(pipe.Config)
				if err != nil {
					return fmt.Errorf("pipe %s: %w", pipe.Name, err)
				}

				fmt.Fprintf(&b, " %s", config)
			}

			b.WriteString("\n")

			if pipe.Window != nil {
				b.WriteString("     " + describeWindow(pipe.Window) + "\n")
			}
		}
	}

	_, err := io.WriteString(w, b.String())

	return err
}

func describeWindow(def *models.WindowDefinition) string {
	parts := []string{fmt.Sprintf("window %s size=%d", def.Kind, def.Size)}

	if def.Kind == "sliding" {
		slide := def.Slide
		if slide == 0 {
			slide = 1
		}

		parts = append(parts, fmt.Sprintf("slide=%d", slide))
	}

	aggregation := def.Aggregation
	if def.Argument != "" {
		aggregation += "(" + def.Argument + ")"
	}

	parts = append(parts, "aggregation="+aggregation)

	if def.Separator != "" {
		parts = append(parts, fmt.Sprintf("separator=%q", def.Separator))
	}

	if def.Persist {
		parts = append(parts, "persist")
	}

	return strings.Join(parts, " ")
}
