package jobs

import (
	"context"

	"github.com/dukex/flowpipe/pkg/flow"
	flowlog "github.com/dukex/flowpipe/pkg/log"
	"github.com/dukex/flowpipe/pkg/models"
)

// Report summarizes one run of a job.
type Report struct {
	JobID string
	Items int
	// Executed and Skipped hold chunk hashes, only for chunked jobs.
	Executed []string
	Skipped  []string
	Last     *flow.Context[string]
}

// Run drives every state of f. Jobs with a chunk size run through the batch runner so
// chunks completed by an earlier run are skipped.
func Run(ctx context.Context, f *flow.Flow[string], def *models.JobDefinition, opts ...flow.RunnerOption[string]) (*Report, error) {
	ctx = flowlog.ContextWithLogger(ctx, f.Logger().With("flow_id", f.ID()))

	report := &Report{JobID: def.ID, Items: f.Len()}

	if def.ChunkSize > 0 {
		opts = append(opts, flow.WithChunkSize[string](def.ChunkSize), flow.WithFullRun[string]())

		result, err := flow.NewBatchFlowRunner(f, opts...).Run(ctx, "")
		if result != nil {
			report.Executed = result.Executed
			report.Skipped = result.Skipped
			report.Last = result.Last
		}

		return report, err
	}

	last, err := flow.NewRecursiveFlowRunner(f, opts...).Run(ctx, "")
	report.Last = last

	return report, err
}
