package jobs

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/dukex/flowpipe/pkg/flow"
	"github.com/dukex/flowpipe/pkg/models"
	"github.com/dukex/flowpipe/pkg/persistence"
	"github.com/dukex/flowpipe/pkg/persistence/file"
	"github.com/dukex/flowpipe/pkg/pipes"
	"github.com/dukex/flowpipe/pkg/protocol"
	"github.com/dukex/flowpipe/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector records the working text of every context reaching it.
type collector struct {
	mu    sync.Mutex
	texts []string
}

func (c *collector) Create(context.Context, string, map[string]any) (protocol.Pipe, error) {
	return func(_ context.Context, fc *flow.Context[string]) (*flow.Context[string], error) {
		c.mu.Lock()
		defer c.mu.Unlock()

		c.texts = append(c.texts, pipes.CurrentText(fc))

		return fc, nil
	}, nil
}

func (c *collector) ID() string             { return "collect" }
func (c *collector) Name() string           { return "Collect" }
func (c *collector) Description() string    { return "Records texts" }
func (c *collector) Schema() map[string]any { return nil }

type fixture struct {
	store     *file.Persistence
	registry  *registry.Registry
	collector *collector
	logger    *slog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaults()

	c := &collector{}
	reg.RegisterPipe(c)

	return &fixture{
		store:     file.NewPersistence(t.TempDir()),
		registry:  reg,
		collector: c,
		logger:    logger,
	}
}

func (f *fixture) run(t *testing.T, doc string, items []string) (*Report, error) {
	t.Helper()

	def, err := Parse([]byte(doc))
	require.NoError(t, err)

	if items == nil {
		items = def.Source.Items
	}

	fl, err := Build(t.Context(), def, items, Options{
		Registry:     f.registry,
		StateManager: persistence.NewStateManager(f.store, f.logger),
		Logger:       f.logger,
	})
	require.NoError(t, err)

	return Run(t.Context(), fl, def)
}

func TestRunTransformsItems(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	report, err := f.run(t, `
id: shout
source: {items: [" a ", "b  "]}
states:
  - name: clean
    pipes:
      - {name: trim, type: trim}
      - {name: upper, type: upper}
      - {name: collect, type: collect}
`, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, f.collector.texts)
	assert.Equal(t, "shout", report.JobID)
	assert.Equal(t, 2, report.Items)
	require.NotNil(t, report.Last)
	assert.Equal(t, "B", pipes.CurrentText(report.Last))

	checkpoint, err := f.store.Checkpoint(t.Context(), "shout")
	require.NoError(t, err)
	assert.Equal(t, "clean", checkpoint.State)
	assert.Equal(t, 2, checkpoint.ItemIndex)
}

func TestRunWindowedPipe(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.run(t, `
id: pairs
source: {items: [a, b, c, d]}
states:
  - name: join
    pipes:
      - name: pairs
        type: pass
        window: {kind: tumbling, size: 2, aggregation: concat, separator: ","}
      - {name: collect, type: collect}
`, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"a,b", "c,d"}, f.collector.texts)
}

func TestRunAbortsOnError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.run(t, `
id: strict
error_strategy: abort
source: {items: [ok, bad, ok]}
states:
  - name: check
    pipes:
      - {name: reject, type: fail, config: {contains: bad}}
`, nil)
	require.ErrorIs(t, err, pipes.ErrRejected)

	checkpoint, err := f.store.Checkpoint(t.Context(), "strict")
	require.NoError(t, err)
	assert.Equal(t, 1, checkpoint.ItemIndex)
}

func TestRunContinuesOnError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.run(t, `
id: lenient
source: {items: [ok, bad, fine]}
states:
  - name: check
    pipes:
      - {name: reject, type: fail, config: {contains: bad}}
      - {name: collect, type: collect}
`, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"ok", "bad", "fine"}, f.collector.texts)
}

func TestRunSkipsProcessedChunks(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	doc := `
id: chunked
chunk_size: 2
source: {items: [a, b, c, d]}
states:
  - name: clean
    pipes:
      - {name: collect, type: collect}
`

	first, err := f.run(t, doc, nil)
	require.NoError(t, err)
	assert.Len(t, first.Executed, 2)
	assert.Empty(t, first.Skipped)
	assert.Equal(t, []string{"a", "b", "c", "d"}, f.collector.texts)

	second, err := f.run(t, doc, nil)
	require.NoError(t, err)
	assert.Empty(t, second.Executed)
	assert.ElementsMatch(t, first.Executed, second.Skipped)
	assert.Len(t, f.collector.texts, 4, "processed chunks are not run again")

	chunks, err := f.store.ProcessedChunks(t.Context(), "chunked")
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}

func TestBuildUnknownPipe(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	def := &models.JobDefinition{
		ID:     "broken",
		Source: models.JobSource{Items: []string{"x"}},
		States: []models.StateDefinition{{Name: "s", Pipes: []models.PipeDefinition{{Name: "p", Type: "nope"}}}},
	}

	_, err := Build(t.Context(), def, def.Source.Items, Options{
		Registry:     f.registry,
		StateManager: persistence.NewStateManager(f.store, f.logger),
	})
	require.ErrorIs(t, err, registry.ErrUnknownPipe)
}

func TestBuildUnknownAggregation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	def := &models.JobDefinition{
		ID:     "broken",
		Source: models.JobSource{Items: []string{"x"}},
		States: []models.StateDefinition{{Name: "s", Pipes: []models.PipeDefinition{{
			Name:   "p",
			Type:   "pass",
			Window: &models.WindowDefinition{Kind: "tumbling", Size: 2, Aggregation: "median"},
		}}}},
	}

	_, err := Build(t.Context(), def, def.Source.Items, Options{
		Registry:     f.registry,
		StateManager: persistence.NewStateManager(f.store, f.logger),
	})
	require.ErrorIs(t, err, registry.ErrUnknownAggregation)
}
