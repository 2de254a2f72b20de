package jobs

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/dukex/flowpipe/pkg/models"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	def, err := Load(filepath.Join("testdata", "words.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "words", def.ID)
	assert.Equal(t, 2, def.ChunkSize)
	assert.Equal(t, models.ErrorStrategyRecord, def.ErrorStrategy)
	assert.Equal(t, map[string]any{"owner": "docs"}, def.Metadata)
	require.Len(t, def.States, 2)
	assert.Equal(t, map[string]any{"value": "- "}, def.States[0].Pipes[2].Config)

	window := def.States[1].Pipes[0].Window
	require.NotNil(t, window)
	assert.Equal(t, "tumbling", window.Kind)
	assert.Equal(t, ", ", window.Separator)

	items, err := Items(def, "testdata")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "  beta ", "gamma", "delta"}, items)
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()

	def, err := Load(filepath.Join("testdata", "words.json"))
	require.NoError(t, err)

	items, err := Items(def, "ignored")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, items)

	window := def.States[0].Pipes[1].Window
	require.NotNil(t, window)
	assert.True(t, window.Persist)
	assert.Equal(t, "length", window.Argument)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty", doc: ""},
		{name: "missing states", doc: "id: a\nsource: {items: [x]}\n"},
		{name: "no source", doc: "id: a\nsource: {}\nstates: [{name: s, pipes: [{name: p, type: trim}]}]\n"},
		{name: "both sources", doc: "id: a\nsource: {items: [x], file: f.txt}\nstates: [{name: s, pipes: [{name: p, type: trim}]}]\n"},
		{name: "unknown strategy", doc: "id: a\nerror_strategy: retry\nsource: {items: [x]}\nstates: [{name: s, pipes: [{name: p, type: trim}]}]\n"},
		{name: "state without pipes", doc: "id: a\nsource: {items: [x]}\nstates: [{name: s, pipes: []}]\n"},
		{name: "bad window kind", doc: "id: a\nsource: {items: [x]}\nstates: [{name: s, pipes: [{name: p, type: pass, window: {kind: hopping, size: 2, aggregation: count}}]}]\n"},
		{name: "zero window size", doc: "id: a\nsource: {items: [x]}\nstates: [{name: s, pipes: [{name: p, type: pass, window: {kind: tumbling, size: 0, aggregation: count}}]}]\n"},
		{name: "unknown field", doc: "id: a\nretries: 3\nsource: {items: [x]}\nstates: [{name: s, pipes: [{name: p, type: trim}]}]\n"},
		{name: "duplicate state", doc: "id: a\nsource: {items: [x]}\nstates: [{name: s, pipes: [{name: p, type: trim}]}, {name: s, pipes: [{name: q, type: trim}]}]\n"},
		{name: "unsafe id", doc: "id: ../a\nsource: {items: [x]}\nstates: [{name: s, pipes: [{name: p, type: trim}]}]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.doc))
			require.ErrorIs(t, err, ErrInvalidJob)
		})
	}
}

func TestParseDecodeError(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("id: [unterminated"))
	require.Error(t, err)
}

func TestWritePlan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		file   string
		golden string
	}{
		{file: "words.yaml", golden: "plan"},
		{file: "words.json", golden: "plan_json"},
	}

	for _, tt := range tests {
		t.Run(tt.golden, func(t *testing.T) {
			t.Parallel()

			def, err := Load(filepath.Join("testdata", tt.file))
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, WritePlan(&buf, def))

			g := goldie.New(t,
				goldie.WithFixtureDir("testdata"),
				goldie.WithNameSuffix(".golden"),
			)
			g.Assert(t, tt.golden, buf.Bytes())
		})
	}
}
