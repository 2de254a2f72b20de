package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgument_MakeObsolete(t *testing.T) {
	t.Parallel()

	fresh := NewArgument("text", "hello")

	old := fresh.MakeObsolete()
	assert.Equal(t, ArgOld, old.Type)
	assert.Equal(t, "hello", old.Value)
	assert.Equal(t, fresh.Timestamp, old.Timestamp)

	tombstone := old.MakeObsolete()
	assert.Equal(t, ArgOld, tombstone.Type)
	assert.Nil(t, tombstone.Value)
	assert.True(t, tombstone.IsEmpty())

	// tombstones stay tombstones
	assert.Equal(t, tombstone, tombstone.MakeObsolete())
}

func TestArgument_MakeObsolete_AltAndCopy(t *testing.T) {
	t.Parallel()

	alt := NewEphemeralArgument("draft", "x").MakeObsolete()
	assert.Equal(t, ArgOld, alt.Type)
	assert.Equal(t, "x", alt.Value)

	cp := NewArgument("draft", "y").Copy()
	assert.Equal(t, ArgCopy, cp.Type)
	assert.Equal(t, ArgOld, cp.MakeObsolete().Type)
}

func TestArgument_IsEmpty(t *testing.T) {
	t.Parallel()

	var nilPtr *string

	tests := []struct {
		name  string
		value any
		empty bool
	}{
		{"nil", nil, true},
		{"blank string", "   ", true},
		{"empty string", "", true},
		{"string", "a", false},
		{"empty slice", []string{}, true},
		{"slice", []int{1}, false},
		{"empty array", [0]int{}, true},
		{"nil pointer", nilPtr, true},
		{"zero int", 0, false},
		{"false", false, false},
		{"empty map", map[string]int{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.empty, NewArgument("v", tt.value).IsEmpty())
		})
	}
}

func TestArgument_SameIdentity(t *testing.T) {
	t.Parallel()

	ts := time.Now()
	a := Argument{ID: "1", Name: "n", Type: ArgNew, Value: 1, Timestamp: ts}
	b := Argument{ID: "2", Name: "n", Type: ArgNew, Value: 2, Timestamp: ts}

	assert.True(t, a.SameIdentity(b))
	assert.False(t, a.SameIdentity(a.MakeObsolete()))
}

func TestArgValue(t *testing.T) {
	t.Parallel()

	n, ok := ArgValue[int](NewArgument("n", 3))
	require.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = ArgValue[string](NewArgument("n", 3))
	assert.False(t, ok)
}

func TestArgType_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "NEW", ArgNew.String())
	assert.Equal(t, "OLD", ArgOld.String())
	assert.Equal(t, "ALT", ArgAlt.String())
	assert.Equal(t, "COPY", ArgCopy.String())
	assert.Equal(t, "ArgType(9)", ArgType(9).String())
}
