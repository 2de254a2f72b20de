package flow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tracingPipe(trace *recorder[string], index int) PipeFunc[string] {
	return func(_ context.Context, fc *Context[string]) (*Context[string], error) {
		trace.add(fmt.Sprintf("%s:%d", fc.Item(), index))

		return fc, nil
	}
}

func TestOneStepRunner_RunsEveryItemThroughEveryPipe(t *testing.T) {
	t.Parallel()

	sm := newMemoryStateManager()
	trace := &recorder[string]{}

	f, err := NewBuilder("job", []string{"a", "b"}).
		WithStateManager(sm).
		OnState("s").
		Pipe("p0", tracingPipe(trace, 0)).
		Pipe("p1", tracingPipe(trace, 1)).
		Build()
	require.NoError(t, err)

	_, err = NewOneStepRunner(f).Run(t.Context(), "s")
	require.NoError(t, err)

	assert.Equal(t, []string{"a:0", "a:1", "b:0", "b:1"}, trace.all())
	assert.Equal(t, []checkpoint{
		{0, 1, "s"}, {0, 2, "s"}, {1, 0, "s"},
		{1, 1, "s"}, {1, 2, "s"}, {2, 0, "s"},
	}, sm.saves)
}

func TestOneStepRunner_ResumesFromCheckpoint(t *testing.T) {
	t.Parallel()

	sm := newMemoryStateManager()
	sm.seed("job", checkpoint{item: 1, pipe: 2, state: "s"})

	trace := &recorder[string]{}

	f, err := NewBuilder("job", []string{"a", "b", "c"}).
		WithStateManager(sm).
		OnState("s").
		Pipe("p0", tracingPipe(trace, 0)).
		Pipe("p1", tracingPipe(trace, 1)).
		Pipe("p2", tracingPipe(trace, 2)).
		Build()
	require.NoError(t, err)

	_, err = NewOneStepRunner(f).Run(t.Context(), "s")
	require.NoError(t, err)

	assert.Equal(t, []string{"b:2", "c:0", "c:1", "c:2"}, trace.all())

	cp, ok := sm.current("job")
	require.True(t, ok)
	assert.Equal(t, checkpoint{item: 3, pipe: 0, state: "s"}, cp)
}

func TestOneStepRunner_SavesNextState(t *testing.T) {
	t.Parallel()

	sm := newMemoryStateManager()

	f, err := NewBuilder("job", []string{"a"}).
		WithStateManager(sm).
		OnState("first").Pipe("p", identity[string]).
		OnState("second").Pipe("p", identity[string]).
		Build()
	require.NoError(t, err)

	_, err = NewOneStepRunner(f).Run(t.Context(), "first")
	require.NoError(t, err)

	cp, _ := sm.current("job")
	assert.Equal(t, checkpoint{item: 0, pipe: 0, state: "second"}, cp)
}

func TestOneStepRunner_SkipsCompletedState(t *testing.T) {
	t.Parallel()

	sm := newMemoryStateManager()
	sm.seed("job", checkpoint{item: 0, pipe: 0, state: "second"})

	trace := &recorder[string]{}

	f, err := NewBuilder("job", []string{"a"}).
		WithStateManager(sm).
		OnState("first").Pipe("p", tracingPipe(trace, 0)).
		OnState("second").Pipe("p", identity[string]).
		Build()
	require.NoError(t, err)

	_, err = NewOneStepRunner(f).Run(t.Context(), "first")
	require.NoError(t, err)

	assert.Empty(t, trace.all())
	assert.Empty(t, sm.saves)
}

func TestOneStepRunner_ContinuesAfterPipeFailure(t *testing.T) {
	t.Parallel()

	sm := newMemoryStateManager()
	sunk := &recorder[int]{}
	exceptions := &recorder[error]{}
	succeeded := &recorder[string]{}

	f, err := NewBuilder("job", []string{"a"}).
		WithStateManager(sm).
		WithHooks(Hooks[string]{
			Sink: func(_ context.Context, fc *Context[string]) {
				sunk.add(fc.PipeIndex())
			},
			ExceptionHandler: func(_ context.Context, _ *Context[string], err error) {
				exceptions.add(err)
			},
		}).
		OnState("s").
		Pipe("failing", func(context.Context, *Context[string]) (*Context[string], error) {
			return nil, errors.New("boom")
		}).
		Pipe("succeeding", func(_ context.Context, fc *Context[string]) (*Context[string], error) {
			succeeded.add(fc.Item())

			return fc.Set("out", "ok"), nil
		}).
		Build()
	require.NoError(t, err)

	last, err := NewOneStepRunner(f).Run(t.Context(), "s")
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, succeeded.all())
	assert.Equal(t, []int{1}, sunk.all())

	require.Len(t, exceptions.all(), 1)

	var pipeErr *PipeError
	require.ErrorAs(t, exceptions.all()[0], &pipeErr)
	assert.Equal(t, "failing", pipeErr.Pipe)
	assert.Equal(t, 0, pipeErr.PipeIndex)
	assert.EqualError(t, pipeErr.Err, "boom")

	value, ok := last.Value("out")
	require.True(t, ok)
	assert.Equal(t, "ok", value)
}

func TestOneStepRunner_RecoversPanics(t *testing.T) {
	t.Parallel()

	exceptions := &recorder[error]{}

	f, err := NewBuilder("job", []string{"a"}).
		WithStateManager(newMemoryStateManager()).
		WithHooks(Hooks[string]{
			ExceptionHandler: func(_ context.Context, _ *Context[string], err error) {
				exceptions.add(err)

				panic("handler panics are swallowed")
			},
		}).
		OnState("s").
		Pipe("panicking", func(context.Context, *Context[string]) (*Context[string], error) {
			panic("kaboom")
		}).
		Build()
	require.NoError(t, err)

	_, err = NewOneStepRunner(f).Run(t.Context(), "s")
	require.NoError(t, err)

	require.Len(t, exceptions.all(), 1)
	assert.ErrorIs(t, exceptions.all()[0], ErrPipePanic)
}

func TestOneStepRunner_ErrorStrategies(t *testing.T) {
	t.Parallel()

	failing := func(context.Context, *Context[string]) (*Context[string], error) {
		return nil, errors.New("boom")
	}

	t.Run("abort", func(t *testing.T) {
		t.Parallel()

		trace := &recorder[string]{}

		f, err := NewBuilder("job", []string{"a", "b"}).
			WithStateManager(newMemoryStateManager()).
			WithErrorStrategy(AbortOnError[string]()).
			OnState("s").
			Pipe("failing", failing).
			Pipe("after", tracingPipe(trace, 1)).
			Build()
		require.NoError(t, err)

		_, err = NewOneStepRunner(f).Run(t.Context(), "s")
		require.Error(t, err)
		assert.True(t, IsPipeError(err))
		assert.Empty(t, trace.all())
	})

	t.Run("record", func(t *testing.T) {
		t.Parallel()

		f, err := NewBuilder("job", []string{"a"}).
			WithStateManager(newMemoryStateManager()).
			WithErrorStrategy(RecordError[string]()).
			OnState("s").
			Pipe("failing", failing).
			Build()
		require.NoError(t, err)

		last, err := NewOneStepRunner(f).Run(t.Context(), "s")
		require.NoError(t, err)

		arg, ok := last.Find(NamedOfType[string](ArgError, ArgAlt))
		require.True(t, ok)
		assert.Contains(t, arg.Value, "boom")
		assert.Empty(t, last.WithoutEphemeralArgs().History(ArgError))
	})
}

func TestOneStepRunner_PreventFlags(t *testing.T) {
	t.Parallel()

	sm := newMemoryStateManager()
	sunk := &recorder[string]{}

	f, err := NewBuilder("job", []string{"a"}).
		WithStateManager(sm).
		WithMetadata(MetaPreventSink, true).
		WithMetadata(MetaPreventStateUpdate, true).
		WithHooks(Hooks[string]{
			Sink: func(_ context.Context, fc *Context[string]) { sunk.add(fc.Item()) },
		}).
		OnState("s").Pipe("p", identity[string]).
		Build()
	require.NoError(t, err)

	_, err = NewOneStepRunner(f).Run(t.Context(), "s")
	require.NoError(t, err)

	assert.Empty(t, sunk.all())
	// only the item advance is persisted
	assert.Equal(t, []checkpoint{{1, 0, "s"}}, sm.saves)
}

func TestOneStepRunner_ConditionSkipsPipe(t *testing.T) {
	t.Parallel()

	trace := &recorder[string]{}

	f, err := NewBuilder("job", []string{"keep", "drop", "keep"}).
		WithStateManager(newMemoryStateManager()).
		WithHooks(Hooks[string]{
			AroundEachCondition: func(_ context.Context, fc *Context[string]) (*Context[string], bool) {
				return fc.Set("checked", true), fc.Item() == "keep"
			},
		}).
		OnState("s").Pipe("p", tracingPipe(trace, 0)).
		Build()
	require.NoError(t, err)

	last, err := NewOneStepRunner(f).Run(t.Context(), "s")
	require.NoError(t, err)

	assert.Equal(t, []string{"keep:0", "keep:0"}, trace.all())

	checked, ok := last.Value("checked")
	require.True(t, ok)
	assert.Equal(t, true, checked)
}

func TestOneStepRunner_HooksShapeTheContext(t *testing.T) {
	t.Parallel()

	iterations := &recorder[int]{}

	f, err := NewBuilder("job", []string{"a", "b"}).
		WithStateManager(newMemoryStateManager()).
		WithMetadata(MetaExtendEnabled, true).
		WithHooks(Hooks[string]{
			Extend: func(_ context.Context, fc *Context[string]) *Context[string] {
				return fc.Set("extended", true)
			},
			Bootstrap: func(_ context.Context, fc *Context[string]) *Context[string] {
				return fc.Set("bootstrapped", fc.Item())
			},
			Refresh: func(_ context.Context, fc *Context[string]) string {
				return fc.Item() + "!"
			},
		}).
		OnState("s").
		Pipe("p", func(_ context.Context, fc *Context[string]) (*Context[string], error) {
			iterations.add(fc.Iteration())

			return fc.Set("seen", fc.Item()), nil
		}).
		Build()
	require.NoError(t, err)

	last, err := NewOneStepRunner(f).Run(t.Context(), "s")
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, iterations.all())

	for name, want := range map[string]any{"extended": true, "bootstrapped": "a", "seen": "b!"} {
		got, ok := last.Value(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
}

func TestOneStepRunner_AroundEachStateCanSkip(t *testing.T) {
	t.Parallel()

	trace := &recorder[string]{}

	f, err := NewBuilder("job", []string{"a"}).
		WithStateManager(newMemoryStateManager()).
		WithHooks(Hooks[string]{
			AroundEachState: func(context.Context, *Context[string], func(context.Context) error) (bool, error) {
				return false, nil
			},
		}).
		OnState("s").Pipe("p", tracingPipe(trace, 0)).
		Build()
	require.NoError(t, err)

	_, err = NewOneStepRunner(f).Run(t.Context(), "s")
	require.NoError(t, err)
	assert.Empty(t, trace.all())
}

func TestOneStepRunner_CheckpointFailureAborts(t *testing.T) {
	t.Parallel()

	sm := newMemoryStateManager()
	sm.saveErr = errors.New("disk full")

	trace := &recorder[string]{}

	f, err := NewBuilder("job", []string{"a", "b"}).
		WithStateManager(sm).
		OnState("s").Pipe("p", tracingPipe(trace, 0)).
		Build()
	require.NoError(t, err)

	_, err = NewOneStepRunner(f).Run(t.Context(), "s")
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, []string{"a:0"}, trace.all())
}

func TestOneStepRunner_UnknownState(t *testing.T) {
	t.Parallel()

	f, err := NewBuilder("job", []string{"a"}).
		WithStateManager(newMemoryStateManager()).
		OnState("s").Pipe("p", identity[string]).
		Build()
	require.NoError(t, err)

	_, err = NewOneStepRunner(f).Run(t.Context(), "missing")
	require.ErrorIs(t, err, ErrStateNotFound)
}

func TestOneStepRunner_ObserverEvents(t *testing.T) {
	t.Parallel()

	events := &recorder[EventKind]{}

	f, err := NewBuilder("job", []string{"a"}).
		WithStateManager(newMemoryStateManager()).
		OnState("s").
		Pipe("failing", func(context.Context, *Context[string]) (*Context[string], error) {
			return nil, errors.New("boom")
		}).
		Build()
	require.NoError(t, err)

	observer := func(_ context.Context, event Event) {
		assert.Equal(t, "job", event.FlowID)
		events.add(event.Kind)
	}

	_, err = NewOneStepRunner(f, WithObserver[string](observer)).Run(t.Context(), "s")
	require.NoError(t, err)

	assert.Equal(t, []EventKind{EventStateStarted, EventPipeFailed, EventStateCompleted}, events.all())
}

func TestOneStepRunner_ArgumentHistoryStaysBounded(t *testing.T) {
	t.Parallel()

	source := make([]int, 300)
	for i := range source {
		source[i] = i
	}

	f, err := NewBuilder("job", source).
		WithStateManager(newMemoryStateManager()).
		OnState("s").
		Pipe("count", func(_ context.Context, fc *Context[int]) (*Context[int], error) {
			return fc.Set("text", fc.Iteration()), nil
		}).
		Build()
	require.NoError(t, err)

	fc, err := NewOneStepRunner(f).Run(t.Context(), "s")
	require.NoError(t, err)

	history := fc.History("text")
	require.Len(t, history, 3)
	assert.Equal(t, len(source), history[0].Value)
	assert.Equal(t, len(source)-1, history[1].Value)
	assert.True(t, history[2].IsEmpty())
	assert.LessOrEqual(t, len(fc.Arguments()), 4)
}

func TestOneStepRunner_MissingWindowIsFatal(t *testing.T) {
	t.Parallel()

	moveTo := func(state State) PipeFunc[string] {
		return func(_ context.Context, fc *Context[string]) (*Context[string], error) {
			return fc.WithState(state), nil
		}
	}

	f, err := NewBuilder("job", []string{"a", "b"}).
		WithStateManager(newMemoryStateManager()).
		OnState("s1").
		Pipe("q", moveTo("s2")).
		OnState("s2").
		Pipe("r", moveTo("s3")).
		Window(NewWindowedPipe("w", Tumbling{Length: 5}, Count[string]())).
		OnState("s3").
		Pipe("p", identity[string]).
		Build()
	require.NoError(t, err)

	_, err = NewOneStepRunner(f).Run(t.Context(), "s1")
	require.ErrorIs(t, err, ErrWindowNotFound)
}
