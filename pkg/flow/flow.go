// Package flow implements a resumable execution engine that drives an ordered source of
// items through named states, each state being an ordered list of pipes applied to an
// immutable, versioned Context.
//
// States run in registration order. Progress is checkpointed through a StateManager as
// (item index, pipe index, state) so an interrupted run resumes exactly where it stopped.
// Windowed pipes buffer contexts across items and reduce them with an Aggregation, and
// the BatchFlowRunner splits the source in content-hashed chunks that are skipped once
// processed.
package flow

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// Flow is an immutable blueprint: source items, the state graph and the hooks.
type Flow[T any] struct {
	id            string
	source        []T
	states        []State
	pipes         map[State][]Pipe[T]
	hooks         Hooks[T]
	errorStrategy ErrorStrategy[T]
	stateManager  StateManager
	metadata      Metadata
	logger        *slog.Logger
}

func (f *Flow[T]) ID() string { return f.id }
func (f *Flow[T]) Hooks() Hooks[T] { return f.hooks }
func (f *Flow[T]) StateManager() StateManager { return f.stateManager }
func (f *Flow[T]) Logger() *slog.Logger { return f.logger }
func (f *Flow[T]) ErrorStrategy() ErrorStrategy[T] { return f.errorStrategy }

// Source returns a copy of the source items.
func (f *Flow[T]) Source() []T {
	return slices.Clone(f.source)
}

// Len returns the number of source items.
func (f *Flow[T]) Len() int {
	return len(f.source)
}

// Item returns the source item at index.
func (f *Flow[T]) Item(index int) (T, bool) {
	if index < 0 || index >= len(f.source) {
		var zero T

		return zero, false
	}

	return f.source[index], true
}

// States returns the states in registration order.
func (f *Flow[T]) States() []State {
	return slices.Clone(f.states)
}

// Metadata returns a copy of the flow metadata.
func (f *Flow[T]) Metadata() Metadata {
	return f.metadata.Clone()
}

// Pipes returns the ordered pipes of state.
func (f *Flow[T]) Pipes(state State) ([]Pipe[T], bool) {
	pipes, ok := f.pipes[state]
	if !ok {
		return nil, false
	}

	return slices.Clone(pipes), true
}

// InitState returns the first registered state.
func (f *Flow[T]) InitState() (State, bool) {
	if len(f.states) == 0 {
		return "", false
	}

	return f.states[0], true
}

// IsInitState reports whether state is the first registered state.
func (f *Flow[T]) IsInitState(state State) bool {
	init, ok := f.InitState()

	return ok && init == state
}

// NextState returns the state registered right after state.
func (f *Flow[T]) NextState(state State) (State, bool) {
	pos := slices.Index(f.states, state)
	if pos < 0 || pos == len(f.states)-1 {
		return "", false
	}

	return f.states[pos+1], true
}

// StateIndex returns the registration position of state, -1 when unknown.
func (f *Flow[T]) StateIndex(state State) int {
	return slices.Index(f.states, state)
}

// StatesFrom returns state and every state registered after it.
func (f *Flow[T]) StatesFrom(state State) []State {
	pos := slices.Index(f.states, state)
	if pos < 0 {
		return nil
	}

	return slices.Clone(f.states[pos:])
}

// Copy returns a flow that shares nothing mutable with f.
func (f *Flow[T]) Copy() *Flow[T] {
	out := *f
	out.source = slices.Clone(f.source)
	out.states = slices.Clone(f.states)
	out.metadata = f.metadata.Clone()

	out.pipes = make(map[State][]Pipe[T], len(f.pipes))
	for state, pipes := range f.pipes {
		out.pipes[state] = slices.Clone(pipes)
	}

	return &out
}

// WithSource returns a copy of the flow over items.
func (f *Flow[T]) WithSource(items []T) *Flow[T] {
	out := f.Copy()
	out.source = slices.Clone(items)

	return out
}

// WithMetadata returns a copy of the flow with a metadata entry set.
func (f *Flow[T]) WithMetadata(key string, value any) *Flow[T] {
	out := f.Copy()
	out.metadata[key] = value

	return out
}

// WithStateManager returns a copy of the flow persisting through sm.
func (f *Flow[T]) WithStateManager(sm StateManager) *Flow[T] {
	out := f.Copy()
	out.stateManager = sm

	return out
}

// Builder assembles a Flow.
type Builder[T any] struct {
	flow *Flow[T]
	errs []error
}

// NewBuilder starts a flow named id over source.
func NewBuilder[T any](id string, source []T) *Builder[T] {
	return &Builder[T]{
		flow: &Flow[T]{
			id:       id,
			source:   slices.Clone(source),
			pipes:    make(map[State][]Pipe[T]),
			metadata: Metadata{MetaFlowID: id},
			logger:   slog.Default(),
		},
	}
}

func (b *Builder[T]) WithStateManager(sm StateManager) *Builder[T] {
	b.flow.stateManager = sm

	return b
}

func (b *Builder[T]) WithHooks(hooks Hooks[T]) *Builder[T] {
	b.flow.hooks = hooks

	return b
}

func (b *Builder[T]) WithErrorStrategy(strategy ErrorStrategy[T]) *Builder[T] {
	b.flow.errorStrategy = strategy

	return b
}

func (b *Builder[T]) WithLogger(logger *slog.Logger) *Builder[T] {
	if logger != nil {
		b.flow.logger = logger
	}

	return b
}

func (b *Builder[T]) WithMetadata(key string, value any) *Builder[T] {
	b.flow.metadata[key] = value

	return b
}

// OnState starts associating pipes with state. Calling it again for a known state
// appends to that state without changing its position.
func (b *Builder[T]) OnState(state State) *StateBuilder[T] {
	if _, ok := b.flow.pipes[state]; !ok {
		b.flow.states = append(b.flow.states, state)
		b.flow.pipes[state] = nil
	}

	return &StateBuilder[T]{Builder: b, state: state}
}

// Build validates the definition and returns the immutable flow.
func (b *Builder[T]) Build() (*Flow[T], error) {
	f := b.flow

	errs := slices.Clone(b.errs)

	if f.id == "" {
		errs = append(errs, fmt.Errorf("%w: flow id is required", ErrInvalidFlow))
	}

	if len(f.states) == 0 {
		errs = append(errs, fmt.Errorf("%w: flow %s has no states", ErrInvalidFlow, f.id))
	}

	if f.stateManager == nil {
		errs = append(errs, ErrNoStateManager)
	}

	for _, state := range f.states {
		windowIDs := make(map[string]bool)

		for _, pipe := range f.pipes[state] {
			if !pipe.IsWindowed() {
				continue
			}

			if windowIDs[pipe.Windowed.ID] {
				errs = append(errs, fmt.Errorf("%w: duplicate window id %q in state %s", ErrInvalidFlow, pipe.Windowed.ID, state))
			}

			windowIDs[pipe.Windowed.ID] = true

			err := pipe.Windowed.Validate()
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: state %s: %w", ErrInvalidFlow, state, err))
			}
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if f.errorStrategy == nil {
		f.errorStrategy = ContinueOnError[T](f.logger)
	}

	f.hooks = f.hooks.withDefaults()

	return f.Copy(), nil
}

// StateBuilder adds pipes to one state.
type StateBuilder[T any] struct {
	*Builder[T]

	state State
}

// Pipe appends a plain pipe.
func (sb *StateBuilder[T]) Pipe(name string, fn PipeFunc[T]) *StateBuilder[T] {
	if fn == nil {
		sb.errs = append(sb.errs, fmt.Errorf("%w: pipe %q in state %s has no function", ErrInvalidFlow, name, sb.state))

		return sb
	}

	sb.flow.pipes[sb.state] = append(sb.flow.pipes[sb.state], Pipe[T]{Name: name, Func: fn})

	return sb
}

// Window appends a windowed pipe.
func (sb *StateBuilder[T]) Window(wp *WindowedPipe[T]) *StateBuilder[T] {
	if wp == nil {
		sb.errs = append(sb.errs, fmt.Errorf("%w: nil windowed pipe in state %s", ErrInvalidFlow, sb.state))

		return sb
	}

	sb.flow.pipes[sb.state] = append(sb.flow.pipes[sb.state], Pipe[T]{Name: wp.ID, Windowed: wp})

	return sb
}
