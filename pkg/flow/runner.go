package flow

import (
	"context"
	"fmt"
	"log/slog"
)

// RunnerOption configures a runner.
type RunnerOption[T any] func(*runnerOptions[T])

type runnerOptions[T any] struct {
	seed     *Context[T]
	observer Observer
	measure  MeasureFunc
	chunk    int
	resume   State
	full     bool
}

// WithSeed starts the run from fc instead of a fresh context.
func WithSeed[T any](fc *Context[T]) RunnerOption[T] {
	return func(o *runnerOptions[T]) {
		o.seed = fc
	}
}

// WithObserver registers an observer for runner events.
func WithObserver[T any](observer Observer) RunnerOption[T] {
	return func(o *runnerOptions[T]) {
		o.observer = observer
	}
}

func applyOptions[T any](opts []RunnerOption[T]) runnerOptions[T] {
	var o runnerOptions[T]

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// OneStepRunner executes a single state of a flow over every item, resuming from the
// persisted checkpoint.
type OneStepRunner[T any] struct {
	flow     *Flow[T]
	hooks    Hooks[T]
	logger   *slog.Logger
	seed     *Context[T]
	observer Observer
}

// NewOneStepRunner creates a runner for f.
func NewOneStepRunner[T any](f *Flow[T], opts ...RunnerOption[T]) *OneStepRunner[T] {
	o := applyOptions(opts)

	return &OneStepRunner[T]{
		flow:     f,
		hooks:    f.hooks.withDefaults(),
		logger:   f.logger.With("module", "flow_runner", "flow_id", f.id),
		seed:     o.seed,
		observer: o.observer,
	}
}

// Run executes state from its checkpoint to the end of the source and returns the last
// context. Checkpoint persistence errors abort the run.
func (r *OneStepRunner[T]) Run(ctx context.Context, state State) (*Context[T], error) {
	seed := r.seedContext(state)

	var result *Context[T]

	ran, err := r.hooks.AroundEachState(ctx, seed, func(ctx context.Context) error {
		run := &stateRun[T]{
			runner: r,
			state:  state,
			meta:   r.flow.Metadata(),
			buffer: NewWindowBuffer[T](),
			logger: r.logger.With("state", state),
		}

		out, err := run.execute(ctx, seed)
		result = out

		return err
	})
	if result == nil {
		result = seed
	}

	if err != nil {
		return result, err
	}

	if !ran {
		r.logger.InfoContext(ctx, "State skipped by around-each-state hook", "state", state)
	}

	return result, nil
}

func (r *OneStepRunner[T]) seedContext(state State) *Context[T] {
	if r.seed == nil {
		var zero T

		return NewContext(zero, state, r.flow.metadata).WithFlow(r.flow)
	}

	seed := r.seed.WithState(state).WithFlow(r.flow)
	for key, value := range r.flow.metadata {
		seed = seed.WithMetadata(key, value)
	}

	return seed
}

// stateRun holds what one Run invocation owns: the window buffer and the logger.
type stateRun[T any] struct {
	runner *OneStepRunner[T]
	state  State
	meta   Metadata
	buffer *WindowBuffer[T]
	logger *slog.Logger
}

func (s *stateRun[T]) flow() *Flow[T] { return s.runner.flow }

func (s *stateRun[T]) hooks() Hooks[T] { return s.runner.hooks }

func (s *stateRun[T]) emit(ctx context.Context, event Event) {
	event.FlowID = s.flow().id
	if event.State == "" {
		event.State = s.state
	}

	s.runner.observer.emit(ctx, event)
}

func (s *stateRun[T]) execute(ctx context.Context, seed *Context[T]) (*Context[T], error) {
	if s.flow().StateIndex(s.state) < 0 {
		return seed, fmt.Errorf("%w: %s", ErrStateNotFound, s.state)
	}

	itemIndex, pipeIndex, done, err := s.resolveCheckpoint(ctx)
	if err != nil {
		return seed, err
	}

	if done {
		s.logger.InfoContext(ctx, "State already completed, skipping")
		s.emit(ctx, Event{Kind: EventStateSkipped})

		return seed, nil
	}

	s.logger.InfoContext(ctx, "Starting state", "item_index", itemIndex, "pipe_index", pipeIndex, "items", s.flow().Len())
	s.emit(ctx, Event{Kind: EventStateStarted, ItemIndex: itemIndex, PipeIndex: pipeIndex})

	current := seed
	if current.Flag(MetaExtendEnabled) {
		current = orSame(s.hooks().Extend(ctx, current), current)
	}

	item, _ := s.flow().Item(itemIndex)
	current = orSame(s.hooks().Bootstrap(ctx, current.WithItem(item)), current)

	for i := itemIndex; i < s.flow().Len(); i++ {
		err := ctx.Err()
		if err != nil {
			return current, err
		}

		src, _ := s.flow().Item(i)
		current = current.WithItem(src)
		current = current.WithItem(s.hooks().Refresh(ctx, current))
		current = current.Replace(Named[T](ArgIteration), NewArgument(ArgIteration, i+1))

		pipes, ok := s.flow().Pipes(current.State())
		if !ok {
			return current, fmt.Errorf("%w: %s", ErrStateNotFound, current.State())
		}

		start := 0
		if i == itemIndex {
			start = pipeIndex
		}

		next, advance, err := s.processPipes(ctx, current, i, start, pipes)
		current = next

		if err != nil {
			return current, err
		}

		if advance {
			err := s.saveState(ctx, i+1, 0, s.state)
			if err != nil {
				return current, err
			}
		}
	}

	current, err = s.flush(ctx, current)
	if err != nil {
		return current, err
	}

	next, hasNext := s.flow().NextState(s.state)
	if hasNext {
		err := s.saveState(ctx, 0, 0, next)
		if err != nil {
			return current, err
		}
	}

	s.logger.InfoContext(ctx, "State completed", "next_state", next)
	s.emit(ctx, Event{Kind: EventStateCompleted, NextState: next, ItemIndex: s.flow().Len()})

	return current, nil
}

// resolveCheckpoint returns where to resume. done is true when the checkpoint already
// moved past this state.
func (s *stateRun[T]) resolveCheckpoint(ctx context.Context) (int, int, bool, error) {
	sm := s.flow().stateManager

	last, err := sm.LastState(ctx, s.meta)
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to load checkpoint state: %w", err)
	}

	if last == "" {
		return 0, 0, false, nil
	}

	if last != s.state {
		done := s.flow().StateIndex(last) > s.flow().StateIndex(s.state)

		return 0, 0, done, nil
	}

	itemIndex, err := sm.LastProcessedItemIndex(ctx, s.meta)
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to load checkpoint item index: %w", err)
	}

	pipeIndex, err := sm.LastProcessorIndex(ctx, s.meta)
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to load checkpoint pipe index: %w", err)
	}

	return itemIndex, pipeIndex, false, nil
}

// processPipes runs pipes[start:] on fc. advance is false when the item was absorbed by
// a window that has not triggered yet.
func (s *stateRun[T]) processPipes(ctx context.Context, fc *Context[T], itemIndex, start int, pipes []Pipe[T]) (*Context[T], bool, error) {
	current := fc

	for j := start; j < len(pipes); j++ {
		pipe := pipes[j]

		if !pipe.IsWindowed() {
			next, err := s.processSinglePipe(ctx, current, itemIndex, j, pipe.Name, pipe.Func)
			if err != nil {
				return next, false, err
			}

			current = next

			continue
		}

		wp := pipe.Windowed
		buffered := s.buffer.Add(wp.ID, current.WithPipeIndex(j))

		if !wp.ShouldTrigger(buffered) {
			s.logger.DebugContext(ctx, "Context buffered", "window_id", wp.ID, "buffered", len(buffered), "size", wp.Window.Size())

			if wp.ShouldUpdateState(buffered) && !current.Flag(MetaPreventStateUpdate) {
				err := s.saveState(ctx, itemIndex, j, s.state)
				if err != nil {
					return current, false, err
				}
			}

			return current, false, nil
		}

		s.buffer.Set(wp.ID, wp.evict(buffered))
		s.buffer.Triggered(wp.ID)
		s.logger.DebugContext(ctx, "Window triggered", "window_id", wp.ID, "buffered", len(buffered), "remaining", s.buffer.Len(wp.ID))
		s.emit(ctx, Event{Kind: EventWindowTriggered, WindowID: wp.ID, ItemIndex: itemIndex, PipeIndex: j, Count: len(buffered)})

		next, err := s.processSinglePipe(ctx, current, itemIndex, j, wp.ID, aggregateFunc(wp, buffered))
		if err != nil {
			return next, false, err
		}

		current = next
	}

	return current, true, nil
}

// processSinglePipe runs one pipe through the condition and around-each hooks, then
// sinks the result and checkpoints past the pipe.
func (s *stateRun[T]) processSinglePipe(ctx context.Context, fc *Context[T], itemIndex, pipeIndex int, name string, fn PipeFunc[T]) (*Context[T], error) {
	logger := s.logger.With("pipe", name, "item_index", itemIndex, "pipe_index", pipeIndex)
	fc = fc.WithPipeIndex(pipeIndex)

	candidate, accepted := s.hooks().AroundEachCondition(ctx, fc)
	candidate = orSame(candidate, fc)

	if !accepted {
		logger.DebugContext(ctx, "Pipe condition rejected, skipping")

		return candidate, nil
	}

	logger.DebugContext(ctx, "Executing pipe")

	out, err := s.invoke(ctx, candidate, fn)
	if err != nil {
		pipeErr := &PipeError{State: s.state, Pipe: name, ItemIndex: itemIndex, PipeIndex: pipeIndex, Err: err}

		return s.fail(ctx, logger, candidate, pipeErr)
	}

	out = orSame(out, candidate)

	if !out.Flag(MetaPreventSink) {
		s.hooks().Sink(ctx, out)
	}

	if !out.Flag(MetaPreventStateUpdate) {
		err := s.saveState(ctx, itemIndex, pipeIndex+1, s.state)
		if err != nil {
			return out, err
		}
	}

	return out, nil
}

func (s *stateRun[T]) invoke(ctx context.Context, fc *Context[T], fn PipeFunc[T]) (out *Context[T], err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrPipePanic, rec)
		}
	}()

	return s.hooks().AroundEach(ctx, fc, fn)
}

// fail routes a pipe error to the exception hook and the error strategy.
func (s *stateRun[T]) fail(ctx context.Context, logger *slog.Logger, fc *Context[T], pipeErr *PipeError) (*Context[T], error) {
	logger.WarnContext(ctx, "Pipe failed", "error", pipeErr.Err)
	s.emit(ctx, Event{Kind: EventPipeFailed, Pipe: pipeErr.Pipe, ItemIndex: pipeErr.ItemIndex, PipeIndex: pipeErr.PipeIndex, Err: pipeErr})

	s.handleException(ctx, logger, fc, pipeErr)

	next, err := s.flow().errorStrategy(ctx, fc, pipeErr)
	if err != nil {
		logger.ErrorContext(ctx, "Error strategy aborted the run", "error", err)

		return orSame(next, fc), err
	}

	return orSame(next, fc), nil
}

func (s *stateRun[T]) handleException(ctx context.Context, logger *slog.Logger, fc *Context[T], err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorContext(ctx, "Exception handler panicked", "panic", rec)
		}
	}()

	s.hooks().ExceptionHandler(ctx, fc, err)
}

// flush aggregates windows still holding contexts after the last item.
func (s *stateRun[T]) flush(ctx context.Context, fc *Context[T]) (*Context[T], error) {
	current := fc

	for _, windowID := range s.buffer.Pending() {
		pipeIndex, wp, ok := s.findWindow(current, windowID)
		if !ok {
			return current, fmt.Errorf("%w: %s in state %s", ErrWindowNotFound, windowID, s.state)
		}

		buffered := s.buffer.Get(windowID)
		s.buffer.Clear(windowID)

		s.logger.DebugContext(ctx, "Flushing window", "window_id", windowID, "buffered", len(buffered))
		s.emit(ctx, Event{Kind: EventWindowFlushed, WindowID: windowID, ItemIndex: s.flow().Len(), PipeIndex: pipeIndex, Count: len(buffered)})

		next, err := s.processSinglePipe(ctx, current, s.flow().Len(), pipeIndex, windowID, aggregateFunc(wp, buffered))
		if err != nil {
			return next, err
		}

		current = next
	}

	return current, nil
}

func (s *stateRun[T]) findWindow(fc *Context[T], windowID string) (int, *WindowedPipe[T], bool) {
	for _, state := range []State{s.state, fc.State()} {
		pipes, _ := s.flow().Pipes(state)

		for j, pipe := range pipes {
			if pipe.IsWindowed() && pipe.Windowed.ID == windowID {
				return j, pipe.Windowed, true
			}
		}
	}

	return 0, nil, false
}

func (s *stateRun[T]) saveState(ctx context.Context, itemIndex, pipeIndex int, state State) error {
	err := s.flow().stateManager.SaveState(ctx, s.meta, itemIndex, pipeIndex, state)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint (%d, %d, %s): %w", itemIndex, pipeIndex, state, err)
	}

	return nil
}

// aggregateFunc turns a window into a pipe function producing the aggregated context.
func aggregateFunc[T any](wp *WindowedPipe[T], buffered []*Context[T]) PipeFunc[T] {
	return func(ctx context.Context, _ *Context[T]) (*Context[T], error) {
		aggregated, err := wp.Aggregate(buffered)
		if err != nil {
			return nil, fmt.Errorf("aggregation %s failed: %w", wp.Aggregation.Name(), err)
		}

		if wp.Func == nil {
			return aggregated, nil
		}

		return wp.Func(ctx, aggregated)
	}
}

func orSame[T any](fc, fallback *Context[T]) *Context[T] {
	if fc == nil {
		return fallback
	}

	return fc
}
