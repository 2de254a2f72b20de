package flow

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// WindowKind names a window policy.
type WindowKind string

const (
	WindowTumbling WindowKind = "tumbling"
	WindowSliding  WindowKind = "sliding"
	WindowSession  WindowKind = "session"
)

// Window is a count based buffering policy.
type Window interface {
	Kind() WindowKind
	// Size is the number of buffered contexts that triggers the window.
	Size() int
	// Slide is the number of oldest contexts dropped after a trigger.
	Slide() int
	// ClearAfterTrigger reports whether the whole buffer is dropped after a trigger.
	ClearAfterTrigger() bool
}

// Tumbling windows trigger every Length contexts and never overlap.
type Tumbling struct {
	Length int `json:"size" validate:"gt=0"`
}

func (w Tumbling) Kind() WindowKind { return WindowTumbling }
func (w Tumbling) Size() int { return w.Length }
func (w Tumbling) Slide() int { return w.Length }
func (w Tumbling) ClearAfterTrigger() bool { return true }

// Sliding windows trigger once Length contexts are buffered and then drop Step of them.
type Sliding struct {
	Length int `json:"size"  validate:"gt=0"`
	Step   int `json:"slide" validate:"gt=0,ltefield=Length"`
}

func (w Sliding) Kind() WindowKind { return WindowSliding }
func (w Sliding) Size() int { return w.Length }
func (w Sliding) Slide() int { return w.Step }
func (w Sliding) ClearAfterTrigger() bool { return false }

// Session windows trigger after Timeout buffered contexts. Timeout is an item count,
// there is no wall clock gap detection.
type Session struct {
	Timeout int `json:"timeout" validate:"gt=0"`
}

func (w Session) Kind() WindowKind { return WindowSession }
func (w Session) Size() int { return w.Timeout }
func (w Session) Slide() int { return 1 }
func (w Session) ClearAfterTrigger() bool { return true }

// ValidateWindow checks the window parameters.
func ValidateWindow(w Window) error {
	if w == nil {
		return fmt.Errorf("%w: window is required", ErrInvalidFlow)
	}

	err := validate.Struct(w)
	if err != nil {
		return fmt.Errorf("invalid %s window: %w", w.Kind(), err)
	}

	return nil
}

// WindowedPipe buffers contexts under ID and reduces them with Aggregation once the
// window triggers. Func, when set, runs on the aggregated context.
type WindowedPipe[T any] struct {
	ID          string
	Window      Window
	Aggregation Aggregation[T]
	Func        PipeFunc[T]
	// UpdateState opts into checkpointing while the window is still filling.
	UpdateState func(buffered []*Context[T]) bool
}

// NewWindowedPipe creates a windowed pipe.
func NewWindowedPipe[T any](id string, window Window, aggregation Aggregation[T]) *WindowedPipe[T] {
	return &WindowedPipe[T]{ID: id, Window: window, Aggregation: aggregation}
}

// Then sets the function applied to the aggregated context.
func (wp *WindowedPipe[T]) Then(fn PipeFunc[T]) *WindowedPipe[T] {
	out := *wp
	out.Func = fn

	return &out
}

// PersistPartial makes the runner checkpoint while the window fills.
func (wp *WindowedPipe[T]) PersistPartial() *WindowedPipe[T] {
	out := *wp
	out.UpdateState = func([]*Context[T]) bool { return true }

	return &out
}

func (wp *WindowedPipe[T]) Validate() error {
	if wp.ID == "" {
		return fmt.Errorf("%w: windowed pipe id is required", ErrInvalidFlow)
	}

	if wp.Aggregation.reduce == nil {
		return fmt.Errorf("%w: windowed pipe %s has no aggregation", ErrInvalidFlow, wp.ID)
	}

	return ValidateWindow(wp.Window)
}

func (wp *WindowedPipe[T]) ShouldTrigger(buffered []*Context[T]) bool {
	return len(buffered) >= wp.Window.Size()
}

func (wp *WindowedPipe[T]) ShouldClearAfterTrigger() bool {
	return wp.Window.ClearAfterTrigger()
}

func (wp *WindowedPipe[T]) ShouldUpdateState(buffered []*Context[T]) bool {
	if wp.UpdateState == nil {
		return false
	}

	return wp.UpdateState(buffered)
}

func (wp *WindowedPipe[T]) Aggregate(buffered []*Context[T]) (*Context[T], error) {
	return wp.Aggregation.Aggregate(buffered)
}

// evict applies the post trigger policy and returns what stays buffered.
func (wp *WindowedPipe[T]) evict(buffered []*Context[T]) []*Context[T] {
	if wp.ShouldClearAfterTrigger() {
		return nil
	}

	slide := wp.Window.Slide()
	if slide >= len(buffered) {
		return nil
	}

	return buffered[slide:]
}
