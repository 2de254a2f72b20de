package flow

import (
	"errors"
	"fmt"
)

var (
	// ErrStateNotFound indicates a state has no pipe list registered in the flow.
	ErrStateNotFound = errors.New("state not found")

	// ErrWindowNotFound indicates a buffered window id has no windowed pipe in the state.
	ErrWindowNotFound = errors.New("windowed pipe not found")

	// ErrEmptyWindow indicates an aggregation was asked to reduce nothing.
	ErrEmptyWindow = errors.New("window has no buffered contexts")

	// ErrNoStateManager indicates a flow was built without a state manager.
	ErrNoStateManager = errors.New("flow has no state manager")

	// ErrInvalidChunkSize indicates a batch runner was configured with a chunk size below 1.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")

	// ErrUnhashableChunk indicates a chunk could neither be hashed item by item nor serialized.
	ErrUnhashableChunk = errors.New("chunk cannot be hashed")

	// ErrPipePanic indicates a pipe function panicked.
	ErrPipePanic = errors.New("pipe panicked")

	// ErrInvalidFlow indicates a flow definition failed validation.
	ErrInvalidFlow = errors.New("invalid flow")
)

// PipeError wraps a pipe failure with its position in the flow.
type PipeError struct {
	State     State
	Pipe      string
	ItemIndex int
	PipeIndex int
	Err       error
}

func (e *PipeError) Error() string {
	return fmt.Sprintf("pipe %s (#%d) failed on item %d in state %s: %v", e.Pipe, e.PipeIndex, e.ItemIndex, e.State, e.Err)
}

func (e *PipeError) Unwrap() error {
	return e.Err
}

func (e *PipeError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsPipeError reports whether err carries a PipeError.
func IsPipeError(err error) bool {
	var pipeErr *PipeError

	return errors.As(err, &pipeErr)
}
