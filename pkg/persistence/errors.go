// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrCheckpointNotFound indicates no checkpoint exists for the given key.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrInvalidKey indicates a checkpoint or job key is empty or unsafe for the backend.
	ErrInvalidKey = errors.New("invalid key")
)

// CheckpointError wraps checkpoint-related errors with additional context.
type CheckpointError struct {
	Op  string // Operation being performed (e.g., "Checkpoint", "SaveCheckpoint")
	Key string // Checkpoint or job key
	Err error  // Underlying error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("%s operation failed for key %s: %v", e.Op, e.Key, e.Err)
}

func (e *CheckpointError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for checkpoint errors.
func (e *CheckpointError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewCheckpointError creates a new checkpoint error with context.
func NewCheckpointError(op, key string, err error) *CheckpointError {
	return &CheckpointError{Op: op, Key: key, Err: err}
}

// IsCheckpointNotFound checks if an error indicates a checkpoint was not found.
func IsCheckpointNotFound(err error) bool {
	return errors.Is(err, ErrCheckpointNotFound)
}

// IsInvalidKey checks if an error indicates an unusable key.
func IsInvalidKey(err error) bool {
	return errors.Is(err, ErrInvalidKey)
}
