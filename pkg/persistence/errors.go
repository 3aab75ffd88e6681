package persistence

import (
	"errors"
	"fmt"
)

// Standard error types all implementations return so callers can branch
// without knowing the backend.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates an execution record was not found.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrStepNotFound indicates an execution step was not found.
	ErrStepNotFound = errors.New("execution step not found")

	// ErrToolNotFound indicates a tool was not found by the given identifier.
	ErrToolNotFound = errors.New("tool not found")

	// ErrConnectionNotFound indicates an integration connection was not found.
	ErrConnectionNotFound = errors.New("connection not found")
)

// StorageError wraps backend failures with the operation and entity id.
type StorageError struct {
	Op       string
	EntityID string
	Err      error
}

func (e *StorageError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Op, e.EntityID, e.Err)
	}

	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a storage error with context.
func NewStorageError(op, entityID string, err error) *StorageError {
	return &StorageError{Op: op, EntityID: entityID, Err: err}
}

// IsWorkflowNotFound checks if an error indicates a missing workflow.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsExecutionNotFound checks if an error indicates a missing execution.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsToolNotFound checks if an error indicates a missing tool.
func IsToolNotFound(err error) bool {
	return errors.Is(err, ErrToolNotFound)
}

// IsConnectionNotFound checks if an error indicates a missing connection.
func IsConnectionNotFound(err error) bool {
	return errors.Is(err, ErrConnectionNotFound)
}
