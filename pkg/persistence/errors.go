// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrDefaultWorkflowNotFound indicates no default workflow is configured.
	ErrDefaultWorkflowNotFound = errors.New("default workflow not found")

	// ErrWorkflowAlreadyExists indicates a workflow with the same identifier already exists.
	ErrWorkflowAlreadyExists = errors.New("workflow already exists")

	// ErrPausedStateNotFound indicates no suspension record matched the lookup.
	ErrPausedStateNotFound = errors.New("paused state not found")

	// ErrPausedStateConflict indicates a second pending suspension was
	// attempted for a session that already has one.
	ErrPausedStateConflict = errors.New("session already has a pending paused state")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	WorkflowID string // Workflow ID if applicable
	Err        error  // Underlying error
	Message    string // Additional context message
}

func (e *WorkflowError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for workflow %s: %s (%v)", e.Op, e.WorkflowID, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// PausedStateError wraps suspension-record errors with additional context.
type PausedStateError struct {
	Op        string // Operation being performed
	SessionID string // Session ID if applicable
	StateID   string // Record ID if applicable
	Err       error  // Underlying error
}

func (e *PausedStateError) Error() string {
	target := e.StateID
	if target == "" {
		target = fmt.Sprintf("session %s", e.SessionID)
	}

	return fmt.Sprintf("%s operation failed for paused state %s: %v", e.Op, target, e.Err)
}

func (e *PausedStateError) Unwrap() error {
	return e.Err
}

func (e *PausedStateError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsPausedStateNotFound checks if an error indicates no suspension record matched.
func IsPausedStateNotFound(err error) bool {
	return errors.Is(err, ErrPausedStateNotFound)
}
