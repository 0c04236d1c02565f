package errors

import (
	"fmt"
	"time"
)

// OperationalError represents enhanced error information for debugging.
//
// It wraps errors with operational context including graph ID, node ID,
// and timestamp. This enables better error tracking and debugging in graph
// executions.
type OperationalError struct {
	Operation  string         // What operation was being performed
	GraphID    string         // Which graph
	NodeID     string         // Which node (if applicable)
	Timestamp  time.Time      // When error occurred
	Attributes map[string]any // Additional context (optional)
	Cause      error          // Underlying error
}

// NewOperationalError creates an OperationalError wrapping an error.
//
// Returns nil if cause is nil (no error to wrap).
//
// Example:
//
//	if err != nil {
//	    return NewOperationalError("executing node", graphID, nodeID, err)
//	}
func NewOperationalError(operation, graphID, nodeID string, cause error) *OperationalError {
	if cause == nil {
		return nil
	}

	return &OperationalError{
		Operation:  operation,
		GraphID:    graphID,
		NodeID:     nodeID,
		Timestamp:  time.Now(),
		Attributes: nil,
		Cause:      cause,
	}
}

// NewOperationalErrorWithAttrs creates an OperationalError with additional attributes.
//
// Returns nil if cause is nil (no error to wrap).
func NewOperationalErrorWithAttrs(operation, graphID, nodeID string, cause error, attrs map[string]any) *OperationalError {
	if cause == nil {
		return nil
	}

	return &OperationalError{
		Operation:  operation,
		GraphID:    graphID,
		NodeID:     nodeID,
		Timestamp:  time.Now(),
		Attributes: attrs,
		Cause:      cause,
	}
}

// Error implements the error interface.
//
// Format: "[timestamp] operation: graph={id} node={id}: {cause}"
// If node ID is empty, it's omitted from the message.
func (e *OperationalError) Error() string {
	if e == nil {
		return "<nil OperationalError>"
	}

	timestamp := e.Timestamp.Format(time.RFC3339)

	var msg string
	if e.NodeID != "" {
		msg = fmt.Sprintf("[%s] %s: graph=%s node=%s: %v",
			timestamp,
			e.Operation,
			e.GraphID,
			e.NodeID,
			e.Cause)
	} else {
		msg = fmt.Sprintf("[%s] %s: graph=%s: %v",
			timestamp,
			e.Operation,
			e.GraphID,
			e.Cause)
	}

	return msg
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationalError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
