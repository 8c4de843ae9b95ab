// Package core provides configuration and the shared error taxonomy for SocioMind.
package core

import (
	"errors"
	"fmt"
)

// Predefined errors for common failure scenarios.
var (
	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates that a connection to the storage backend failed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrEmbeddingFailed indicates that embedding generation failed.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrInvalidInput indicates that the provided input is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageOperation indicates that a storage operation failed.
	ErrStorageOperation = errors.New("storage operation failed")

	// ErrLLMOperation indicates that an LLM operation failed.
	ErrLLMOperation = errors.New("llm operation failed")

	// ErrPlotNotFound indicates that a node references a plot that was never added.
	// This is a precondition violation on the caller's side.
	ErrPlotNotFound = errors.New("plot not found")

	// ErrSnapshotNotFound indicates that no snapshot exists for a replay request.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// SimError wraps errors with operation context.
//
// Example:
//
//	err := &SimError{
//	    Op:  "AddEvent",
//	    Err: ErrPlotNotFound,
//	}
//	// Error() returns: "sociomind: AddEvent: plot not found"
type SimError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "sociomind: <Op>: <Err>"
func (e *SimError) Error() string {
	return fmt.Sprintf("sociomind: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error so errors.Is and errors.As work through SimError.
func (e *SimError) Unwrap() error {
	return e.Err
}

// NewSimError creates a new SimError wrapping the given error.
//
// If err is nil, returns nil. This allows safe error wrapping:
//
//	if err != nil {
//	    return NewSimError("AddEvent", err)
//	}
func NewSimError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &SimError{
		Op:  op,
		Err: err,
	}
}
