package resolver

import (
	"errors"
)

// Sentinel errors for use with errors.Is.
var (
	// ErrReference indicates a $ref could not be followed to a concrete schema.
	ErrReference = errors.New("reference error")

	// ErrCircularReference indicates a $ref chain that does not terminate.
	ErrCircularReference = errors.New("circular reference")

	// ErrPathTraversal indicates a $ref that points outside the base directory.
	ErrPathTraversal = errors.New("path traversal detected")
)

// ReferenceError represents a failure to resolve a $ref.
type ReferenceError struct {
	// Ref is the reference string that failed to resolve
	Ref string
	// Scope is the document the reference was found in; empty for the
	// resource definition itself
	Scope string
	// IsCircular is true when the chain revisits a pointer or exceeds the hop limit
	IsCircular bool
	// IsPathTraversal is true when the pointer is absolute or escapes the base directory
	IsPathTraversal bool
	Message         string
	Cause           error
}

// Error returns a human-readable error message.
func (e *ReferenceError) Error() string {
	msg := "reference error"
	if e.IsCircular {
		msg = "circular reference"
	} else if e.IsPathTraversal {
		msg = "invalid refname"
	}
	if e.Ref != "" {
		msg += ": " + e.Ref
	}
	if e.Scope != "" {
		msg += " (in " + e.Scope + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *ReferenceError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *ReferenceError) Is(target error) bool {
	switch target {
	case ErrReference:
		return true
	case ErrCircularReference:
		return e.IsCircular
	case ErrPathTraversal:
		return e.IsPathTraversal
	}
	return false
}
