package validate

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidProperty marks a property whose name or shape cannot be generated.
	ErrInvalidProperty = errors.New("invalid property")
	// ErrInvalidDeclaration marks a malformed search or rpc declaration.
	ErrInvalidDeclaration = errors.New("invalid declaration")
	// ErrInvalidSchema marks a fragment that is not a valid Draft-4 schema.
	ErrInvalidSchema = errors.New("invalid schema")
)

// PropertyError describes one recoverable defect. Kind is one of the
// sentinels above and drives errors.Is.
type PropertyError struct {
	Property string
	Message  string
	Kind     error
	Cause    error
}

func (e *PropertyError) Error() string {
	msg := e.Message
	if e.Property != "" {
		msg = fmt.Sprintf("%s -- %s", e.Property, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *PropertyError) Unwrap() error { return e.Cause }

func (e *PropertyError) Is(target error) bool {
	if e.Kind == nil {
		return target == ErrInvalidProperty
	}
	return target == e.Kind
}

func propertyErr(name, format string, args ...any) error {
	return &PropertyError{Property: name, Message: fmt.Sprintf(format, args...), Kind: ErrInvalidProperty}
}

func declarationErr(name, format string, args ...any) error {
	return &PropertyError{Property: name, Message: fmt.Sprintf(format, args...), Kind: ErrInvalidDeclaration}
}
