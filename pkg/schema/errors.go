package schema

import "errors"

// Common schema errors returned by this package.
var (
	// ErrInvalidSchema is returned when a schema document fails to parse
	// or violates a structural invariant (e.g. duplicate field names).
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrUnknownType is returned when a field declares a type this
	// package does not support.
	ErrUnknownType = errors.New("unknown field type")
)
