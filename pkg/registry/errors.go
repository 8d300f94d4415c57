package registry

import "errors"

// Error taxonomy for schema registry operations. Transport failures and
// server errors are transient and retryable; everything else is a
// deterministic rejection and is never retried.
var (
	// ErrRegistryUnavailable is returned when the registry cannot be
	// reached, times out, or answers with a server error. Transient.
	ErrRegistryUnavailable = errors.New("schema registry unavailable")

	// ErrInvalidSchema is returned when the registry rejects a schema
	// document as unparseable or structurally invalid.
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrIncompatibleSchema is returned when registration is rejected
	// under the subject's active compatibility mode.
	ErrIncompatibleSchema = errors.New("incompatible schema")

	// ErrUnknownSchemaID is returned when no schema was ever registered
	// under the requested id.
	ErrUnknownSchemaID = errors.New("unknown schema id")

	// ErrUnknownSubject is returned when the subject does not exist.
	ErrUnknownSubject = errors.New("unknown subject")

	// ErrUnknownVersion is returned when the subject exists but the
	// requested version does not.
	ErrUnknownVersion = errors.New("unknown version")
)

// Confluent REST error codes, carried in the JSON error body.
const (
	codeSubjectNotFound = 40401
	codeVersionNotFound = 40402
	codeSchemaNotFound  = 40403
	codeInvalidSchema   = 42201
)

// IsRetryable reports whether an operation failed transiently and may
// be retried. Schema validation and lookup failures are deterministic
// and always return false.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRegistryUnavailable)
}
