package observability

import "time"

// OperationContext describes one completed client operation for
// observability purposes: which component performed what, against which
// resource, how long it took, and with what outcome.
type OperationContext struct {
	// Component is the package reporting the operation, e.g. "kafka" or "registry"
	Component string

	// Operation is the operation name, e.g. "publish" or "register"
	Operation string

	// Resource is the primary resource, e.g. topic or subject name
	Resource string

	// SubResource is an optional secondary resource, e.g. partition or version
	SubResource string

	// Duration is how long the operation took
	Duration time.Duration

	// Error is the operation error, nil on success
	Error error

	// Size is the payload size in bytes where applicable
	Size int64

	// Metadata carries optional component-specific details
	Metadata map[string]interface{}
}

// Observer receives operation notifications from instrumented clients.
// Implementations typically feed metrics registries or tracing systems.
// Implementations must be safe for concurrent use.
type Observer interface {
	ObserveOperation(ctx OperationContext)
}
