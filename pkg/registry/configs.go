package registry

import "time"

// Default client settings applied by NewClient when unset.
const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxAttempts = 3
	DefaultBackoff     = 200 * time.Millisecond
	DefaultMaxBackoff  = 2 * time.Second
)

// RetryPolicy bounds the retry behavior for transient registry
// failures. Deterministic rejections (invalid or incompatible schemas,
// unknown subjects/versions/ids) are never retried regardless of policy.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int

	// Backoff is the delay before the first retry; it doubles per attempt
	Backoff time.Duration

	// MaxBackoff caps the per-retry delay
	MaxBackoff time.Duration
}

// Config holds configuration for the schema registry client.
type Config struct {
	// URL is the schema registry endpoint (e.g. "http://localhost:8081")
	URL string

	// Username for basic auth (optional)
	Username string

	// Password for basic auth (optional)
	Password string

	// Timeout for individual HTTP requests
	Timeout time.Duration

	// Retry bounds retries of transient failures
	Retry RetryPolicy
}
