package producer

import "time"

const (
	// DefaultAddress is the listen address of the ingest server.
	DefaultAddress = ":8000"
	// DefaultSubject is the registry subject events are encoded under.
	DefaultSubject = "user_events-value"
	// DefaultReadHeaderTimeout bounds how long a client may take to
	// send request headers.
	DefaultReadHeaderTimeout = 5 * time.Second
	// DefaultShutdownTimeout bounds the drain of in-flight requests.
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds the settings for the HTTP ingest server.
type Config struct {
	// Address is the listen address, e.g. ":8000".
	Address string

	// Subject is the registry subject the event schema is registered
	// under and events are encoded against.
	Subject string

	// Schema is the JSON schema document for the event record.
	Schema string

	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}
