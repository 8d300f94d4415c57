package metrics

// DefaultAddress is the listen address used when none is configured.
const DefaultAddress = ":9090"

// Config defines the configuration for the Prometheus metrics server.
type Config struct {
	// Address is the network address the metrics HTTP server listens
	// on, e.g. ":9090" or "127.0.0.1:9100".
	Address string

	// EnableDefaultCollectors controls whether the built-in Go runtime
	// and process collectors are registered.
	EnableDefaultCollectors bool

	// ServiceName is added as a "service" label on every metric.
	ServiceName string
}
