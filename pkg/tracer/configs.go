package tracer

// Config holds the settings for the OpenTelemetry tracer provider.
//
// When EnableExport is true an OTLP HTTP exporter is attached; its
// endpoint is taken from the standard OTEL_EXPORTER_OTLP_* environment
// variables. With export disabled spans are still created so that trace
// context keeps propagating through Kafka headers, they are just never
// shipped anywhere.
type Config struct {
	// ServiceName identifies this process in exported traces.
	ServiceName string
	// AppEnv is the deployment environment tag (e.g. "production").
	AppEnv string
	// EnableExport attaches the OTLP HTTP exporter when true.
	EnableExport bool
}
