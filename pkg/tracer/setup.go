package tracer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/streamhouse/eventflow/pkg/logger"
)

// Tracer wraps an OpenTelemetry TracerProvider with a small API for the
// operations the pipeline needs: starting spans around encode, publish
// and consume, recording failures on them, and carrying trace context
// through Kafka message headers so a consumed event continues the trace
// that produced it.
//
// Tracer is safe for concurrent use.
type Tracer struct {
	provider *trace.TracerProvider
	logger   *logger.Logger
}

// NewClient builds a Tracer from cfg and installs it as the global
// OpenTelemetry provider with W3C trace-context propagation.
//
// If export is enabled and the OTLP exporter cannot be constructed the
// call logs a fatal error; tracing is part of the pipeline's ambient
// wiring and a half-configured provider is worse than a crash at boot.
func NewClient(cfg Config, log *logger.Logger) *Tracer {
	var options []trace.TracerProviderOption

	if cfg.EnableExport {
		client := otlptracehttp.NewClient()
		exporter, err := otlptrace.New(context.Background(), client)
		if err != nil {
			log.Fatal("cannot initiate trace exporter", err, nil)
			return nil
		}
		options = append(options, trace.WithBatcher(exporter))
	}

	options = append(options, trace.WithResource(resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.DeploymentEnvironment(cfg.AppEnv),
		attribute.String("environment", cfg.AppEnv),
	)))

	tp := trace.NewTracerProvider(options...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return &Tracer{provider: tp, logger: log}
}
