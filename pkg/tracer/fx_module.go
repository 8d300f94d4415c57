package tracer

import (
	"context"

	"go.uber.org/fx"
)

// FXModule provides the Tracer and registers its shutdown hook.
//
// A tracer.Config instance must be available in the container.
var FXModule = fx.Module("tracer",
	fx.Provide(
		NewClient,
	),
	fx.Invoke(RegisterTracerLifecycle),
)

// RegisterTracerLifecycle shuts the tracer provider down on application
// stop so buffered spans get flushed to the exporter.
func RegisterTracerLifecycle(lc fx.Lifecycle, tracer *Tracer) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			tracer.logger.Info("shutting down tracer...", nil, nil)
			if tracer.provider == nil {
				tracer.logger.Warn("tracer provider was nil during shutdown", nil, nil)
				return nil
			}
			return tracer.provider.Shutdown(ctx)
		},
	})
}
