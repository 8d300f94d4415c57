package producer

import (
	"context"
	"net/http"

	"go.uber.org/fx"

	"github.com/streamhouse/eventflow/pkg/codec"
	"github.com/streamhouse/eventflow/pkg/kafka"
	"github.com/streamhouse/eventflow/pkg/logger"
	"github.com/streamhouse/eventflow/pkg/observability"
	"github.com/streamhouse/eventflow/pkg/registry"
	"github.com/streamhouse/eventflow/pkg/tracer"
)

// FXModule assembles the ingest service: a wire codec backed by the
// registry client, the HTTP server, and lifecycle hooks that register
// the event schema before serving traffic.
var FXModule = fx.Module("producer",
	fx.Provide(
		func(client *registry.Client) *codec.Codec { return codec.New(client) },
		NewServerWithDI,
	),
	fx.Invoke(RegisterServerLifecycle),
)

// DIParams collects the Server's dependencies from the container.
type DIParams struct {
	fx.In

	Config    Config
	Codec     *codec.Codec
	Publisher *kafka.Client
	Logger    *logger.Logger
	Tracer    *tracer.Tracer         `optional:"true"`
	Observer  observability.Observer `optional:"true"`
}

// NewServerWithDI builds a Server from injected dependencies.
func NewServerWithDI(p DIParams) (*Server, error) {
	s, err := NewServer(p.Config, p.Codec, p.Publisher, p.Logger)
	if err != nil {
		return nil, err
	}
	if p.Tracer != nil {
		s = s.WithTracer(p.Tracer)
	}
	if p.Observer != nil {
		s = s.WithObserver(p.Observer)
	}
	return s, nil
}

// RegisterServerLifecycle registers the event schema on startup and
// then serves HTTP in the background. A registration failure aborts
// startup: the service must not accept events it cannot encode.
func RegisterServerLifecycle(lc fx.Lifecycle, s *Server, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := s.RegisterSchema(ctx); err != nil {
				return err
			}
			go func() {
				log.Info("starting ingest server", nil, map[string]interface{}{
					"address": s.cfg.Address,
				})
				if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("ingest server failed", err, nil)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
			defer cancel()
			return s.Shutdown(ctx)
		},
	})
}
