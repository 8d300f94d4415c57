package consumer

import (
	"context"

	"go.uber.org/fx"

	"github.com/streamhouse/eventflow/pkg/codec"
	"github.com/streamhouse/eventflow/pkg/kafka"
	"github.com/streamhouse/eventflow/pkg/logger"
	"github.com/streamhouse/eventflow/pkg/observability"
	"github.com/streamhouse/eventflow/pkg/registry"
	"github.com/streamhouse/eventflow/pkg/tracer"
)

// FXModule assembles the processing loop: a wire codec backed by the
// registry client, the runner, and a lifecycle hook that runs it in
// the background.
var FXModule = fx.Module("consumer",
	fx.Provide(
		func(client *registry.Client) *codec.Codec { return codec.New(client) },
		NewRunnerWithDI,
	),
	fx.Invoke(RegisterRunnerLifecycle),
)

// DIParams collects the Runner's dependencies from the container.
type DIParams struct {
	fx.In

	Config   Config
	Codec    *codec.Codec
	Source   *kafka.Client
	Logger   *logger.Logger
	Tracer   *tracer.Tracer         `optional:"true"`
	Observer observability.Observer `optional:"true"`
}

// NewRunnerWithDI builds a Runner from injected dependencies.
func NewRunnerWithDI(p DIParams) (*Runner, error) {
	r, err := NewRunner(p.Config, p.Codec, p.Source, p.Logger)
	if err != nil {
		return nil, err
	}
	if p.Tracer != nil {
		r = r.WithTracer(p.Tracer)
	}
	if p.Observer != nil {
		r = r.WithObserver(p.Observer)
	}
	return r, nil
}

// RegisterRunnerLifecycle runs the processing loop in the background
// and cancels it on application stop. A halt from the failure policy
// shuts the application down rather than leaving a dead loop behind.
func RegisterRunnerLifecycle(lc fx.Lifecycle, r *Runner, log *logger.Logger, shutdowner fx.Shutdowner) {
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := r.Run(runCtx); err != nil {
					log.Error("processing loop stopped", err, nil)
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return nil
		},
	})
}
