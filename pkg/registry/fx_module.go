package registry

import (
	"context"

	"go.uber.org/fx"

	"github.com/streamhouse/eventflow/pkg/logger"
	"github.com/streamhouse/eventflow/pkg/observability"
)

// FXModule provides the schema registry client to the dependency
// injection container and gates application startup on registry
// reachability: a process must not start against an unreachable schema
// authority.
//
// A registry.Config instance must be available in the container.
var FXModule = fx.Module("registry",
	fx.Provide(
		NewClientWithDI,
		func(c *Client) Store { return c },
	),
	fx.Invoke(RegisterRegistryLifecycle),
)

// RegistryParams groups the dependencies needed to create the client.
type RegistryParams struct {
	fx.In

	Config   Config
	Observer observability.Observer `optional:"true"`
}

// NewClientWithDI creates a schema registry client for fx assembly.
func NewClientWithDI(params RegistryParams) (*Client, error) {
	client, err := NewClient(params.Config)
	if err != nil {
		return nil, err
	}
	if params.Observer != nil {
		client = client.WithObserver(params.Observer)
	}
	return client, nil
}

// RegistryLifecycleParams groups the lifecycle dependencies.
type RegistryLifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Client    *Client
	Logger    *logger.Logger
}

// RegisterRegistryLifecycle health-checks the registry on startup and
// fails the application if it is unreachable.
func RegisterRegistryLifecycle(params RegistryLifecycleParams) {
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := params.Client.HealthCheck(ctx); err != nil {
				params.Logger.Error("schema registry unreachable at startup", err, nil)
				return err
			}
			params.Logger.Info("schema registry client initialized", nil, nil)
			return nil
		},
	})
}
