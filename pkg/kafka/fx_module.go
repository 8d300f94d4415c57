package kafka

import (
	"context"

	"go.uber.org/fx"

	"github.com/streamhouse/eventflow/pkg/observability"
)

// FXModule provides the Client and registers its shutdown hook.
//
// A kafka.Config instance must be available in the container. An
// observability.Observer is attached when one is provided.
var FXModule = fx.Module("kafka",
	fx.Provide(NewClientWithDI),
	fx.Invoke(RegisterKafkaLifecycle),
)

// DIParams collects the Client's dependencies from the container.
type DIParams struct {
	fx.In

	Config   Config
	Observer observability.Observer `optional:"true"`
}

// NewClientWithDI builds a Client from injected dependencies.
func NewClientWithDI(p DIParams) (*Client, error) {
	client, err := NewClient(p.Config)
	if err != nil {
		return nil, err
	}
	if p.Observer != nil {
		client = client.WithObserver(p.Observer)
	}
	return client, nil
}

// RegisterKafkaLifecycle closes the client on application stop so
// buffered writes are flushed and the group rebalances promptly.
func RegisterKafkaLifecycle(lc fx.Lifecycle, client *Client) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.GracefulShutdown()
		},
	})
}
