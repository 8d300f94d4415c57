package kafka

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/streamhouse/eventflow/pkg/codec"
	"github.com/streamhouse/eventflow/pkg/registry"
	"github.com/streamhouse/eventflow/pkg/schema"
)

const integrationEventSchema = `{
	"type": "record",
	"name": "UserEvent",
	"namespace": "com.streamhouse.events",
	"fields": [
		{"name": "user_id", "type": "long"},
		{"name": "action", "type": "string"},
		{"name": "page", "type": "string", "default": "unknown"},
		{"name": "timestamp", "type": "long"}
	]
}`

// TestPipelineIntegration runs the full produce path against a real
// broker and schema registry: register the schema, encode a record
// into the wire format, publish it, consume it back and decode it.
//
// Redpanda bundles a Kafka-compatible broker and a Confluent-compatible
// schema registry in one container, which keeps the setup to a single
// image.
func TestPipelineIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	kafkaPort, err := getFreePort()
	require.NoError(t, err)
	registryPort, err := getFreePort()
	require.NoError(t, err)

	redpanda, err := createRedpandaContainer(ctx, kafkaPort, registryPort)
	require.NoError(t, err)
	defer func() {
		_ = redpanda.Terminate(ctx)
	}()

	regClient, err := registry.NewClient(registry.Config{
		URL: fmt.Sprintf("http://localhost:%d", registryPort),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return regClient.HealthCheck(ctx) == nil
	}, 60*time.Second, time.Second, "schema registry not ready")

	wireCodec := codec.New(regClient)
	def := schema.MustParse([]byte(integrationEventSchema))

	record := map[string]any{
		"user_id":   int64(42),
		"action":    "login",
		"page":      "home",
		"timestamp": time.Now().UnixMilli(),
	}
	envelope, err := wireCodec.Encode(ctx, "user_events-value", record, def)
	require.NoError(t, err)
	assert.Equal(t, byte(codec.MagicByte), envelope[0])

	brokers := []string{fmt.Sprintf("localhost:%d", kafkaPort)}

	producerClient, err := NewClient(Config{
		Brokers: brokers,
		Topic:   "user_events",
	})
	require.NoError(t, err)
	defer producerClient.GracefulShutdown()

	// The first write may race topic auto-creation.
	require.Eventually(t, func() bool {
		return producerClient.Publish(ctx, []byte("42"), envelope, map[string]string{
			"subject": "user_events-value",
		}) == nil
	}, 60*time.Second, 2*time.Second, "publish never succeeded")

	consumerClient, err := NewClient(Config{
		Brokers:    brokers,
		Topic:      "user_events",
		GroupID:    "integration-test",
		IsConsumer: true,
	})
	require.NoError(t, err)
	defer consumerClient.GracefulShutdown()

	consumeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	messages, err := consumerClient.Consume(consumeCtx, &wg)
	require.NoError(t, err)

	var msg Message
	select {
	case msg = <-messages:
	case <-time.After(90 * time.Second):
		t.Fatal("no message received from broker")
	}

	assert.Equal(t, []byte("42"), msg.Key)
	assert.Equal(t, "user_events-value", msg.Headers["subject"])

	id, decoded, err := wireCodec.Decode(ctx, msg.Value)
	require.NoError(t, err)
	assert.Greater(t, id, 0)
	assert.Equal(t, record["user_id"], decoded["user_id"])
	assert.Equal(t, record["action"], decoded["action"])
	assert.Equal(t, record["page"], decoded["page"])
	assert.Equal(t, record["timestamp"], decoded["timestamp"])

	require.NoError(t, consumerClient.CommitMessage(ctx, msg))

	cancel()
	wg.Wait()
}

func createRedpandaContainer(ctx context.Context, kafkaPort, registryPort int) (testcontainers.Container, error) {
	req := testcontainers.ContainerRequest{
		Image:        "redpandadata/redpanda:v24.1.7",
		ExposedPorts: []string{"9092/tcp", "8081/tcp"},
		HostConfigModifier: func(cfg *container.HostConfig) {
			cfg.PortBindings = nat.PortMap{
				"9092/tcp": []nat.PortBinding{{HostPort: fmt.Sprintf("%d", kafkaPort)}},
				"8081/tcp": []nat.PortBinding{{HostPort: fmt.Sprintf("%d", registryPort)}},
			}
		},
		Cmd: []string{
			"redpanda", "start",
			"--mode", "dev-container",
			"--smp", "1",
			"--kafka-addr", "PLAINTEXT://0.0.0.0:9092",
			"--advertise-kafka-addr", fmt.Sprintf("PLAINTEXT://localhost:%d", kafkaPort),
			"--schema-registry-addr", "0.0.0.0:8081",
		},
		WaitingFor: wait.ForLog("Successfully started Redpanda!").WithStartupTimeout(120 * time.Second),
	}

	return testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
}

func getFreePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}
