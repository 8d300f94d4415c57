package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/streamhouse/eventflow/pkg/consumer"
	"github.com/streamhouse/eventflow/pkg/kafka"
	"github.com/streamhouse/eventflow/pkg/logger"
	"github.com/streamhouse/eventflow/pkg/registry"
)

const envPrefix = "EVENTFLOW"

// initConfig initializes viper with env-over-file precedence: every
// key is overridable via EVENTFLOW_* environment variables, e.g.
// registry.url -> EVENTFLOW_REGISTRY_URL.
func initConfig(cmd *cobra.Command) error {
	viper.Reset()
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	viper.SetDefault("registry.url", "http://localhost:8081")
	viper.SetDefault("kafka.brokers", "localhost:9092")
	viper.SetDefault("kafka.topic", "user_events")
	viper.SetDefault("kafka.group_id", "consumer_group")
	viper.SetDefault("producer.address", ":8000")
	viper.SetDefault("producer.subject", "user_events-value")
	viper.SetDefault("consumer.failure_policy", consumer.PolicySkip)
	viper.SetDefault("schema.file", "./schema/user_event.avsc")
	viper.SetDefault("metrics.address", ":9090")
	viper.SetDefault("log.level", logger.Info)
	viper.SetDefault("app.env", "development")
	viper.SetDefault("tracing.enabled", false)

	if configPath, err := cmd.Flags().GetString("config"); err == nil && configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

func loadRegistryConfig() registry.Config {
	return registry.Config{
		URL:      viper.GetString("registry.url"),
		Username: viper.GetString("registry.username"),
		Password: viper.GetString("registry.password"),
	}
}

func loadKafkaConfig(isConsumer bool, log *logger.Logger) kafka.Config {
	cfg := kafka.Config{
		Brokers:    splitList(viper.GetString("kafka.brokers")),
		Topic:      viper.GetString("kafka.topic"),
		IsConsumer: isConsumer,
		Logger:     log,
	}
	if isConsumer {
		cfg.GroupID = viper.GetString("kafka.group_id")
	}
	if viper.GetBool("kafka.tls.enabled") {
		cfg.TLS = kafka.TLSConfig{
			Enabled:            true,
			CACertPath:         viper.GetString("kafka.tls.ca_cert"),
			ClientCertPath:     viper.GetString("kafka.tls.client_cert"),
			ClientKeyPath:      viper.GetString("kafka.tls.client_key"),
			InsecureSkipVerify: viper.GetBool("kafka.tls.insecure_skip_verify"),
		}
	}
	if viper.GetBool("kafka.sasl.enabled") {
		cfg.SASL = kafka.SASLConfig{
			Enabled:   true,
			Mechanism: viper.GetString("kafka.sasl.mechanism"),
			Username:  viper.GetString("kafka.sasl.username"),
			Password:  viper.GetString("kafka.sasl.password"),
		}
	}
	return cfg
}

// readSchemaFile loads the schema document named by schema.file.
func readSchemaFile() (string, error) {
	path := viper.GetString("schema.file")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	return string(data), nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
