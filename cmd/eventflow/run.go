package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/streamhouse/eventflow/pkg/consumer"
	"github.com/streamhouse/eventflow/pkg/kafka"
	"github.com/streamhouse/eventflow/pkg/logger"
	"github.com/streamhouse/eventflow/pkg/metrics"
	"github.com/streamhouse/eventflow/pkg/producer"
	"github.com/streamhouse/eventflow/pkg/registry"
	"github.com/streamhouse/eventflow/pkg/tracer"
)

func newProducerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "producer",
		Short: "Run the HTTP ingest service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProducerApp()
		},
	}
}

func newConsumerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "consumer",
		Short: "Run the event processing loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConsumerApp()
		},
	}
}

func runProducerApp() error {
	schemaDoc, err := readSchemaFile()
	if err != nil {
		return err
	}

	app := fx.New(
		fx.Supply(
			logger.Config{Level: viper.GetString("log.level"), ServiceName: "eventflow-producer"},
			loadRegistryConfig(),
			metrics.Config{
				Address:                 viper.GetString("metrics.address"),
				EnableDefaultCollectors: true,
				ServiceName:             "eventflow-producer",
			},
			tracer.Config{
				ServiceName:  "eventflow-producer",
				AppEnv:       viper.GetString("app.env"),
				EnableExport: viper.GetBool("tracing.enabled"),
			},
			producer.Config{
				Address: viper.GetString("producer.address"),
				Subject: viper.GetString("producer.subject"),
				Schema:  schemaDoc,
			},
		),
		fx.Provide(func(log *logger.Logger) kafka.Config {
			return loadKafkaConfig(false, log)
		}),
		logger.FXModule,
		metrics.FXModule,
		tracer.FXModule,
		registry.FXModule,
		kafka.FXModule,
		producer.FXModule,
	)
	app.Run()
	return nil
}

func runConsumerApp() error {
	schemaDoc, err := readSchemaFile()
	if err != nil {
		return err
	}

	app := fx.New(
		fx.Supply(
			logger.Config{Level: viper.GetString("log.level"), ServiceName: "eventflow-consumer"},
			loadRegistryConfig(),
			metrics.Config{
				Address:                 viper.GetString("metrics.address"),
				EnableDefaultCollectors: true,
				ServiceName:             "eventflow-consumer",
			},
			tracer.Config{
				ServiceName:  "eventflow-consumer",
				AppEnv:       viper.GetString("app.env"),
				EnableExport: viper.GetBool("tracing.enabled"),
			},
			consumer.Config{
				Schema:        schemaDoc,
				FailurePolicy: viper.GetString("consumer.failure_policy"),
			},
		),
		fx.Provide(func(log *logger.Logger) kafka.Config {
			return loadKafkaConfig(true, log)
		}),
		logger.FXModule,
		metrics.FXModule,
		tracer.FXModule,
		registry.FXModule,
		kafka.FXModule,
		consumer.FXModule,
	)
	app.Run()
	return nil
}
