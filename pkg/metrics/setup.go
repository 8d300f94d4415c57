package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the Prometheus registry and the HTTP server that
// exposes it for scraping, plus the pipeline-level instruments shared
// by the producer and consumer processes.
type Metrics struct {
	Server   *http.Server
	Registry *prometheus.Registry

	// MessagesEncoded counts successful wire encodes, by subject
	MessagesEncoded *prometheus.CounterVec

	// MessagesDecoded counts successful wire decodes, by topic
	MessagesDecoded *prometheus.CounterVec

	// MessagesPublished counts messages delivered to the broker, by topic
	MessagesPublished *prometheus.CounterVec

	// MessagesConsumed counts messages processed and committed, by topic
	MessagesConsumed *prometheus.CounterVec

	// PipelineErrors counts failures by stage (encode/decode/publish/process)
	PipelineErrors *prometheus.CounterVec

	// RegistryRequestDuration observes schema registry round trips, by operation
	RegistryRequestDuration *prometheus.HistogramVec

	serviceName string
}

// NewMetrics builds the registry, the pipeline instruments, and the
// scrape server. Instruments are wrapped with a service label so
// multiple pipeline processes can share one Prometheus cluster.
func NewMetrics(cfg Config) *Metrics {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}

	registry := prometheus.NewRegistry()
	wrapped := prometheus.WrapRegistererWith(prometheus.Labels{"service": cfg.ServiceName}, registry)

	if cfg.EnableDefaultCollectors {
		wrapped.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewBuildInfoCollector(),
		)
	}

	m := &Metrics{
		Registry: registry,
		Server: &http.Server{
			Addr:    cfg.Address,
			Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		},
		MessagesEncoded:   createCounterVec("eventflow_messages_encoded_total", "Messages encoded into the wire format.", []string{"subject"}),
		MessagesDecoded:   createCounterVec("eventflow_messages_decoded_total", "Messages decoded from the wire format.", []string{"topic"}),
		MessagesPublished: createCounterVec("eventflow_messages_published_total", "Messages delivered to the broker.", []string{"topic"}),
		MessagesConsumed:  createCounterVec("eventflow_messages_consumed_total", "Messages processed and committed.", []string{"topic"}),
		PipelineErrors:    createCounterVec("eventflow_pipeline_errors_total", "Pipeline failures by stage.", []string{"stage"}),
		RegistryRequestDuration: createHistogramVec("eventflow_registry_request_seconds",
			"Schema registry round trip duration.", []string{"operation"}, prometheus.DefBuckets),
		serviceName: cfg.ServiceName,
	}

	wrapped.MustRegister(
		m.MessagesEncoded,
		m.MessagesDecoded,
		m.MessagesPublished,
		m.MessagesConsumed,
		m.PipelineErrors,
		m.RegistryRequestDuration,
	)

	return m
}
