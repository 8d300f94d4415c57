package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/streamhouse/eventflow/pkg/observability"
)

// createCounterVec defines a new CounterVec with standard options.
func createCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: name,
			Help: help,
		},
		labels,
	)
}

// createHistogramVec defines a new HistogramVec with configurable buckets.
func createHistogramVec(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    name,
			Help:    help,
			Buckets: buckets,
		},
		labels,
	)
}

// ObserveOperation implements observability.Observer, feeding client
// operation reports into the pipeline instruments. Registry round
// trips land in the duration histogram, codec and broker operations in
// their message counters, and failures of any component count as
// pipeline errors under their operation name.
func (m *Metrics) ObserveOperation(op observability.OperationContext) {
	if op.Error != nil {
		m.PipelineErrors.WithLabelValues(op.Component + "_" + op.Operation).Inc()
		return
	}

	switch op.Component {
	case "registry":
		m.RegistryRequestDuration.WithLabelValues(op.Operation).Observe(op.Duration.Seconds())
	case "codec":
		switch op.Operation {
		case "encode":
			m.MessagesEncoded.WithLabelValues(op.Resource).Inc()
		case "decode":
			m.MessagesDecoded.WithLabelValues(op.Resource).Inc()
		}
	case "kafka":
		switch op.Operation {
		case "publish":
			m.MessagesPublished.WithLabelValues(op.Resource).Inc()
		case "consume":
			m.MessagesConsumed.WithLabelValues(op.Resource).Inc()
		}
	}
}
