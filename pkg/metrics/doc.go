// Package metrics exposes Prometheus instruments for the event pipeline
// and serves them over an HTTP scrape endpoint.
//
// The Metrics type implements observability.Observer, so it can be
// attached to the registry client and the Kafka clients to record
// request durations and error counts without those packages importing
// Prometheus directly.
package metrics
