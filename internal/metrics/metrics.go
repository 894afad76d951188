// Package metrics defines the relay's instrumentation interface and its
// Prometheus-backed and no-op implementations.
//
// Components record through the [Collector] interface so tests can run with
// [NopCollector] and production wires [PrometheusCollector] into the
// /metrics endpoint.
package metrics

import "time"

// Collector records operational metrics for the schedulers, poller, and
// store. Implementations must be safe for concurrent use.
type Collector interface {
	// TickCompleted records one scheduler tick and its duration.
	TickCompleted(scheduler string, d time.Duration)

	// TickFailed records a tick whose work returned an error or panicked.
	TickFailed(scheduler string)

	// EntriesIngested records newly appended changelog entries.
	EntriesIngested(n int)

	// FetchFailed records a failed remote feed fetch.
	FetchFailed()

	// PersistFailed records a failed durable-file write.
	PersistFailed()
}

// NopCollector discards all metrics. Useful for tests and for SDK callers
// that bring their own instrumentation.
type NopCollector struct{}

// Compile-time assertion that NopCollector implements Collector.
var _ Collector = (*NopCollector)(nil)

// NewNop creates a new no-op collector.
func NewNop() *NopCollector {
	return &NopCollector{}
}

// TickCompleted discards the tick metric.
func (n *NopCollector) TickCompleted(_ string, _ time.Duration) {}

// TickFailed discards the tick failure metric.
func (n *NopCollector) TickFailed(_ string) {}

// EntriesIngested discards the ingestion metric.
func (n *NopCollector) EntriesIngested(_ int) {}

// FetchFailed discards the fetch failure metric.
func (n *NopCollector) FetchFailed() {}

// PersistFailed discards the persistence failure metric.
func (n *NopCollector) PersistFailed() {}
