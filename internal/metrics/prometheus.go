package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements [Collector] backed by Prometheus.
type PrometheusCollector struct {
	ticks        *prometheus.CounterVec
	tickDuration *prometheus.HistogramVec
	tickFailures *prometheus.CounterVec

	entriesIngested prometheus.Counter
	fetchFailures   prometheus.Counter
	persistFailures prometheus.Counter
}

// Compile-time assertion that PrometheusCollector implements Collector.
var _ Collector = (*PrometheusCollector)(nil)

// NewPrometheus creates a Prometheus-backed collector and registers its
// metrics with reg (prometheus.DefaultRegisterer if nil).
func NewPrometheus(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &PrometheusCollector{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "heartbeat_ticks_total",
			Help:      "Total heartbeat ticks fired, by scheduler.",
		}, []string{"scheduler"}),
		tickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "relay",
			Name:      "heartbeat_tick_duration_seconds",
			Help:      "Duration of each tick's work in seconds, by scheduler.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"scheduler"}),
		tickFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "heartbeat_tick_failures_total",
			Help:      "Total ticks whose work failed or panicked, by scheduler.",
		}, []string{"scheduler"}),
		entriesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "changelog_entries_ingested_total",
			Help:      "Total new changelog entries appended to the store.",
		}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "feed_fetch_failures_total",
			Help:      "Total failed fetches of the remote feed.",
		}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "changelog_persist_failures_total",
			Help:      "Total failed writes of the durable changelog file.",
		}),
	}

	reg.MustRegister(c.ticks, c.tickDuration, c.tickFailures,
		c.entriesIngested, c.fetchFailures, c.persistFailures)
	return c
}

// TickCompleted records one tick and its duration.
func (c *PrometheusCollector) TickCompleted(scheduler string, d time.Duration) {
	c.ticks.WithLabelValues(scheduler).Inc()
	c.tickDuration.WithLabelValues(scheduler).Observe(d.Seconds())
}

// TickFailed records a failed tick.
func (c *PrometheusCollector) TickFailed(scheduler string) {
	c.tickFailures.WithLabelValues(scheduler).Inc()
}

// EntriesIngested records n newly appended entries.
func (c *PrometheusCollector) EntriesIngested(n int) {
	c.entriesIngested.Add(float64(n))
}

// FetchFailed records a failed feed fetch.
func (c *PrometheusCollector) FetchFailed() {
	c.fetchFailures.Inc()
}

// PersistFailed records a failed durable-file write.
func (c *PrometheusCollector) PersistFailed() {
	c.persistFailures.Inc()
}
