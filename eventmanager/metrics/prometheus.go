// Package metrics exports eventmanager.Manager activity as Prometheus
// metrics. The exporter is pull-based: a Collector calls
// Manager.Stats() on each scrape rather than instrumenting the
// dispatch hot path, so publishing and dispatch incur no extra
// synchronization cost.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/GoCodeAlone/ctk/eventmanager"
)

// Collector implements prometheus.Collector over a Manager's snapshot
// statistics.
type Collector struct {
	manager *eventmanager.Manager

	listeners   *prometheus.Desc
	pending     *prometheus.Desc
	cycles      *prometheus.Desc
	invocations *prometheus.Desc
	busy        *prometheus.Desc
}

// NewPrometheusCollector builds a Collector for em. All metric names are
// prefixed with namespace (e.g. "myapp") followed by "_eventmanager_".
func NewPrometheusCollector(em *eventmanager.Manager, namespace string) *Collector {
	sub := "eventmanager"
	return &Collector{
		manager: em,
		listeners: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, sub, "listeners"),
			"Number of listeners currently registered.",
			nil, nil,
		),
		pending: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, sub, "pending_events"),
			"Number of fired events not yet drained by the dispatch goroutine.",
			nil, nil,
		),
		cycles: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, sub, "dispatch_cycles_total"),
			"Cumulative number of non-empty dispatch-loop cycles.",
			nil, nil,
		),
		invocations: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, sub, "invocations_total"),
			"Cumulative number of listener invocations handed to a strategy.",
			nil, nil,
		),
		busy: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, sub, "busy_executors"),
			"Number of pool executors currently running a listener.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.listeners
	ch <- c.pending
	ch <- c.cycles
	ch <- c.invocations
	ch <- c.busy
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.manager.Stats()
	ch <- prometheus.MustNewConstMetric(c.listeners, prometheus.GaugeValue, float64(stats.ListenerCount))
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(stats.PendingEvents))
	ch <- prometheus.MustNewConstMetric(c.cycles, prometheus.CounterValue, float64(stats.DispatchCycles))
	ch <- prometheus.MustNewConstMetric(c.invocations, prometheus.CounterValue, float64(stats.Invocations))
	ch <- prometheus.MustNewConstMetric(c.busy, prometheus.GaugeValue, float64(stats.BusyExecutors))
}
