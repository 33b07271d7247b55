// Package metrics exposes Prometheus counters for the relay pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the per-node relay counters. A fresh registry per instance
// keeps parallel nodes in one test process from colliding.
type Metrics struct {
	registry *prometheus.Registry

	Received   prometheus.Counter
	Duplicates prometheus.Counter
	Malformed  prometheus.Counter
	Forwarded  prometheus.Counter
	Dropped    prometheus.Counter
	Attempts   prometheus.Counter
	QueueDepth prometheus.Gauge
}

// New creates a Metrics instance registered on its own registry.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
		reg.MustRegister(c)
		return c
	}

	m := &Metrics{
		registry:   reg,
		Received:   factory("messages_received_total", "Messages decoded from inbound connections"),
		Duplicates: factory("messages_duplicate_total", "Messages dropped by the deduplication filter"),
		Malformed:  factory("messages_malformed_total", "Inbound connections that failed to decode"),
		Forwarded:  factory("messages_forwarded_total", "Messages handed off to a neighbor"),
		Dropped:    factory("messages_dropped_total", "Messages dropped after exhausting every neighbor"),
		Attempts:   factory("forward_attempts_total", "Individual hop transmission attempts"),
	}
	m.QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Entries currently waiting in the priority queue",
	})
	reg.MustRegister(m.QueueDepth)
	return m
}

// Handler returns an HTTP handler serving this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr. It blocks; run it in a goroutine.
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
