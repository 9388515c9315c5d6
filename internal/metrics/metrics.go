// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes Prometheus instrumentation for the audit
// control-plane client.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all auditlink Prometheus metrics. It implements
// prometheus.Collector so it can be registered as one unit.
type Metrics struct {
	// Exchanges counts completed control exchanges by operation and
	// outcome (ok, netlink_error, unexpected, malformed, validation,
	// request_failed).
	Exchanges *prometheus.CounterVec

	// ReplyDatagrams counts correlated reply datagrams by operation.
	ReplyDatagrams *prometheus.CounterVec

	// UnroutableDatagrams counts datagrams whose sequence number matched
	// no pending exchange (kernel event traffic, late replies).
	UnroutableDatagrams prometheus.Counter

	// OverrunExchanges counts exchanges terminated because the receiver
	// fell behind the reply stream.
	OverrunExchanges prometheus.Counter
}

// NewMetrics creates an unregistered metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		Exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditlink_exchanges_total",
			Help: "Total number of audit control exchanges by operation and outcome",
		}, []string{"operation", "outcome"}),

		ReplyDatagrams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditlink_reply_datagrams_total",
			Help: "Total number of correlated reply datagrams by operation",
		}, []string{"operation"}),

		UnroutableDatagrams: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auditlink_unroutable_datagrams_total",
			Help: "Total number of datagrams matching no pending exchange",
		}),

		OverrunExchanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auditlink_overrun_exchanges_total",
			Help: "Total number of exchanges terminated by receiver overrun",
		}),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.Exchanges.Describe(ch)
	m.ReplyDatagrams.Describe(ch)
	m.UnroutableDatagrams.Describe(ch)
	m.OverrunExchanges.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.Exchanges.Collect(ch)
	m.ReplyDatagrams.Collect(ch)
	m.UnroutableDatagrams.Collect(ch)
	m.OverrunExchanges.Collect(ch)
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the shared metrics collector, registering it with the
// default Prometheus registerer on first use.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = NewMetrics()
		prometheus.DefaultRegisterer.MustRegister(defaultMetrics)
	})
	return defaultMetrics
}
