// Package metrics exposes Prometheus instrumentation for the oracle daemon.
// All record methods are nil-safe so instrumentation stays optional in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the daemon's Prometheus collectors.
type Metrics struct {
	priceResolutions *prometheus.CounterVec
	priceFailures    prometheus.Counter
	fallbackAnswers  *prometheus.CounterVec
	reportsIngested  prometheus.Counter
	messagesSent     *prometheus.CounterVec
	messagesReceived *prometheus.CounterVec
	replaysRejected  prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		priceResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oracle",
			Name:      "price_resolutions_total",
			Help:      "Price resolutions by serving source.",
		}, []string{"source"}),
		priceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oracle",
			Name:      "price_failures_total",
			Help:      "Price resolutions that exhausted every source.",
		}),
		fallbackAnswers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oracle",
			Name:      "share_price_answers_total",
			Help:      "Share-price answers by fallback step that produced them.",
		}, []string{"step"}),
		reportsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oracle",
			Name:      "reports_ingested_total",
			Help:      "Vault reports accepted into storage.",
		}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oracle",
			Name:      "messages_sent_total",
			Help:      "Outbound cross-chain messages by type.",
		}, []string{"type"}),
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oracle",
			Name:      "messages_received_total",
			Help:      "Inbound cross-chain messages by type.",
		}, []string{"type"}),
		replaysRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oracle",
			Name:      "replays_rejected_total",
			Help:      "Inbound messages dropped by replay protection.",
		}),
	}

	reg.MustRegister(
		m.priceResolutions,
		m.priceFailures,
		m.fallbackAnswers,
		m.reportsIngested,
		m.messagesSent,
		m.messagesReceived,
		m.replaysRejected,
	)
	return m
}

// RecordPriceResolution counts a successful resolution. source is "adapter"
// or "cache".
func (m *Metrics) RecordPriceResolution(source string) {
	if m == nil {
		return
	}
	m.priceResolutions.WithLabelValues(source).Inc()
}

// RecordPriceFailure counts an exhausted resolution.
func (m *Metrics) RecordPriceFailure() {
	if m == nil {
		return
	}
	m.priceFailures.Inc()
}

// RecordFallbackAnswer counts a share-price answer by the step that served
// it: "local", "report", "cache" or "terminal".
func (m *Metrics) RecordFallbackAnswer(step string) {
	if m == nil {
		return
	}
	m.fallbackAnswers.WithLabelValues(step).Inc()
}

// RecordReportsIngested counts accepted vault reports.
func (m *Metrics) RecordReportsIngested(n int) {
	if m == nil {
		return
	}
	m.reportsIngested.Add(float64(n))
}

// RecordMessageSent counts an outbound message.
func (m *Metrics) RecordMessageSent(msgType string) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(msgType).Inc()
}

// RecordMessageReceived counts an inbound message.
func (m *Metrics) RecordMessageReceived(msgType string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(msgType).Inc()
}

// RecordReplayRejected counts a replayed delivery.
func (m *Metrics) RecordReplayRejected() {
	if m == nil {
		return
	}
	m.replaysRejected.Inc()
}
