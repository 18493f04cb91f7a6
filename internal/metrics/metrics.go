// Package metrics defines the Prometheus instrumentation for the bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Set bundles the bridge counters. Adapters count drops, the router counts
// relays and delivery failures.
type Set struct {
	Relayed    *prometheus.CounterVec
	Dropped    *prometheus.CounterVec
	SendErrors *prometheus.CounterVec
}

// New creates the counter set and registers it with reg.
func New(reg prometheus.Registerer) *Set {
	s := &Set{
		Relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ircgram",
			Name:      "messages_relayed_total",
			Help:      "Messages relayed across the bridge.",
		}, []string{"from"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ircgram",
			Name:      "messages_dropped_total",
			Help:      "Inbound events dropped before relaying.",
		}, []string{"from", "reason"}),
		SendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ircgram",
			Name:      "send_errors_total",
			Help:      "Outbound delivery failures, including recovered ones.",
		}, []string{"to"}),
	}
	reg.MustRegister(s.Relayed, s.Dropped, s.SendErrors)
	return s
}

// NewUnregistered creates a counter set without registering it. For tests.
func NewUnregistered() *Set {
	return New(prometheus.NewRegistry())
}
