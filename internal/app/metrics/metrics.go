// Package metrics exposes the host's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Set struct {
	SetupOutcomes   *prometheus.CounterVec
	SetupDuration   prometheus.Histogram
	EngineState     prometheus.Gauge
	InvitesReceived prometheus.Counter
}

func New(reg prometheus.Registerer) *Set {
	s := &Set{
		SetupOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "callhost_setup_outcomes_total",
			Help: "Terminal outcomes of call setup attempts.",
		}, []string{"outcome"}),
		SetupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "callhost_setup_duration_seconds",
			Help:    "Time from setup start to a terminal state.",
			Buckets: prometheus.DefBuckets,
		}),
		EngineState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "callhost_engine_state",
			Help: "Current media engine connection state (enum ordinal).",
		}),
		InvitesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callhost_invites_received_total",
			Help: "Inbound call invites presented to the UI.",
		}),
	}
	reg.MustRegister(s.SetupOutcomes, s.SetupDuration, s.EngineState, s.InvitesReceived)
	return s
}
