package engine

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	resolutions    *prometheus.CounterVec
	auditFailures  *prometheus.CounterVec
	deltaMagnitude *prometheus.HistogramVec
}

// NewMetrics creates the engine's collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeworks_axis_resolutions_total",
			Help: "Chat resolutions by world, channel and outcome.",
		}, []string{"world", "channel", "outcome"}),
		auditFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeworks_audit_ledger_failures_total",
			Help: "JSONL audit appends that failed after a committed resolution.",
		}, []string{"world"}),
		deltaMagnitude: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeworks_axis_delta_magnitude",
			Help:    "Absolute applied axis deltas.",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"world", "axis"}),
	}

	reg.MustRegister(m.resolutions, m.auditFailures, m.deltaMagnitude)
	return m
}

func (m *Metrics) observeResolution(worldID, channel string, err error) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(worldID, channel, outcome(err)).Inc()
}

func (m *Metrics) observeAuditFailure(worldID string) {
	if m == nil {
		return
	}
	m.auditFailures.WithLabelValues(worldID).Inc()
}

func (m *Metrics) observeDeltas(worldID string, deltas []AxisDelta) {
	if m == nil {
		return
	}
	for _, d := range deltas {
		m.deltaMagnitude.WithLabelValues(worldID, d.Axis).Observe(math.Abs(d.Delta))
	}
}
