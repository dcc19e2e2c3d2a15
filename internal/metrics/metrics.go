package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "coupons"

// PurchaseMetrics records purchase outcomes.
type PurchaseMetrics struct {
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPurchaseMetrics registers the purchase metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewPurchaseMetrics(reg prometheus.Registerer) *PurchaseMetrics {
	if reg == nil {
		return &PurchaseMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "purchases_total",
		Help:      "Purchase attempts by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "purchase_duration_seconds",
		Help:      "Time spent in the purchase critical path, including waiting for the coupon hold.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
	reg.MustRegister(outcomes, duration)
	return &PurchaseMetrics{outcomes: outcomes, duration: duration}
}

// Observe records one purchase attempt.
func (m *PurchaseMetrics) Observe(outcome string, duration time.Duration) {
	if m == nil || m.outcomes == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	m.outcomes.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// SweepMetrics records expiration sweeper activity.
type SweepMetrics struct {
	duration prometheus.Histogram
	runs     *prometheus.CounterVec
	removed  prometheus.Counter
	state    *prometheus.GaugeVec
}

// NewSweepMetrics registers the sweeper metrics on the provided registerer.
func NewSweepMetrics(reg prometheus.Registerer) *SweepMetrics {
	if reg == nil {
		return &SweepMetrics{}
	}
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sweep_duration_seconds",
		Help:      "Duration of expiration sweeps in seconds.",
		Buckets:   prometheus.DefBuckets,
	})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_runs_total",
		Help:      "Expiration sweep cycles by result.",
	}, []string{"result"})
	removed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_removed_total",
		Help:      "Expired coupons removed by the sweeper.",
	})
	state := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sweeper_state",
		Help:      "Current sweeper state; the active state is 1.",
	}, []string{"state"})
	reg.MustRegister(duration, runs, removed, state)
	return &SweepMetrics{
		duration: duration,
		runs:     runs,
		removed:  removed,
		state:    state,
	}
}

// ObserveRun records a finished sweep cycle.
func (m *SweepMetrics) ObserveRun(result string, removed int, duration time.Duration) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(normalizeLabel(result)).Inc()
	m.removed.Add(float64(removed))
	m.duration.Observe(duration.Seconds())
}

// SetState marks state as the active sweeper state among known.
func (m *SweepMetrics) SetState(state string, known []string) {
	if m == nil || m.state == nil {
		return
	}
	for _, s := range known {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(s).Set(v)
	}
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
