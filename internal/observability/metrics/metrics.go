package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for the scheduling subsystem.
type SchedulingMetrics struct {
	slotsGenerated *prometheus.HistogramVec
	holdOutcomes   *prometheus.CounterVec
	dispatchTotal  *prometheus.CounterVec
	pauseTotal     *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		slotsGenerated: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "coachpoint",
			Subsystem: "availability",
			Name:      "slots_generated",
			Help:      "Slots produced per availability query",
			Buckets:   []float64{0, 10, 25, 50, 100, 250, 500},
		}, []string{"mode"}),
		holdOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coachpoint",
			Subsystem: "holds",
			Name:      "placement_total",
			Help:      "Total hold placement attempts",
		}, []string{"outcome"}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coachpoint",
			Subsystem: "orchestrator",
			Name:      "dispatch_total",
			Help:      "Total lifecycle event dispatches",
		}, []string{"event", "outcome"}),
		pauseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coachpoint",
			Subsystem: "enrollments",
			Name:      "pause_transitions_total",
			Help:      "Total pause/resume transitions",
		}, []string{"action", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.slotsGenerated, m.holdOutcomes, m.dispatchTotal, m.pauseTotal)
	return m
}

func (m *SchedulingMetrics) ObserveSlotsGenerated(mode string, count int) {
	if m == nil {
		return
	}
	m.slotsGenerated.WithLabelValues(mode).Observe(float64(count))
}

func (m *SchedulingMetrics) ObserveHold(outcome string) {
	if m == nil {
		return
	}
	m.holdOutcomes.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveDispatch(event, outcome string) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(event, outcome).Inc()
}

func (m *SchedulingMetrics) ObservePause(action, outcome string) {
	if m == nil {
		return
	}
	m.pauseTotal.WithLabelValues(action, outcome).Inc()
}
