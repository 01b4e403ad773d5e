package metrics

import "github.com/prometheus/client_golang/prometheus"

// DialogueMetrics exposes counters/histograms for the call dialogue.
type DialogueMetrics struct {
	turnsTotal         *prometheus.CounterVec
	transitionsTotal   *prometheus.CounterVec
	extractionsTotal   *prometheus.CounterVec
	interruptionsTotal *prometheus.CounterVec
	exhaustedTotal     *prometheus.CounterVec
	leadsTotal         *prometheus.CounterVec
	turnLatency        *prometheus.HistogramVec
}

func NewDialogueMetrics(reg prometheus.Registerer) *DialogueMetrics {
	m := &DialogueMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autoparts",
			Subsystem: "dialogue",
			Name:      "turns_total",
			Help:      "Total caller turns handled, by step",
		}, []string{"step"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autoparts",
			Subsystem: "dialogue",
			Name:      "transitions_total",
			Help:      "Step transitions taken",
		}, []string{"from", "to"}),
		extractionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autoparts",
			Subsystem: "dialogue",
			Name:      "extractions_total",
			Help:      "Entity extraction outcomes",
		}, []string{"outcome"}),
		interruptionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autoparts",
			Subsystem: "dialogue",
			Name:      "interruptions_total",
			Help:      "Off-script price and warranty questions",
		}, []string{"intent"}),
		exhaustedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autoparts",
			Subsystem: "dialogue",
			Name:      "retries_exhausted_total",
			Help:      "Slots whose retry ceiling was reached",
		}, []string{"slot"}),
		leadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autoparts",
			Subsystem: "dialogue",
			Name:      "leads_total",
			Help:      "Lead finalization results",
		}, []string{"status"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "autoparts",
			Subsystem: "dialogue",
			Name:      "turn_latency_seconds",
			Help:      "Latency of dialogue turn processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.transitionsTotal, m.extractionsTotal, m.interruptionsTotal,
		m.exhaustedTotal, m.leadsTotal, m.turnLatency)
	return m
}

func (m *DialogueMetrics) ObserveTurn(step string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(step).Inc()
}

func (m *DialogueMetrics) ObserveTransition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *DialogueMetrics) ObserveExtraction(outcome string) {
	if m == nil {
		return
	}
	m.extractionsTotal.WithLabelValues(outcome).Inc()
}

func (m *DialogueMetrics) ObserveInterruption(intent string) {
	if m == nil {
		return
	}
	m.interruptionsTotal.WithLabelValues(intent).Inc()
}

func (m *DialogueMetrics) ObserveExhausted(slot string) {
	if m == nil {
		return
	}
	m.exhaustedTotal.WithLabelValues(slot).Inc()
}

// ObserveLead records "saved", "failed" or "rejected".
func (m *DialogueMetrics) ObserveLead(status string) {
	if m == nil {
		return
	}
	m.leadsTotal.WithLabelValues(status).Inc()
}

func (m *DialogueMetrics) ObserveLatency(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.turnLatency.WithLabelValues(kind).Observe(seconds)
}
