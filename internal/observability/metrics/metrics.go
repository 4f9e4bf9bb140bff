package metrics

import "github.com/prometheus/client_golang/prometheus"

// WizardMetrics exposes counters/histograms for the booking wizard.
type WizardMetrics struct {
	transitionsTotal *prometheus.CounterVec
	fetchTotal       *prometheus.CounterVec
	fetchLatency     *prometheus.HistogramVec
	bookingsTotal    *prometheus.CounterVec
}

func NewWizardMetrics(reg prometheus.Registerer) *WizardMetrics {
	m := &WizardMetrics{
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spa",
			Subsystem: "wizard",
			Name:      "transitions_total",
			Help:      "Wizard actions applied, by action, resulting step and outcome",
		}, []string{"action", "step", "outcome"}),
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spa",
			Subsystem: "catalog",
			Name:      "fetch_total",
			Help:      "Dependent option fetches by resource and cache outcome",
		}, []string{"resource", "outcome"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "spa",
			Subsystem: "catalog",
			Name:      "fetch_latency_seconds",
			Help:      "Latency of upstream option fetches",
			Buckets:   prometheus.DefBuckets,
		}, []string{"resource"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spa",
			Subsystem: "wizard",
			Name:      "confirmations_total",
			Help:      "Booking confirmations by status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitionsTotal, m.fetchTotal, m.fetchLatency, m.bookingsTotal)
	return m
}

func (m *WizardMetrics) ObserveTransition(action, step string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
	}
	m.transitionsTotal.WithLabelValues(action, step, outcome).Inc()
}

// ObserveFetch records a cache outcome: hit, miss or error.
func (m *WizardMetrics) ObserveFetch(resource, outcome string) {
	if m == nil {
		return
	}
	m.fetchTotal.WithLabelValues(resource, outcome).Inc()
}

func (m *WizardMetrics) ObserveFetchLatency(resource string, seconds float64) {
	if m == nil {
		return
	}
	m.fetchLatency.WithLabelValues(resource).Observe(seconds)
}

func (m *WizardMetrics) ObserveConfirmation(status string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(status).Inc()
}
