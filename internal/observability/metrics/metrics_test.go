package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return metric.GetCounter().GetValue()
}

func TestWizardMetricsObserve(t *testing.T) {
	m := NewWizardMetrics(prometheus.NewRegistry())
	m.ObserveTransition("select", "service", nil)
	m.ObserveTransition("select", "service", nil)
	m.ObserveTransition("next", "therapist", errors.New("guard"))
	m.ObserveFetch("services", "miss")
	m.ObserveFetch("services", "hit")
	m.ObserveFetchLatency("services", 0.02)
	m.ObserveConfirmation("confirmed")

	if got := counterValue(t, m.transitionsTotal.WithLabelValues("select", "service", "ok")); got != 2 {
		t.Fatalf("select transitions = %v, want 2", got)
	}
	if got := counterValue(t, m.transitionsTotal.WithLabelValues("next", "therapist", "rejected")); got != 1 {
		t.Fatalf("rejected transitions = %v, want 1", got)
	}
	if got := counterValue(t, m.fetchTotal.WithLabelValues("services", "hit")); got != 1 {
		t.Fatalf("fetch hits = %v, want 1", got)
	}
	if got := counterValue(t, m.bookingsTotal.WithLabelValues("confirmed")); got != 1 {
		t.Fatalf("confirmations = %v, want 1", got)
	}
}

func TestWizardMetricsGatherNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWizardMetrics(reg)
	m.ObserveFetch("categories", "error")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "spa_catalog_fetch_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("spa_catalog_fetch_total not registered")
	}
}

func TestWizardMetricsNilSafe(t *testing.T) {
	var m *WizardMetrics
	m.ObserveTransition("back", "category", nil)
	m.ObserveFetch("timeslots", "miss")
	m.ObserveFetchLatency("timeslots", 0.1)
	m.ObserveConfirmation("failed")
}
