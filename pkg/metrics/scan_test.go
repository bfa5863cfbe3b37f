package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestScanMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewScanMetrics(reg)
	metrics.IncReceipt(OutcomeStaged)
	metrics.IncReceipt(OutcomeStaged)
	metrics.IncReceipt(OutcomeNoSupermarket)
	metrics.AddStaged("receipt", 4)
	metrics.AddStaged("barcode", 0)
	metrics.IncLookup(LookupNotFound)
	metrics.ObserveCommit(3, 1, 250*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	checks := []struct {
		name, label, value string
		want               float64
	}{
		{"cesta_receipts_processed_total", "outcome", OutcomeStaged, 2},
		{"cesta_receipts_processed_total", "outcome", OutcomeNoSupermarket, 1},
		{"cesta_staged_candidates_total", "source", "receipt", 4},
		{"cesta_barcode_lookups_total", "outcome", LookupNotFound, 1},
		{"cesta_committed_candidates_total", "kind", "updated", 3},
		{"cesta_committed_candidates_total", "kind", "added", 1},
	}
	for _, c := range checks {
		got, err := fetchCounterValue(mfs, c.name, c.label, c.value)
		if err != nil {
			t.Fatalf("fetch %s: %v", c.name, err)
		}
		if got != c.want {
			t.Fatalf("expected %s{%s=%s}=%v, got %v", c.name, c.label, c.value, c.want, got)
		}
	}

	if _, err := fetchCounterValue(mfs, "cesta_staged_candidates_total", "source", "barcode"); err == nil {
		t.Fatalf("zero additions should not create a series")
	}

	if got := fetchHistogramSum(mfs, "cesta_commit_duration_seconds"); got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestNilScanMetricsIsNoop(t *testing.T) {
	var m *ScanMetrics
	m.IncReceipt(OutcomeStaged)
	m.ObserveCommit(1, 1, time.Second)
	NewScanMetrics(nil).IncLookup(LookupFound)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name string) float64 {
	mf := findMetricFamily(mfs, name)
	if mf == nil || len(mf.GetMetric()) == 0 {
		return 0
	}
	return mf.GetMetric()[0].GetHistogram().GetSampleSum()
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
