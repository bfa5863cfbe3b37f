package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cesta"

// Receipt outcomes.
const (
	OutcomeStaged           = "staged"
	OutcomeNoSupermarket    = "no_supermarket"
	OutcomeNoProducts       = "no_products"
	OutcomeRecognitionError = "ocr_failed"
)

// Lookup outcomes.
const (
	LookupFound    = "found"
	LookupNotFound = "not_found"
	LookupError    = "error"
)

// ScanMetrics records the receipt, barcode and commit pipeline.
type ScanMetrics struct {
	receipts   *prometheus.CounterVec
	staged     *prometheus.CounterVec
	lookups    *prometheus.CounterVec
	committed  *prometheus.CounterVec
	commitTime prometheus.Histogram
}

// NewScanMetrics registers the pipeline metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewScanMetrics(reg prometheus.Registerer) *ScanMetrics {
	if reg == nil {
		return &ScanMetrics{}
	}
	receipts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "receipts_processed_total",
		Help:      "Receipts processed, by outcome.",
	}, []string{"outcome"})
	staged := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "staged_candidates_total",
		Help:      "Candidates placed in staging sessions, by source.",
	}, []string{"source"})
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "barcode_lookups_total",
		Help:      "Barcode lookups against the food database, by outcome.",
	}, []string{"outcome"})
	committed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "committed_candidates_total",
		Help:      "Candidates committed to the catalog, by kind.",
	}, []string{"kind"})
	commitTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "commit_duration_seconds",
		Help:      "Duration of catalog commits in seconds.",
		Buckets:   prometheus.DefBuckets,
	})
	reg.MustRegister(receipts, staged, lookups, committed, commitTime)
	return &ScanMetrics{
		receipts:   receipts,
		staged:     staged,
		lookups:    lookups,
		committed:  committed,
		commitTime: commitTime,
	}
}

func (m *ScanMetrics) IncReceipt(outcome string) {
	if m == nil || m.receipts == nil {
		return
	}
	m.receipts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// AddStaged counts n candidates staged from source.
func (m *ScanMetrics) AddStaged(source string, n int) {
	if m == nil || m.staged == nil || n <= 0 {
		return
	}
	m.staged.WithLabelValues(normalizeLabel(source)).Add(float64(n))
}

func (m *ScanMetrics) IncLookup(outcome string) {
	if m == nil || m.lookups == nil {
		return
	}
	m.lookups.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveCommit records one commit's counts and duration.
func (m *ScanMetrics) ObserveCommit(updated, added int, duration time.Duration) {
	if m == nil || m.committed == nil {
		return
	}
	m.committed.WithLabelValues("updated").Add(float64(updated))
	m.committed.WithLabelValues("added").Add(float64(added))
	m.commitTime.Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
