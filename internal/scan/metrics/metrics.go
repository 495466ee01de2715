package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the scan engine.
type Metrics struct {
	ScansRecorded    *prometheus.CounterVec
	ScansIgnored     prometheus.Counter
	ScanFailures     *prometheus.CounterVec
	MissedCorrected  prometheus.Counter
	RecordScanSecond prometheus.Histogram
}

// New creates and registers the scan engine metrics.
func New() *Metrics {
	return &Metrics{
		ScansRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rezscan_scans_recorded_total",
			Help: "Total scan events recorded, by transition",
		}, []string{"transition"}),
		ScansIgnored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rezscan_scans_ignored_total",
			Help: "Total scans ignored by the cooldown window",
		}),
		ScanFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rezscan_scan_failures_total",
			Help: "Total failed scan attempts, by error code",
		}, []string{"code"}),
		MissedCorrected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rezscan_missed_scans_corrected_total",
			Help: "Total missed-scan corrections (synthesized Out events)",
		}),
		RecordScanSecond: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rezscan_record_scan_duration_seconds",
			Help:    "Latency of the record-scan read-decide-write cycle",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementRecorded(transition string) {
	m.ScansRecorded.WithLabelValues(transition).Inc()
}

func (m *Metrics) IncrementIgnored() {
	m.ScansIgnored.Inc()
}

func (m *Metrics) IncrementFailure(code string) {
	m.ScanFailures.WithLabelValues(code).Inc()
}

func (m *Metrics) IncrementMissedCorrected() {
	m.MissedCorrected.Inc()
}

func (m *Metrics) ObserveRecordScan(seconds float64) {
	m.RecordScanSecond.Observe(seconds)
}
