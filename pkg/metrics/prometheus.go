package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	snapshotsTotal *prometheus.CounterVec
	snapshotAssets *prometheus.HistogramVec
	categoryAssets *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the recorder's collectors on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		snapshotsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketbrief_snapshots_total",
				Help: "Total number of curated snapshots produced",
			},
			[]string{"style", "preference"},
		),
		snapshotAssets: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketbrief_snapshot_assets",
				Help:    "Number of assets in a curated snapshot",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
			[]string{"style", "preference"},
		),
		categoryAssets: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketbrief_category_assets_total",
				Help: "Assets selected by a category and kept after deduplication",
			},
			[]string{"category", "stage"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketbrief_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketbrief_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordCuration records one produced snapshot.
func (r *Recorder) RecordCuration(style, preference string, assets int) {
	r.snapshotsTotal.WithLabelValues(style, preference).Inc()
	r.snapshotAssets.WithLabelValues(style, preference).Observe(float64(assets))
}

// RecordCategory records how many assets a category selected and how many survived the merge.
func (r *Recorder) RecordCategory(category string, selected, kept int) {
	r.categoryAssets.WithLabelValues(category, "selected").Add(float64(selected))
	r.categoryAssets.WithLabelValues(category, "kept").Add(float64(kept))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
