package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordCuration("balanced", "both", 5)
	r.RecordCuration("balanced", "both", 3)
	r.RecordCategory("gainer", 4, 3)
	r.RecordError("source_unavailable")
	r.RecordLatency("curate_seconds", 0.01)

	if got := testutil.ToFloat64(r.snapshotsTotal.WithLabelValues("balanced", "both")); got != 2 {
		t.Fatalf("snapshots=%v", got)
	}
	if got := testutil.ToFloat64(r.categoryAssets.WithLabelValues("gainer", "kept")); got != 3 {
		t.Fatalf("kept=%v", got)
	}
	if got := testutil.ToFloat64(r.errorsTotal.WithLabelValues("source_unavailable")); got != 1 {
		t.Fatalf("errors=%v", got)
	}
	if n := testutil.CollectAndCount(r.latency); n != 1 {
		t.Fatalf("latency series=%d", n)
	}
}
