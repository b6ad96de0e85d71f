package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestJobMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJobMetrics(reg)

	m.IncSuccess("collections-poll")
	m.IncSuccess("collections-poll")
	m.IncFailure("disbursements-poll")
	m.ObserveDuration("collections-poll", 125*time.Millisecond)

	if got := testutil.ToFloat64(m.success.WithLabelValues("collections-poll")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(m.failure.WithLabelValues("disbursements-poll")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
}

func TestJobMetricsNilSafe(t *testing.T) {
	var m *JobMetrics
	m.IncSuccess("x")
	m.IncFailure("x")
	m.ObserveDuration("x", time.Second)

	empty := NewJobMetrics(nil)
	empty.IncSuccess("")
}
