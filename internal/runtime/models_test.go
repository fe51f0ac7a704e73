package runtime

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestModuleStatsCollectsExtendedMetrics(t *testing.T) {
	stats := newModuleStats("clustering", newResourceTracker())

	stats.recordEvent(5*time.Millisecond, nil)
	stats.recordEvent(7*time.Millisecond, errors.New("saturated"))

	stats.mu.Lock()
	defer stats.mu.Unlock()

	if stats.EventsProcessed != 2 {
		t.Fatalf("expected 2 processed events, got %d", stats.EventsProcessed)
	}
	if stats.EventsFailed != 1 {
		t.Fatalf("expected failure count to increment")
	}
	if stats.LastError != "saturated" {
		t.Fatalf("expected last error to be recorded, got %q", stats.LastError)
	}
	if stats.TotalProcessingTime != int64(12*time.Millisecond) {
		t.Fatalf("expected total processing time to accumulate, got %d", stats.TotalProcessingTime)
	}
	if stats.LastEventAt.IsZero() {
		t.Fatalf("expected last event timestamp to be set")
	}
	if stats.Latency.SampleSize != 2 {
		t.Fatalf("expected latency metrics to have samples, got %d", stats.Latency.SampleSize)
	}
	if stats.Latency.LastNs != int64(7*time.Millisecond) {
		t.Fatalf("expected last latency sample, got %d", stats.Latency.LastNs)
	}
	if stats.Throughput.TotalEvents != 2 {
		t.Fatalf("expected throughput total to track processed events")
	}
	if stats.Resource.Goroutines == 0 {
		t.Fatalf("expected resource snapshot to be taken")
	}
}

func TestLatencyWindowWrapsAround(t *testing.T) {
	lw := newLatencyWindow(4)
	for _, d := range []time.Duration{10, 20, 30, 40, 50, 60} {
		lw.Add(d * time.Nanosecond)
	}

	metrics := lw.Snapshot()
	if metrics.SampleSize != 4 {
		t.Fatalf("expected window to cap at 4 samples, got %d", metrics.SampleSize)
	}
	if metrics.LastNs != 60 {
		t.Fatalf("expected last sample 60ns, got %d", metrics.LastNs)
	}
	if metrics.P50Ns < 30 || metrics.P50Ns > 60 {
		t.Fatalf("expected p50 within retained window, got %d", metrics.P50Ns)
	}
	if metrics.P99Ns < metrics.P50Ns {
		t.Fatalf("expected p99 >= p50, got p50=%d p99=%d", metrics.P50Ns, metrics.P99Ns)
	}
}

func TestLatencyWindowEmptySnapshot(t *testing.T) {
	lw := newLatencyWindow(8)
	metrics := lw.Snapshot()
	if metrics.SampleSize != 0 {
		t.Fatalf("expected empty snapshot, got %d samples", metrics.SampleSize)
	}
}

func TestPercentileInterpolates(t *testing.T) {
	samples := []int64{10, 20, 30, 40}
	if got := percentile(samples, 0); got != 10 {
		t.Fatalf("expected min at quantile 0, got %d", got)
	}
	if got := percentile(samples, 1); got != 40 {
		t.Fatalf("expected max at quantile 1, got %d", got)
	}
	if got := percentile(samples, 0.5); got != 25 {
		t.Fatalf("expected interpolated median 25, got %d", got)
	}
	if got := percentile(nil, 0.5); got != 0 {
		t.Fatalf("expected 0 for empty samples, got %d", got)
	}
}

func TestThroughputWindowEvictsOldSamples(t *testing.T) {
	tw := newThroughputWindow(100 * time.Millisecond)
	base := time.Now()

	tw.AddAndSnapshot(base)
	tw.AddAndSnapshot(base.Add(50 * time.Millisecond))
	snap := tw.AddAndSnapshot(base.Add(200 * time.Millisecond))

	if snap.Count != 1 {
		t.Fatalf("expected old samples to be evicted, got %d in window", snap.Count)
	}
	if snap.CurrentEPS <= 0 {
		t.Fatalf("expected positive throughput, got %f", snap.CurrentEPS)
	}
}

func TestModuleStatsMarshalJSON(t *testing.T) {
	stats := newModuleStats("clustering", nil)
	stats.recordEvent(2*time.Millisecond, nil)

	raw, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(raw), `"events_processed":1`) {
		t.Fatalf("expected marshalled stats to carry counts, got %s", raw)
	}
}
