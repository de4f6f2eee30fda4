package metrics

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderIncludesSessionCounters(t *testing.T) {
	IncSessionStarted()
	IncSessionCompleted()
	ObserveTurnDurationMs(300)
	ObserveTurnDurationMs(-5)

	out := Render()
	for _, want := range []string{
		"# TYPE sessions_started_total counter",
		"# TYPE sessions_completed_total counter",
		"# TYPE sessions_failed_total counter",
		"# TYPE assistant_turn_duration_ms histogram",
		`assistant_turn_duration_ms_bucket{le="+Inf"}`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q:\n%s", want, out)
		}
	}
}

func TestHistogramCumulativeBuckets(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	snap := h.Snapshot()
	if snap.count != 3 || snap.sum != 555 {
		t.Fatalf("unexpected snapshot: count=%d sum=%v", snap.count, snap.sum)
	}
	if snap.counts[0] != 1 || snap.counts[1] != 1 {
		t.Fatalf("unexpected bucket counts: %v", snap.counts)
	}

	var buf bytes.Buffer
	writeHistogram(&buf, "h", "test", snap)
	out := buf.String()
	for _, want := range []string{`h_bucket{le="10"} 1`, `h_bucket{le="100"} 2`, `h_bucket{le="+Inf"} 3`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestFormatFloat(t *testing.T) {
	if got := formatFloat(250); got != "250" {
		t.Fatalf("expected 250, got %s", got)
	}
	if got := formatFloat(0.5); got != "0.5" {
		t.Fatalf("expected 0.5, got %s", got)
	}
}
