package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	sessionsStartedTotal   atomic.Uint64
	sessionsCompletedTotal atomic.Uint64
	sessionsFailedTotal    atomic.Uint64
	sessionsRejectedTotal  atomic.Uint64
	notificationsFailed    atomic.Uint64

	transcriptEventsReceived      atomic.Uint64
	transcriptEventsDelivered     atomic.Uint64
	transcriptEventsFailed        atomic.Uint64
	transcriptEventsUnrecoverable atomic.Uint64

	turnDuration = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 180000})
)

// IncSessionStarted counts interviews that passed validation and reached the assistant.
func IncSessionStarted() {
	sessionsStartedTotal.Add(1)
}

// IncSessionCompleted counts interviews that ended with a decision and a saved transcript.
func IncSessionCompleted() {
	sessionsCompletedTotal.Add(1)
}

// IncSessionFailed counts interviews aborted by an assistant or persistence failure.
func IncSessionFailed() {
	sessionsFailedTotal.Add(1)
}

// IncSessionRejected counts form submissions refused before any assistant call.
func IncSessionRejected() {
	sessionsRejectedTotal.Add(1)
}

// IncNotificationFailed counts transcript notifications that could not be delivered.
func IncNotificationFailed() {
	notificationsFailed.Add(1)
}

// IncTranscriptEventReceived counts transcript.saved events pulled by the worker.
func IncTranscriptEventReceived() {
	transcriptEventsReceived.Add(1)
}

// IncTranscriptEventDelivered counts events whose transcript reached every channel.
func IncTranscriptEventDelivered() {
	transcriptEventsDelivered.Add(1)
}

// IncTranscriptEventFailed counts events left on the queue for redelivery.
func IncTranscriptEventFailed() {
	transcriptEventsFailed.Add(1)
}

// IncTranscriptEventUnrecoverable counts malformed events deleted without delivery.
func IncTranscriptEventUnrecoverable() {
	transcriptEventsUnrecoverable.Add(1)
}

// ObserveTurnDurationMs records one assistant round trip in milliseconds.
func ObserveTurnDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	turnDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "sessions_started_total", "Total interview sessions started", sessionsStartedTotal.Load())
	writeCounter(&buf, "sessions_completed_total", "Total interview sessions completed", sessionsCompletedTotal.Load())
	writeCounter(&buf, "sessions_failed_total", "Total interview sessions failed", sessionsFailedTotal.Load())
	writeCounter(&buf, "sessions_rejected_total", "Total form submissions rejected before the assistant was called", sessionsRejectedTotal.Load())
	writeCounter(&buf, "notifications_failed_total", "Total transcript notifications that failed", notificationsFailed.Load())
	writeCounter(&buf, "transcript_events_received_total", "Total transcript.saved events received by the worker", transcriptEventsReceived.Load())
	writeCounter(&buf, "transcript_events_delivered_total", "Total transcript.saved events delivered", transcriptEventsDelivered.Load())
	writeCounter(&buf, "transcript_events_failed_total", "Total transcript.saved events left for redelivery", transcriptEventsFailed.Load())
	writeCounter(&buf, "transcript_events_unrecoverable_total", "Total malformed transcript.saved events deleted", transcriptEventsUnrecoverable.Load())
	writeHistogram(&buf, "assistant_turn_duration_ms", "Assistant round trip duration in milliseconds", turnDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	// counts are per-bucket; writeHistogram accumulates them
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// SinceMillis returns the elapsed time since start in milliseconds.
func SinceMillis(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
