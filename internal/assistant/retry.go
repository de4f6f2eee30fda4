package assistant

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"applicant-interview/internal/shared/telemetry"
)

// RetryDelay is the pause before the single retry of a transient failure.
var RetryDelay = 300 * time.Millisecond

// Retryable marks errors that carry their own transient classification.
type Retryable interface {
	Temporary() bool
}

// Retry runs fn and, if it fails with a transient error, runs it once more after RetryDelay.
func Retry[T any](ctx context.Context, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	out, err := fn(ctx)
	if err == nil || !ShouldRetry(err) {
		return out, err
	}

	telemetry.Warn("assistant.retry", map[string]any{"op": op, "attempt": 1, "error": err})
	timer := time.NewTimer(RetryDelay)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
		var zero T
		return zero, ctx.Err()
	}
	return fn(ctx)
}

// ShouldRetry classifies err as transient: timeouts, 5xx and 429 responses, dropped connections.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var r Retryable
	if errors.As(err, &r) && r.Temporary() {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "client.timeout") {
		return true
	}
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "unexpected eof")
}
