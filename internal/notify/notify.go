package notify

import (
	"context"

	"applicant-interview/internal/shared/metrics"
	"applicant-interview/internal/shared/telemetry"
)

// Subject is used for every transcript notification.
const Subject = "New Job Application Dialog"

// Notifier delivers a message on one channel. Send reports success and never returns an
// error; implementations log the cause of a failure themselves.
type Notifier interface {
	Name() string
	Send(ctx context.Context, subject, body, recipient string) bool
}

// Dispatcher fans a finished transcript out to every configured channel when enabled.
type Dispatcher struct {
	enabled   bool
	recipient string
	channels  []Notifier
}

// NewDispatcher constructs a Dispatcher. With enabled false, Notify is a no-op.
func NewDispatcher(enabled bool, recipient string, channels ...Notifier) *Dispatcher {
	return &Dispatcher{enabled: enabled, recipient: recipient, channels: channels}
}

// Enabled reports whether notifications will be sent.
func (d *Dispatcher) Enabled() bool {
	return d != nil && d.enabled && len(d.channels) > 0
}

// Notify sends body on every channel and reports whether all of them succeeded.
func (d *Dispatcher) Notify(ctx context.Context, body string, fields map[string]any) bool {
	if !d.Enabled() {
		return false
	}
	ok := true
	for _, ch := range d.channels {
		if ch.Send(ctx, Subject, body, d.recipient) {
			continue
		}
		ok = false
		metrics.IncNotificationFailed()
		logFields := map[string]any{"channel": ch.Name()}
		for k, v := range fields {
			logFields[k] = v
		}
		telemetry.Warn("notify.failed", logFields)
	}
	return ok
}
