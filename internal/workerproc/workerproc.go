// Package workerproc turns transcript.saved queue events into notifications.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"applicant-interview/internal/notify"
	"applicant-interview/internal/queue"
	"applicant-interview/internal/shared/storage/object"
)

// maxTranscriptBytes caps how much of a stored transcript is read into a notification.
const maxTranscriptBytes = 4 << 20

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a payload that is not a valid event.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrUnknownType indicates an event this worker does not handle.
type ErrUnknownType struct {
	Meta MessageMeta
	Type string
}

func (e ErrUnknownType) Error() string { return "unknown message type " + e.Type }

// ErrProcess indicates delivery failed after successful parsing. The event should be retried.
type ErrProcess struct {
	SessionID string
	ThreadID  string
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process transcript"
	}
	return "process transcript: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether err means the message can never succeed and should be dropped.
func Unrecoverable(err error) bool {
	var (
		empty   ErrEmptyBody
		decode  ErrDecode
		unknown ErrUnknownType
	)
	return errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &unknown)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}
	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if msg.Type != queue.TypeTranscriptSaved {
		return msg, meta, ErrUnknownType{Meta: meta, Type: msg.Type}
	}
	if strings.TrimSpace(msg.Key) == "" {
		return msg, meta, ErrDecode{Meta: meta, Err: errors.New("missing transcript key")}
	}
	return msg, meta, nil
}

// Processor delivers saved transcripts through the notification channels.
type Processor struct {
	Store    object.ObjectStore
	Notifier *notify.Dispatcher
}

// HandleMessage parses body and delivers the transcript it points at.
func (p *Processor) HandleMessage(ctx context.Context, body string) (queue.Message, error) {
	msg, _, err := ParseMessage(body)
	if err != nil {
		return msg, err
	}
	return msg, p.Process(ctx, msg)
}

// Process reads the transcript named by msg and sends it on every channel.
func (p *Processor) Process(ctx context.Context, msg queue.Message) error {
	if p == nil || p.Store == nil || !p.Notifier.Enabled() {
		return ErrProcess{SessionID: msg.SessionID, ThreadID: msg.ThreadID, Err: errors.New("no notification channel configured")}
	}
	rc, err := p.Store.Open(ctx, msg.Key)
	if err != nil {
		return ErrProcess{SessionID: msg.SessionID, ThreadID: msg.ThreadID, Err: fmt.Errorf("open %s: %w", msg.Key, err)}
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxTranscriptBytes))
	if err != nil {
		return ErrProcess{SessionID: msg.SessionID, ThreadID: msg.ThreadID, Err: fmt.Errorf("read %s: %w", msg.Key, err)}
	}

	fields := map[string]any{
		"session_id": msg.SessionID,
		"thread_id":  msg.ThreadID,
		"key":        msg.Key,
	}
	if !p.Notifier.Notify(ctx, string(data), fields) {
		return ErrProcess{SessionID: msg.SessionID, ThreadID: msg.ThreadID, Err: errors.New("notification not delivered")}
	}
	return nil
}
