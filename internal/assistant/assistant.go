package assistant

import (
	"context"
	"errors"
)

// Client opens conversations against a remote assistant.
type Client interface {
	NewConversation() Conversation
}

// Conversation relays queries over one remote thread. The thread is created lazily by the
// first Send; until then ThreadID returns "". A Conversation is not safe for concurrent Sends.
type Conversation interface {
	ThreadID() string
	Send(ctx context.Context, query string) (string, error)
}

var (
	// ErrUnavailable wraps transport and API failures talking to the assistant.
	ErrUnavailable = errors.New("assistant unavailable")
	// ErrRunFailed is returned when a run ends in a state other than completed.
	ErrRunFailed = errors.New("assistant run failed")
	// ErrRunTimeout is returned when a run does not complete within the poll budget.
	ErrRunTimeout = errors.New("assistant run timed out")
	// ErrEmptyReply is returned when a completed run produced no readable text.
	ErrEmptyReply = errors.New("assistant returned empty reply")
)
