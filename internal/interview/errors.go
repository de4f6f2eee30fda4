package interview

import "errors"

var (
	// ErrInvalidInput is returned for incomplete or malformed form submissions.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSessionNotFound is returned for unknown or expired session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionClosed is returned when answering a session that already finished.
	ErrSessionClosed = errors.New("session closed")
)
