package transcript

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"applicant-interview/internal/shared/storage/object"
)

// FileName is the transcript object name inside each thread's directory.
const FileName = "dialog.txt"

// ErrPersistence is returned when the transcript cannot be written.
var ErrPersistence = errors.New("transcript persistence failed")

// Saved describes a flushed transcript.
type Saved struct {
	ThreadID string
	Key      string
	Location string
	Bytes    int64
	Body     string
}

// Writer flushes dialog logs to an object store.
type Writer struct {
	store object.ObjectStore
}

// NewWriter constructs a Writer.
func NewWriter(store object.ObjectStore) *Writer {
	return &Writer{store: store}
}

// Key returns the object key for a thread's transcript.
func Key(threadID string) string {
	return path.Join(threadID, FileName)
}

// Flush writes log to <threadID>/dialog.txt. A log is flushed at most once; a second call
// returns ErrAlreadyFlushed even if the first write failed.
func (w *Writer) Flush(ctx context.Context, threadID string, log *DialogLog) (Saved, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" || strings.ContainsAny(threadID, `/\`) {
		return Saved{}, fmt.Errorf("%w: invalid thread id %q", ErrPersistence, threadID)
	}
	key, err := object.CleanKey(Key(threadID))
	if err != nil {
		return Saved{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	body, err := log.seal()
	if err != nil {
		return Saved{}, err
	}

	n, err := w.store.Put(ctx, key, "text/plain; charset=utf-8", strings.NewReader(body))
	if err != nil {
		return Saved{}, fmt.Errorf("%w: put %s: %w", ErrPersistence, key, err)
	}
	return Saved{
		ThreadID: threadID,
		Key:      key,
		Location: w.store.Location(key),
		Bytes:    n,
		Body:     body,
	}, nil
}
