package interview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"applicant-interview/internal/assistant"
	"applicant-interview/internal/queue"
	"applicant-interview/internal/shared/storage/object/local"
	"applicant-interview/internal/transcript"
	"applicant-interview/internal/vacancies"
)

type fakeAssistant struct {
	mu            sync.Mutex
	replies       []string
	failOn        int
	conversations int
	sends         []string
}

func (f *fakeAssistant) NewConversation() assistant.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations++
	return &fakeConversation{parent: f}
}

func (f *fakeAssistant) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

type fakeConversation struct {
	parent *fakeAssistant
	thread string
}

func (c *fakeConversation) ThreadID() string { return c.thread }

func (c *fakeConversation) Send(_ context.Context, query string) (string, error) {
	f := c.parent
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.thread == "" {
		c.thread = fmt.Sprintf("thread_%d", f.conversations)
	}
	f.sends = append(f.sends, query)
	if f.failOn > 0 && len(f.sends) == f.failOn {
		return "", fmt.Errorf("%w: connection reset", assistant.ErrUnavailable)
	}
	if len(f.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

type recordingQueue struct {
	mu   sync.Mutex
	msgs []queue.Message
}

func (q *recordingQueue) Send(_ context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return nil
}

type brokenStore struct{}

func (brokenStore) Put(context.Context, string, string, io.Reader) (int64, error) {
	return 0, errors.New("read-only file system")
}

func (brokenStore) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not found")
}

func (brokenStore) Location(key string) string { return key }

var fixedStart = time.Date(2024, 5, 6, 9, 30, 0, 0, time.UTC)

func testCatalog(t *testing.T) *vacancies.Catalog {
	t.Helper()
	c, err := vacancies.New([]vacancies.Vacancy{{
		Name:              "Backend Engineer",
		SuitabilityNeeded: "Go services",
		Requirements:      []string{"Go", "PostgreSQL"},
		PlusDetails:       []string{"Kubernetes"},
		Notes:             "Remote",
	}})
	require.NoError(t, err)
	return c
}

type fixture struct {
	svc       *Service
	assistant *fakeAssistant
	dir       string
	queue     *recordingQueue
}

func newFixture(t *testing.T, replies ...string) *fixture {
	t.Helper()
	dir := t.TempDir()
	fa := &fakeAssistant{replies: replies}
	q := &recordingQueue{}
	ids := 0
	svc := NewService(Deps{
		Catalog:   testCatalog(t),
		Assistant: fa,
		Writer:    transcript.NewWriter(local.New(dir)),
		Registry:  NewRegistry(time.Hour, nil),
		Queue:     q,
		Now:       func() time.Time { return fixedStart },
		NewID: func() string {
			ids++
			return fmt.Sprintf("session-%d", ids)
		},
	})
	return &fixture{svc: svc, assistant: fa, dir: dir, queue: q}
}

func aliceInput() StartInput {
	return StartInput{
		Name:       "Alice",
		Vacancy:    "Backend Engineer",
		CVFileName: "alice.txt",
		CV:         []byte("5 years Go experience"),
	}
}
