package interview

import (
	"sync"
	"sync/atomic"
	"time"

	"applicant-interview/internal/assistant"
	"applicant-interview/internal/transcript"
)

// State is where a session is in the interview loop.
type State string

const (
	StateAwaitingAnswer State = "awaiting_answer"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

// Applicant is the submitted form, minus the CV bytes.
type Applicant struct {
	Name       string
	Vacancy    string
	CVFileName string
}

// Session is one applicant's interview. turnMu serializes turns; mu guards the short
// reads and writes of state so status checks never wait on the assistant.
type Session struct {
	ID        string
	Applicant Applicant
	StartedAt time.Time

	turnMu sync.Mutex
	conv   assistant.Conversation
	log    *transcript.DialogLog

	mu       sync.Mutex
	state    State
	threadID string
	turns    int

	lastActive atomic.Int64
}

func newSession(id string, applicant Applicant, conv assistant.Conversation, startedAt time.Time) *Session {
	s := &Session{
		ID:        id,
		Applicant: applicant,
		StartedAt: startedAt,
		conv:      conv,
		log:       transcript.NewDialogLog(),
		state:     StateAwaitingAnswer,
	}
	s.touch(startedAt)
	return s
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID        string
	ThreadID  string
	Applicant Applicant
	State     State
	Turns     int
	StartedAt time.Time
}

// Snapshot returns the session's current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:        s.ID,
		ThreadID:  s.threadID,
		Applicant: s.Applicant,
		State:     s.state,
		Turns:     s.turns,
		StartedAt: s.StartedAt,
	}
}

func (s *Session) currentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// recordTurn notes a completed assistant round trip.
func (s *Session) recordTurn() int {
	threadID := s.conv.ThreadID()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns++
	s.threadID = threadID
	return s.turns
}

func (s *Session) touch(at time.Time) {
	s.lastActive.Store(at.UnixNano())
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastActive.Load())
}
