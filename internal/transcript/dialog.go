package transcript

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// TimestampLayout is the start-time format written to the transcript.
const TimestampLayout = "2006-01-02 15:04:05"

// ErrAlreadyFlushed is returned when a log is appended to or flushed after its final write.
var ErrAlreadyFlushed = errors.New("dialog log already flushed")

// DialogLog is the append-only record of one session.
type DialogLog struct {
	mu      sync.Mutex
	entries []string
	flushed bool
}

// NewDialogLog returns an empty log.
func NewDialogLog() *DialogLog {
	return &DialogLog{}
}

// Append adds an entry at the end.
func (d *DialogLog) Append(entry string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.flushed {
		return ErrAlreadyFlushed
	}
	d.entries = append(d.entries, entry)
	return nil
}

// Entries returns a copy of the entries in append order.
func (d *DialogLog) Entries() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.entries...)
}

// Len returns the number of entries.
func (d *DialogLog) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Render joins the entries with blank lines.
func (d *DialogLog) Render() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.Join(d.entries, "\n\n")
}

// Flushed reports whether the final write has been attempted.
func (d *DialogLog) Flushed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flushed
}

// seal marks the log flushed and returns its rendered body.
func (d *DialogLog) seal() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.flushed {
		return "", ErrAlreadyFlushed
	}
	d.flushed = true
	return strings.Join(d.entries, "\n\n"), nil
}

// StartedEntry records when the session began.
func StartedEntry(at time.Time) string {
	return "Dialog with applicant started at:\n" + at.Format(TimestampLayout)
}

// UserInfoEntry records the submitted form fields.
func UserInfoEntry(name, vacancy, cvFileName string) string {
	return fmt.Sprintf("User Information:\nName: %s\nVacancy: %s\nCV: %s", name, vacancy, cvFileName)
}

// VacancyEntry records the vacancy detail as shown to the assistant.
func VacancyEntry(details string) string {
	return "Vacancy details at the time of the conversation:\n" + details
}

// AnswerEntry records one applicant reply.
func AnswerEntry(answer string) string {
	return "--------------\nApplicant answer:\n " + answer + "\n---------------"
}

// AssistantEntry records one assistant reply.
func AssistantEntry(reply string) string {
	return "Assistant: " + reply
}
