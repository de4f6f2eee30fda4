package interview

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"applicant-interview/internal/assistant"
	"applicant-interview/internal/extract"
	"applicant-interview/internal/notify"
	"applicant-interview/internal/queue"
	"applicant-interview/internal/shared/metrics"
	"applicant-interview/internal/shared/telemetry"
	"applicant-interview/internal/shared/util"
	"applicant-interview/internal/transcript"
	"applicant-interview/internal/vacancies"
)

// ClosingMessage is shown after the final verdict, both inline and in the modal.
const ClosingMessage = "Thank you for providing your responses. Your answers have been noted.\n" +
	"If there is anything else you would like to add or ask, feel free to let me know.\n" +
	"Good luck with your job search and the application process!"

// DefaultCloseAfter is how long the page stays open after the final verdict.
const DefaultCloseAfter = 20 * time.Second

// AllowedExtensions is the upload allow-list for the CV field. doc is accepted by the
// form but rejected by the extractor.
var AllowedExtensions = []string{"pdf", "docx", "doc", "txt"}

// Deps are the collaborators of a Service. Notifier and Queue are optional.
type Deps struct {
	Catalog    *vacancies.Catalog
	Assistant  assistant.Client
	Writer     *transcript.Writer
	Registry   *Registry
	Notifier   *notify.Dispatcher
	Queue      queue.Client
	CloseAfter time.Duration
	Now        func() time.Time
	NewID      func() string
}

// Service runs interviews: one Session per applicant, from form submission to transcript.
type Service struct {
	catalog    *vacancies.Catalog
	assistant  assistant.Client
	writer     *transcript.Writer
	registry   *Registry
	notifier   *notify.Dispatcher
	queue      queue.Client
	closeAfter time.Duration
	now        func() time.Time
	newID      func() string

	background sync.WaitGroup
}

// NewService constructs a Service.
func NewService(d Deps) *Service {
	if d.Registry == nil {
		d.Registry = NewRegistry(0, d.Now)
	}
	if d.CloseAfter <= 0 {
		d.CloseAfter = DefaultCloseAfter
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return &Service{
		catalog:    d.Catalog,
		assistant:  d.Assistant,
		writer:     d.Writer,
		registry:   d.Registry,
		notifier:   d.Notifier,
		queue:      d.Queue,
		closeAfter: d.CloseAfter,
		now:        d.Now,
		newID:      d.NewID,
	}
}

// StartInput is a complete form submission.
type StartInput struct {
	Name       string
	Vacancy    string
	CVFileName string
	CV         []byte
}

// Turn is the outcome of one assistant round trip.
type Turn struct {
	SessionID     string
	ThreadID      string
	Reply         string
	Terminal      bool
	CloseAfter    time.Duration
	TranscriptKey string
}

// Registry returns the session registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Session returns a snapshot of an open session.
func (s *Service) Session(id string) (Snapshot, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

// Start validates the submission, sends the opening prompt and registers the session.
// Vacancy and CV problems are reported before any assistant call.
func (s *Service) Start(ctx context.Context, in StartInput) (Turn, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStart(in); err != nil {
		metrics.IncSessionRejected()
		return Turn{}, err
	}
	if name, err := util.SanitizeFileName(in.CVFileName); err == nil {
		in.CVFileName = name
	}
	startedAt := s.now()

	vacancy, err := s.catalog.Find(in.Vacancy)
	if err != nil {
		s.reject("vacancy_not_found", in, err)
		return Turn{}, err
	}

	ext := util.FileExtension(in.CVFileName)
	cvText, err := extract.Text(ctx, in.CV, ext)
	if err != nil {
		s.reject("cv_unreadable", in, err)
		return Turn{}, err
	}

	details := vacancies.Details(vacancy)
	applicant := Applicant{Name: in.Name, Vacancy: vacancy.Name, CVFileName: in.CVFileName}
	sess := newSession(s.newID(), applicant, s.assistant.NewConversation(), startedAt)
	for _, entry := range []string{
		transcript.StartedEntry(startedAt),
		transcript.UserInfoEntry(applicant.Name, applicant.Vacancy, applicant.CVFileName),
		transcript.VacancyEntry(details),
	} {
		if err := sess.log.Append(entry); err != nil {
			return Turn{}, err
		}
	}

	metrics.IncSessionStarted()
	telemetry.Info("session.started", map[string]any{
		"session_id":     sess.ID,
		"vacancy":        vacancy.Name,
		"applicant_hash": util.ShortHash(applicant.Name),
		"cv_ext":         ext,
		"cv_chars":       len(cvText),
	})

	sess.turnMu.Lock()
	defer sess.turnMu.Unlock()

	query := OpeningPrompt(vacancy.Name, cvText, details)
	reply, err := s.send(ctx, sess, query)
	if err != nil {
		s.fail(sess, err)
		return Turn{}, err
	}
	if err := sess.log.Append(transcript.AssistantEntry(reply)); err != nil {
		return Turn{}, err
	}

	s.registry.put(sess)
	return Turn{
		SessionID: sess.ID,
		ThreadID:  sess.conv.ThreadID(),
		Reply:     reply,
	}, nil
}

// Answer relays an applicant reply. When the assistant's reply carries the terminal phrase
// the transcript is flushed and the session closes.
func (s *Service) Answer(ctx context.Context, sessionID, answer string) (Turn, error) {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return Turn{}, err
	}
	if strings.TrimSpace(answer) == "" {
		return Turn{}, fmt.Errorf("%w: answer is required", ErrInvalidInput)
	}

	sess.turnMu.Lock()
	defer sess.turnMu.Unlock()
	if sess.currentState() != StateAwaitingAnswer {
		return Turn{}, ErrSessionClosed
	}
	sess.touch(s.now())

	if err := sess.log.Append(transcript.AnswerEntry(answer)); err != nil {
		return Turn{}, err
	}
	reply, err := s.send(ctx, sess, answer)
	if err != nil {
		s.fail(sess, err)
		return Turn{}, err
	}
	if err := sess.log.Append(transcript.AssistantEntry(reply)); err != nil {
		return Turn{}, err
	}

	turn := Turn{
		SessionID: sess.ID,
		ThreadID:  sess.conv.ThreadID(),
		Reply:     reply,
	}
	if !assistant.IsTerminal(reply) {
		return turn, nil
	}

	turn.Terminal = true
	turn.CloseAfter = s.closeAfter
	sess.setState(StateCompleted)

	saved, err := s.writer.Flush(ctx, turn.ThreadID, sess.log)
	if err != nil {
		sess.setState(StateFailed)
		metrics.IncSessionFailed()
		telemetry.Error("session.persist_failed", map[string]any{
			"session_id": sess.ID,
			"thread_id":  turn.ThreadID,
			"error":      err,
		})
		return turn, err
	}
	turn.TranscriptKey = saved.Key

	metrics.IncSessionCompleted()
	telemetry.Info("session.completed", map[string]any{
		"session_id": sess.ID,
		"thread_id":  turn.ThreadID,
		"location":   saved.Location,
		"bytes":      saved.Bytes,
	})
	s.afterFlush(context.WithoutCancel(ctx), sess, saved)
	return turn, nil
}

// Wait blocks until background notification work has finished or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OpeningPrompt builds the first query: the CV labeled with the vacancy, then its details.
func OpeningPrompt(vacancyName, cvText, details string) string {
	return fmt.Sprintf("Read the CV for the position of %s:\n%s\n\n%s", vacancyName, cvText, details)
}

func (s *Service) send(ctx context.Context, sess *Session, query string) (string, error) {
	start := time.Now()
	reply, err := sess.conv.Send(ctx, query)
	elapsed := metrics.SinceMillis(start)
	metrics.ObserveTurnDurationMs(elapsed)
	if err != nil {
		return "", err
	}
	turn := sess.recordTurn()
	telemetry.Info("session.turn", map[string]any{
		"session_id":  sess.ID,
		"thread_id":   sess.conv.ThreadID(),
		"turn":        turn,
		"duration_ms": elapsed,
		"terminal":    assistant.IsTerminal(reply),
	})
	return reply, nil
}

func (s *Service) fail(sess *Session, err error) {
	sess.setState(StateFailed)
	metrics.IncSessionFailed()
	telemetry.Error("session.failed", map[string]any{
		"session_id": sess.ID,
		"thread_id":  sess.conv.ThreadID(),
		"error":      err,
	})
}

func (s *Service) reject(reason string, in StartInput, err error) {
	metrics.IncSessionRejected()
	telemetry.Warn("session.rejected", map[string]any{
		"reason":         reason,
		"vacancy":        in.Vacancy,
		"applicant_hash": util.ShortHash(in.Name),
		"error":          err,
	})
}

func (s *Service) afterFlush(ctx context.Context, sess *Session, saved transcript.Saved) {
	if !s.notifier.Enabled() && s.queue == nil {
		return
	}
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		fields := map[string]any{"session_id": sess.ID, "thread_id": saved.ThreadID}
		if s.notifier.Enabled() {
			s.notifier.Notify(ctx, saved.Body, fields)
		}
		if s.queue != nil {
			msg := queue.NewTranscriptSaved(sess.ID, saved.ThreadID, sess.Applicant.Vacancy, saved.Key, saved.Location, saved.Bytes, s.now())
			if err := s.queue.Send(ctx, msg); err != nil {
				telemetry.Warn("queue.publish_failed", map[string]any{
					"session_id": sess.ID,
					"thread_id":  saved.ThreadID,
					"error":      err,
				})
			}
		}
	}()
}

func validateStart(in StartInput) error {
	var missing []string
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(in.Vacancy) == "" {
		missing = append(missing, "vacancy")
	}
	if strings.TrimSpace(in.CVFileName) == "" || len(in.CV) == 0 {
		missing = append(missing, "cv")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	if !slices.Contains(AllowedExtensions, util.FileExtension(in.CVFileName)) {
		return fmt.Errorf("%w: cv must be one of .pdf, .docx, .doc, .txt", ErrInvalidInput)
	}
	return nil
}
