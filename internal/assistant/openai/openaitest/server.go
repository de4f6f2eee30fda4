// Package openaitest provides an in-process fake of the Assistants API for tests.
package openaitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

// Server fakes threads, messages and runs. Each run completes after the configured number
// of pending status checks and appends the next queued reply to its thread.
// A thread accepts no new message or run while one of its runs is active.
type Server struct {
	*httptest.Server

	AssistantID string

	mu              sync.Mutex
	pendingPolls    int
	runStatus       string
	failNext        int
	failAfterWrites int
	replies         []string
	threads         int
	runs            map[string]*fakeRun
	runOrder        map[string][]string
	messages        map[string][]fakeMessage
	active          map[string]string
	requests        int
	lastAuth        string
	lastBeta        string
}

type fakeRun struct {
	thread string
	polls  int
	status string
}

type fakeMessage struct {
	role    string
	content string
}

// NewServer starts a fake that answers with replies in order.
func NewServer(replies ...string) *Server {
	s := &Server{
		AssistantID: "asst_test",
		replies:     replies,
		runs:        make(map[string]*fakeRun),
		runOrder:    make(map[string][]string),
		messages:    make(map[string][]fakeMessage),
		active:      make(map[string]string),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /assistants/{id}", s.getAssistant)
	mux.HandleFunc("POST /threads", s.createThread)
	mux.HandleFunc("POST /threads/{thread}/messages", s.createMessage)
	mux.HandleFunc("GET /threads/{thread}/messages", s.listMessages)
	mux.HandleFunc("POST /threads/{thread}/runs", s.createRun)
	mux.HandleFunc("GET /threads/{thread}/runs", s.listRuns)
	mux.HandleFunc("GET /threads/{thread}/runs/{run}", s.getRun)
	s.Server = httptest.NewServer(s.intercept(mux))
	return s
}

// SetPendingPolls makes each run report in_progress for n status checks.
func (s *Server) SetPendingPolls(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingPolls = n
}

// SetRunStatus makes runs finish with status instead of completed.
func (s *Server) SetRunStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runStatus = status
}

// FailNext makes the next n requests answer 500 without touching any state.
func (s *Server) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// FailAfterWrite makes the next n message or run creations store their write and then answer 502,
// as when a gateway drops the upstream response.
func (s *Server) FailAfterWrite(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAfterWrites = n
}

// Requests returns the number of API requests received.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Threads returns the number of threads created.
func (s *Server) Threads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threads
}

// Runs returns the number of runs created on a thread.
func (s *Server) Runs(thread string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runOrder[thread])
}

// UserMessages returns the user messages appended to a thread, in order.
func (s *Server) UserMessages(thread string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.messages[thread] {
		if m.role == "user" {
			out = append(out, m.content)
		}
	}
	return out
}

// Headers returns the Authorization and OpenAI-Beta headers of the last request.
func (s *Server) Headers() (auth, beta string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth, s.lastBeta
}

func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		s.lastAuth = r.Header.Get("Authorization")
		s.lastBeta = r.Header.Get("OpenAI-Beta")
		fail := s.failNext > 0
		if fail {
			s.failNext--
		}
		s.mu.Unlock()
		if fail {
			writeError(w, http.StatusInternalServerError, "upstream exploded", "server_error")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// lostResponse reports whether a just-stored write should be answered with 502. Callers hold mu.
func (s *Server) lostResponse() bool {
	if s.failAfterWrites == 0 {
		return false
	}
	s.failAfterWrites--
	return true
}

func (s *Server) getAssistant(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("id") != s.AssistantID {
		writeError(w, http.StatusNotFound, "No assistant found", "invalid_request_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": s.AssistantID, "model": "gpt-test"})
}

func (s *Server) createThread(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.threads++
	id := fmt.Sprintf("thread_%d", s.threads)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) createMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Role != "user" {
		writeError(w, http.StatusBadRequest, "bad message", "invalid_request_error")
		return
	}
	thread := r.PathValue("thread")
	s.mu.Lock()
	if run := s.active[thread]; run != "" {
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, "Can't add messages to "+thread+" while a run "+run+" is active.", "invalid_request_error")
		return
	}
	s.messages[thread] = append(s.messages[thread], fakeMessage{role: "user", content: body.Content})
	id := fmt.Sprintf("msg_%d", len(s.messages[thread]))
	lost := s.lostResponse()
	s.mu.Unlock()
	if lost {
		writeError(w, http.StatusBadGateway, "bad gateway", "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AssistantID string `json:"assistant_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.AssistantID != s.AssistantID {
		writeError(w, http.StatusNotFound, "No assistant found", "invalid_request_error")
		return
	}
	thread := r.PathValue("thread")
	s.mu.Lock()
	if run := s.active[thread]; run != "" {
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, "Thread "+thread+" already has an active run "+run+".", "invalid_request_error")
		return
	}
	id := fmt.Sprintf("run_%d", len(s.runs)+1)
	s.runs[id] = &fakeRun{thread: thread, status: "queued"}
	s.runOrder[thread] = append(s.runOrder[thread], id)
	s.active[thread] = id
	lost := s.lostResponse()
	s.mu.Unlock()
	if lost {
		writeError(w, http.StatusBadGateway, "bad gateway", "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "queued"})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	thread := r.PathValue("thread")
	s.mu.Lock()
	data := []any{}
	if order := s.runOrder[thread]; len(order) > 0 {
		id := order[len(order)-1]
		data = append(data, map[string]string{"id": id, "status": s.runs[id].status})
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("run")
	s.mu.Lock()
	run, ok := s.runs[id]
	if !ok || run.thread != r.PathValue("thread") {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "No run found", "invalid_request_error")
		return
	}
	if s.active[run.thread] == id {
		if run.polls >= s.pendingPolls {
			s.finish(run)
		} else {
			run.status = "in_progress"
		}
		run.polls++
	}
	status := run.status
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": status})
}

// finish ends an active run and, on success, appends the next reply. Callers hold mu.
func (s *Server) finish(run *fakeRun) {
	delete(s.active, run.thread)
	run.status = "completed"
	if s.runStatus != "" {
		run.status = s.runStatus
	}
	if run.status != "completed" {
		return
	}
	reply := "(no reply)"
	if len(s.replies) > 0 {
		reply = s.replies[0]
		s.replies = s.replies[1:]
	}
	s.messages[run.thread] = append(s.messages[run.thread], fakeMessage{role: "assistant", content: reply})
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	thread := r.PathValue("thread")
	s.mu.Lock()
	data := []any{}
	if msgs := s.messages[thread]; len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		data = append(data, map[string]any{
			"id":   fmt.Sprintf("msg_%d", len(msgs)),
			"role": last.role,
			"content": []any{map[string]any{
				"type": "text",
				"text": map[string]any{"value": last.content, "annotations": []any{}},
			}},
		})
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, status int, message, typ string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"message": message, "type": typ},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
