package interview

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"applicant-interview/internal/assistant"
	"applicant-interview/internal/extract"
	"applicant-interview/internal/shared/server/middleware"
	"applicant-interview/internal/shared/server/respond"
	"applicant-interview/internal/transcript"
	"applicant-interview/internal/vacancies"
)

const defaultMaxUpload = 10 << 20 // 10MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc            *Service
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUpload
	}
	return &Handler{Svc: svc, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches session routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sessions", h.start)
	rg.GET("/sessions/:id", h.status)
	rg.POST("/sessions/:id/answers", h.answer)
}

type turnResponse struct {
	SessionID      string `json:"sessionId"`
	ThreadID       string `json:"threadId"`
	Reply          string `json:"reply"`
	Terminal       bool   `json:"terminal"`
	ClosingMessage string `json:"closingMessage,omitempty"`
	CloseAfterMs   int64  `json:"closeAfterMs,omitempty"`
	TranscriptKey  string `json:"transcriptKey,omitempty"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type statusResponse struct {
	SessionID string `json:"sessionId"`
	ThreadID  string `json:"threadId"`
	Vacancy   string `json:"vacancy"`
	State     State  `json:"state"`
	Turns     int    `json:"turns"`
	StartedAt string `json:"startedAt"`
}

func (h *Handler) start(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	in := StartInput{
		Name:    c.PostForm("name"),
		Vacancy: c.PostForm("vacancy"),
	}
	fileHeader, err := c.FormFile("cv")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "CV file is too large", gin.H{"limitBytes": h.MaxUploadBytes})
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "cv file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	in.CVFileName = fileHeader.Filename
	in.CV = data

	turn, err := h.Svc.Start(c.Request.Context(), in)
	if turn.SessionID != "" {
		c.Set(middleware.SessionIDKey, turn.SessionID)
	}
	if err != nil {
		h.writeError(c, err, turn)
		return
	}
	respond.Created(c, h.toResponse(turn))
}

func (h *Handler) answer(c *gin.Context) {
	sessionID := c.Param("id")
	c.Set(middleware.SessionIDKey, sessionID)

	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	turn, err := h.Svc.Answer(c.Request.Context(), sessionID, req.Answer)
	if err != nil {
		h.writeError(c, err, turn)
		return
	}
	respond.OK(c, h.toResponse(turn))
}

func (h *Handler) status(c *gin.Context) {
	sessionID := c.Param("id")
	c.Set(middleware.SessionIDKey, sessionID)

	snap, err := h.Svc.Session(sessionID)
	if err != nil {
		h.writeError(c, err, Turn{})
		return
	}
	respond.OK(c, statusResponse{
		SessionID: snap.ID,
		ThreadID:  snap.ThreadID,
		Vacancy:   snap.Applicant.Vacancy,
		State:     snap.State,
		Turns:     snap.Turns,
		StartedAt: snap.StartedAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) toResponse(turn Turn) turnResponse {
	resp := turnResponse{
		SessionID:     turn.SessionID,
		ThreadID:      turn.ThreadID,
		Reply:         turn.Reply,
		Terminal:      turn.Terminal,
		TranscriptKey: turn.TranscriptKey,
	}
	if turn.Terminal {
		resp.ClosingMessage = ClosingMessage
		resp.CloseAfterMs = turn.CloseAfter.Milliseconds()
	}
	return resp
}

func (h *Handler) writeError(c *gin.Context, err error, turn Turn) {
	var unsupported *extract.UnsupportedFileTypeError
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": "), nil)
	case errors.Is(err, vacancies.ErrNotFound):
		respond.Error(c, http.StatusUnprocessableEntity, "vacancy_not_found", "Selected vacancy not found in the data.", nil)
	case errors.As(err, &unsupported):
		respond.Error(c, http.StatusUnsupportedMediaType, "unsupported_file_type", "Unsupported file type. Please upload a .pdf, .docx or .txt file.", gin.H{"extension": unsupported.Ext})
	case errors.Is(err, extract.ErrDecode):
		respond.Error(c, http.StatusUnprocessableEntity, "decode_error", "The uploaded CV could not be read.", nil)
	case errors.Is(err, ErrSessionNotFound):
		respond.Error(c, http.StatusNotFound, "session_not_found", "Session not found or expired.", nil)
	case errors.Is(err, ErrSessionClosed):
		respond.Error(c, http.StatusConflict, "session_closed", "This conversation has already ended.", nil)
	case errors.Is(err, assistant.ErrRunTimeout):
		respond.Error(c, http.StatusGatewayTimeout, "assistant_timeout", "The assistant took too long to answer. Please start again.", nil)
	case errors.Is(err, assistant.ErrUnavailable), errors.Is(err, assistant.ErrRunFailed), errors.Is(err, assistant.ErrEmptyReply):
		respond.Error(c, http.StatusBadGateway, "assistant_unavailable", "The assistant is unavailable. Please start again.", nil)
	case errors.Is(err, transcript.ErrPersistence), errors.Is(err, transcript.ErrAlreadyFlushed):
		respond.Error(c, http.StatusInternalServerError, "persistence_error", "The conversation finished but could not be saved.", h.toResponse(turn))
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Something went wrong.", nil)
	}
}
