package interview

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(f.svc, 1<<20).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func multipartForm(t *testing.T, fields map[string]string, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := w.CreateFormFile("cv", fileName)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func postForm(t *testing.T, r http.Handler, fields map[string]string, fileName string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartForm(t, fields, fileName, content)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func postAnswer(r http.Handler, sessionID, answer string) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(map[string]string{"answer": answer})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+sessionID+"/answers", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

var aliceFields = map[string]string{"name": "Alice", "vacancy": "Backend Engineer"}

func TestHandlerFullConversation(t *testing.T) {
	f := newFixture(t, "What did you build?", "Based on my analysis, you are a strong fit.")
	r := newTestRouter(f)

	rec := postForm(t, r, aliceFields, "cv.txt", []byte("5 years Go experience"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var started turnResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&started))
	assert.Equal(t, "What did you build?", started.Reply)
	assert.False(t, started.Terminal)
	assert.Empty(t, started.ClosingMessage)

	status := httptest.NewRecorder()
	r.ServeHTTP(status, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+started.SessionID, nil))
	require.Equal(t, http.StatusOK, status.Code)
	assert.Contains(t, status.Body.String(), `"state":"awaiting_answer"`)

	rec = postAnswer(r, started.SessionID, "A payments platform")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var final turnResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&final))
	assert.True(t, final.Terminal)
	assert.Equal(t, ClosingMessage, final.ClosingMessage)
	assert.Equal(t, int64(20000), final.CloseAfterMs)
	assert.Equal(t, "thread_1/dialog.txt", final.TranscriptKey)

	rec = postAnswer(r, started.SessionID, "late")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "session_closed", decodeError(t, rec).Error.Code)
}

func TestHandlerVacancyNotFound(t *testing.T) {
	f := newFixture(t, "unused")
	r := newTestRouter(f)

	rec := postForm(t, r, map[string]string{"name": "Alice", "vacancy": "Astronaut"}, "cv.txt", []byte("cv"))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, "vacancy_not_found", env.Error.Code)
	assert.Equal(t, "Selected vacancy not found in the data.", env.Error.Message)
	assert.Equal(t, 0, f.assistant.sendCount())
}

func TestHandlerUnsupportedDoc(t *testing.T) {
	f := newFixture(t, "unused")
	r := newTestRouter(f)

	rec := postForm(t, r, aliceFields, "cv.doc", []byte("binary"))
	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, "unsupported_file_type", env.Error.Code)
	assert.Equal(t, "doc", env.Error.Details["extension"])
}

func TestHandlerDecodeError(t *testing.T) {
	f := newFixture(t, "unused")
	r := newTestRouter(f)

	rec := postForm(t, r, aliceFields, "cv.txt", []byte{0xff, 0xfe})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "decode_error", decodeError(t, rec).Error.Code)
}

func TestHandlerValidation(t *testing.T) {
	f := newFixture(t, "unused")
	r := newTestRouter(f)

	rec := postForm(t, r, map[string]string{"vacancy": "Backend Engineer"}, "cv.txt", []byte("cv"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, "validation_error", env.Error.Code)
	assert.Equal(t, "missing name", env.Error.Message)

	rec = postForm(t, r, aliceFields, "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postForm(t, r, aliceFields, "cv.exe", []byte("MZ"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerUploadTooLarge(t *testing.T) {
	f := newFixture(t, "unused")
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(f.svc, 512).RegisterRoutes(r.Group("/api/v1"))

	rec := postForm(t, r, aliceFields, "cv.txt", bytes.Repeat([]byte("a"), 4096))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "payload_too_large", decodeError(t, rec).Error.Code)
}

func TestHandlerUnknownSession(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)

	rec := postAnswer(r, "missing", "hello")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "session_not_found", decodeError(t, rec).Error.Code)
}

func TestHandlerAssistantUnavailable(t *testing.T) {
	f := newFixture(t)
	f.assistant.failOn = 1
	r := newTestRouter(f)

	rec := postForm(t, r, aliceFields, "cv.txt", []byte("cv"))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "assistant_unavailable", decodeError(t, rec).Error.Code)
}

func TestHandlerBadAnswerBody(t *testing.T) {
	f := newFixture(t, "Q?")
	r := newTestRouter(f)
	rec := postForm(t, r, aliceFields, "cv.txt", []byte("cv"))
	require.Equal(t, http.StatusCreated, rec.Code)
	var started turnResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&started))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+started.SessionID+"/answers", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	bad := httptest.NewRecorder()
	r.ServeHTTP(bad, req)
	require.Equal(t, http.StatusBadRequest, bad.Code)

	empty := postAnswer(r, started.SessionID, "")
	require.Equal(t, http.StatusBadRequest, empty.Code)
}

func TestPageListsVacanciesInOrder(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	r := gin.New()
	(&Page{Catalog: f.svc.catalog, APIBase: "/api/v1"}).RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<option value="Backend Engineer">Backend Engineer</option>`)
	assert.Contains(t, body, `accept=".pdf,.docx,.doc,.txt"`)
	assert.Contains(t, body, "window.close()")
}
