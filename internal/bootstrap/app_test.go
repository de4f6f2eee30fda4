package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"applicant-interview/internal/assistant/openai/openaitest"
	"applicant-interview/internal/shared/config"
	"applicant-interview/internal/shared/telemetry"
)

func testConfig(t *testing.T, srv *openaitest.Server) config.Config {
	t.Helper()
	cfg := config.FromViper(config.New())
	cfg.VacanciesPath = filepath.Join("..", "vacancies", "testdata", "vacancies.json")
	cfg.DialogsDir = t.TempDir()
	cfg.OpenAIAPIKey = "sk-test"
	cfg.AssistantID = srv.AssistantID
	cfg.OpenAIBaseURL = srv.URL
	cfg.PollInitialInterval = time.Millisecond
	cfg.PollMaxInterval = 2 * time.Millisecond
	cfg.PollTimeout = time.Second
	return cfg
}

func startForm(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("name", "Alice"))
	require.NoError(t, w.WriteField("vacancy", "Backend Engineer"))
	fw, err := w.CreateFormFile("cv", "alice.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("5 years Go experience"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestBuildServesFullInterview(t *testing.T) {
	srv := openaitest.NewServer("Tell me about your last project.", "Based on my analysis, you are a strong fit.")
	defer srv.Close()
	cfg := testConfig(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app, err := Build(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, app.Catalog.Len())
	assert.False(t, app.Notifier.Enabled())
	assert.Nil(t, app.Queue)

	body, contentType := startForm(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var started struct {
		SessionID string `json:"sessionId"`
		ThreadID  string `json:"threadId"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&started))

	answer, _ := json.Marshal(map[string]string{"answer": "A billing system in Go"})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+started.SessionID+"/answers", bytes.NewReader(answer))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"terminal":true`)

	require.NoError(t, app.Service.Wait(context.Background()))
	data, err := os.ReadFile(filepath.Join(cfg.DialogsDir, started.ThreadID, "dialog.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Assistant: Based on my analysis, you are a strong fit.")

	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/vacancies", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Data Analyst")
}

func TestBuildFailsOnUnknownAssistant(t *testing.T) {
	srv := openaitest.NewServer()
	defer srv.Close()
	cfg := testConfig(t, srv)
	cfg.AssistantID = "asst_missing"

	_, err := Build(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "asst_missing")
	assert.Equal(t, 1, strings.Count(err.Error(), "retrieve assistant"))
}

func TestBuildLogsAssistantReadyOnce(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	telemetry.SetLogger(zap.New(core))
	defer telemetry.SetLogger(nil)

	srv := openaitest.NewServer()
	defer srv.Close()
	_, err := Build(context.Background(), testConfig(t, srv))
	require.NoError(t, err)

	ready := logs.FilterMessage("assistant.ready").All()
	require.Len(t, ready, 1)
	assert.Equal(t, srv.AssistantID, ready[0].ContextMap()["assistant_id"])
}

func TestBuildFailsWithoutCatalog(t *testing.T) {
	srv := openaitest.NewServer()
	defer srv.Close()
	cfg := testConfig(t, srv)
	cfg.VacanciesPath = filepath.Join(t.TempDir(), "missing.json")

	_, err := Build(context.Background(), cfg)
	require.Error(t, err)
	assert.Equal(t, 0, srv.Requests())
}

func TestBuildRequiresOpenAICredentials(t *testing.T) {
	srv := openaitest.NewServer()
	defer srv.Close()
	cfg := testConfig(t, srv)
	cfg.OpenAIAPIKey = ""

	_, err := Build(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

type nopNotifier struct{}

func (nopNotifier) Name() string { return "nop" }

func (nopNotifier) Send(context.Context, string, string, string) bool { return true }

func TestBuildWorkerRequiresChannel(t *testing.T) {
	cfg := config.FromViper(config.New())
	cfg.DialogsDir = t.TempDir()

	_, err := BuildWorker(context.Background(), cfg)
	require.Error(t, err)

	p, err := BuildWorker(context.Background(), cfg, WithNotifiers(nopNotifier{}))
	require.NoError(t, err)
	assert.True(t, p.Notifier.Enabled())
}
