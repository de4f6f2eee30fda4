package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"applicant-interview/internal/assistant"
	"applicant-interview/internal/shared/telemetry"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	betaHeader     = "assistants=v2"
	maxErrorBody   = 4 << 10
)

// Options configures the Assistants API client.
type Options struct {
	APIKey      string
	AssistantID string
	BaseURL     string
	Timeout     time.Duration
	Poll        assistant.PollPolicy
	HTTPClient  *http.Client
}

// Client implements assistant.Client on the OpenAI Assistants v2 API
// (threads, messages and runs).
type Client struct {
	apiKey      string
	assistantID string
	baseURL     string
	poll        assistant.PollPolicy
	httpClient  *http.Client
}

// NewClient constructs a new Assistants client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if strings.TrimSpace(opts.AssistantID) == "" {
		return nil, fmt.Errorf("ASSISTANT_ID is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		apiKey:      opts.APIKey,
		assistantID: strings.TrimSpace(opts.AssistantID),
		baseURL:     baseURL,
		poll:        opts.Poll,
		httpClient:  httpClient,
	}, nil
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Message string
	Type    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("openai http status %d", e.Status)
	}
	return fmt.Sprintf("openai http status %d: %s (%s)", e.Status, e.Message, e.Type)
}

// Temporary reports whether the request is worth repeating.
func (e *APIError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

type assistantObject struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Model string `json:"model"`
}

type threadObject struct {
	ID string `json:"id"`
}

type messageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type runRequest struct {
	AssistantID string `json:"assistant_id"`
}

type runObject struct {
	ID        string              `json:"id"`
	Status    assistant.RunStatus `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error,omitempty"`
}

type messageList struct {
	Data []messageObject `json:"data"`
}

type messageObject struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text *struct {
			Value string `json:"value"`
		} `json:"text,omitempty"`
	} `json:"content"`
}

// text returns the first text content part.
func (m messageObject) text() (string, bool) {
	for _, part := range m.Content {
		if part.Type == "text" && part.Text != nil {
			return part.Text.Value, true
		}
	}
	return "", false
}

type runList struct {
	Data []runObject `json:"data"`
}

type errorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Verify retrieves the configured assistant so a bad id fails at startup.
func (c *Client) Verify(ctx context.Context) error {
	var out assistantObject
	_, err := assistant.Retry(ctx, "retrieve_assistant", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.do(ctx, http.MethodGet, "/assistants/"+url.PathEscape(c.assistantID), nil, &out)
	})
	if err != nil {
		return fmt.Errorf("retrieve assistant %s: %w", c.assistantID, wrapUnavailable(err))
	}
	telemetry.Info("assistant.ready", map[string]any{"provider": "openai", "assistant_id": out.ID, "model": out.Model})
	return nil
}

// NewConversation returns a conversation with no thread yet.
func (c *Client) NewConversation() assistant.Conversation {
	return &conversation{client: c}
}

type conversation struct {
	client    *Client
	threadID  string
	lastRunID string
}

func (cv *conversation) ThreadID() string {
	return cv.threadID
}

// Send appends query as a user message, runs the assistant and returns the newest message text.
func (cv *conversation) Send(ctx context.Context, query string) (string, error) {
	c := cv.client
	if cv.threadID == "" {
		id, err := c.createThread(ctx)
		if err != nil {
			return "", err
		}
		cv.threadID = id
	}

	threadPath := "/threads/" + url.PathEscape(cv.threadID)
	if err := c.createMessage(ctx, threadPath, query); err != nil {
		return "", fmt.Errorf("create message thread=%s: %w", cv.threadID, wrapUnavailable(err))
	}

	run, err := c.createRun(ctx, threadPath, cv.lastRunID)
	if err != nil {
		return "", fmt.Errorf("create run thread=%s: %w", cv.threadID, wrapUnavailable(err))
	}
	cv.lastRunID = run.ID

	if err := c.waitForRun(ctx, threadPath, run); err != nil {
		return "", fmt.Errorf("thread=%s run=%s: %w", cv.threadID, run.ID, err)
	}

	list, err := c.latestMessage(ctx, threadPath)
	if err != nil {
		return "", fmt.Errorf("list messages thread=%s: %w", cv.threadID, wrapUnavailable(err))
	}
	if len(list.Data) == 0 {
		return "", fmt.Errorf("thread=%s: %w", cv.threadID, assistant.ErrEmptyReply)
	}
	if text, ok := list.Data[0].text(); ok {
		return text, nil
	}
	return "", fmt.Errorf("thread=%s message=%s: %w", cv.threadID, list.Data[0].ID, assistant.ErrEmptyReply)
}

// createMessage appends a user message. The POST is not idempotent: after a transient failure
// the newest message is checked first, and the write is repeated only if it did not land.
func (c *Client) createMessage(ctx context.Context, threadPath, query string) error {
	post := func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, threadPath+"/messages", messageRequest{Role: "user", Content: query}, nil)
	}
	err := post(ctx)
	if err == nil || !assistant.ShouldRetry(err) {
		return err
	}
	list, lerr := c.latestMessage(ctx, threadPath)
	if lerr != nil {
		return err
	}
	if len(list.Data) > 0 && list.Data[0].Role == "user" {
		if text, ok := list.Data[0].text(); ok && text == query {
			telemetry.Warn("assistant.write_confirmed", map[string]any{"op": "create_message", "error": err})
			return nil
		}
	}
	if werr := retryPause(ctx, "create_message", err); werr != nil {
		return werr
	}
	return post(ctx)
}

// createRun starts a run. After a transient failure a run newer than previous is adopted
// instead of starting a second one.
func (c *Client) createRun(ctx context.Context, threadPath, previous string) (runObject, error) {
	post := func(ctx context.Context) (runObject, error) {
		var out runObject
		err := c.do(ctx, http.MethodPost, threadPath+"/runs", runRequest{AssistantID: c.assistantID}, &out)
		return out, err
	}
	run, err := post(ctx)
	if err == nil || !assistant.ShouldRetry(err) {
		return run, err
	}
	runs, lerr := assistant.Retry(ctx, "list_runs", func(ctx context.Context) (runList, error) {
		var out runList
		err := c.do(ctx, http.MethodGet, threadPath+"/runs?order=desc&limit=1", nil, &out)
		return out, err
	})
	if lerr != nil {
		return runObject{}, err
	}
	if len(runs.Data) > 0 && runs.Data[0].ID != "" && runs.Data[0].ID != previous {
		telemetry.Warn("assistant.write_confirmed", map[string]any{"op": "create_run", "run_id": runs.Data[0].ID, "error": err})
		return runs.Data[0], nil
	}
	if werr := retryPause(ctx, "create_run", err); werr != nil {
		return runObject{}, werr
	}
	return post(ctx)
}

func (c *Client) latestMessage(ctx context.Context, threadPath string) (messageList, error) {
	return assistant.Retry(ctx, "list_messages", func(ctx context.Context) (messageList, error) {
		var out messageList
		err := c.do(ctx, http.MethodGet, threadPath+"/messages?order=desc&limit=1", nil, &out)
		return out, err
	})
}

func retryPause(ctx context.Context, op string, cause error) error {
	telemetry.Warn("assistant.retry", map[string]any{"op": op, "attempt": 1, "error": cause})
	timer := time.NewTimer(assistant.RetryDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// createThread retries once; a lost response leaves at most an empty, unused thread.
func (c *Client) createThread(ctx context.Context) (string, error) {
	thread, err := assistant.Retry(ctx, "create_thread", func(ctx context.Context) (threadObject, error) {
		var out threadObject
		err := c.do(ctx, http.MethodPost, "/threads", struct{}{}, &out)
		return out, err
	})
	if err != nil {
		return "", fmt.Errorf("create thread: %w", wrapUnavailable(err))
	}
	if thread.ID == "" {
		return "", fmt.Errorf("create thread: %w: empty thread id", assistant.ErrUnavailable)
	}
	return thread.ID, nil
}

func (c *Client) waitForRun(ctx context.Context, threadPath string, run runObject) error {
	current := run
	check := func(ctx context.Context) (bool, error) {
		if current.Status.Completed() {
			return true, nil
		}
		if !current.Status.Pending() {
			return false, runFailure(current)
		}
		next, err := assistant.Retry(ctx, "retrieve_run", func(ctx context.Context) (runObject, error) {
			var out runObject
			err := c.do(ctx, http.MethodGet, threadPath+"/runs/"+url.PathEscape(run.ID), nil, &out)
			return out, err
		})
		if err != nil {
			return false, fmt.Errorf("retrieve run: %w", wrapUnavailable(err))
		}
		current = next
		if current.Status.Completed() {
			return true, nil
		}
		if !current.Status.Pending() {
			return false, runFailure(current)
		}
		return false, nil
	}
	return c.poll.Wait(ctx, check)
}

func runFailure(run runObject) error {
	if run.LastError != nil && run.LastError.Message != "" {
		return fmt.Errorf("%w: status=%s code=%s: %s", assistant.ErrRunFailed, run.Status, run.LastError.Code, run.LastError.Message)
	}
	return fmt.Errorf("%w: status=%s", assistant.ErrRunFailed, run.Status)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", betaHeader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return fmt.Errorf("openai request timeout: %w", err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Status: resp.StatusCode}
		var env errorEnvelope
		if json.Unmarshal(raw, &env) == nil && env.Error != nil {
			apiErr.Message = env.Error.Message
			apiErr.Type = env.Error.Type
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("openai response parse: %w", err)
	}
	return nil
}

func wrapUnavailable(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, assistant.ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", assistant.ErrUnavailable, err)
}
