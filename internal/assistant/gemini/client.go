package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"applicant-interview/internal/assistant"
)

const defaultModel = "gemini-2.5-flash"

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type genaiChats struct {
	chats *genai.Chats
}

func (g genaiChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	chat, err := g.chats.Create(ctx, model, config, history)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// Client implements assistant.Client on Gemini chat sessions. Gemini keeps no server-side
// thread, so each conversation mints its own id and holds the chat history locally.
type Client struct {
	chats chatCreator
	model string
}

// NewClient creates a Client configured for the Gemini API backend.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	return &Client{chats: genaiChats{chats: client.Chats}, model: model}, nil
}

// Model returns the model name in use.
func (c *Client) Model() string {
	return c.model
}

// NewConversation returns a conversation with no chat yet.
func (c *Client) NewConversation() assistant.Conversation {
	return &conversation{client: c}
}

type conversation struct {
	client   *Client
	chat     chatSession
	threadID string
}

func (cv *conversation) ThreadID() string {
	return cv.threadID
}

func (cv *conversation) Send(ctx context.Context, query string) (string, error) {
	if cv.chat == nil {
		chat, err := assistant.Retry(ctx, "create_chat", func(ctx context.Context) (chatSession, error) {
			return cv.client.chats.Create(ctx, cv.client.model, nil, nil)
		})
		if err != nil {
			return "", fmt.Errorf("create chat: %w", wrap(err))
		}
		cv.chat = chat
		cv.threadID = "gemini-" + uuid.NewString()
	}

	resp, err := assistant.Retry(ctx, "send_message", func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		resp, err := cv.chat.SendMessage(ctx, genai.Part{Text: query})
		if err != nil {
			return nil, temporaryAPIError(err)
		}
		return resp, nil
	})
	if err != nil {
		return "", fmt.Errorf("send message thread=%s: %w", cv.threadID, wrap(err))
	}

	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("thread=%s: %w", cv.threadID, assistant.ErrEmptyReply)
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Text == "" || part.Thought {
				continue
			}
			builder.WriteString(part.Text)
		}
		if builder.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(builder.String())
}

type apiError struct {
	err  genai.APIError
	temp bool
}

func (e apiError) Error() string   { return e.err.Error() }
func (e apiError) Unwrap() error   { return e.err }
func (e apiError) Temporary() bool { return e.temp }

func temporaryAPIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiError{err: apiErr, temp: apiErr.Code >= http.StatusInternalServerError || apiErr.Code == http.StatusTooManyRequests}
	}
	return err
}

func wrap(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", assistant.ErrUnavailable, err)
}
