package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"applicant-interview/internal/assistant"
)

type fakeChat struct {
	mu       sync.Mutex
	replies  []fakeReply
	messages []string
}

type fakeReply struct {
	text string
	err  error
}

func (f *fakeChat) SendMessage(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, part := range parts {
		f.messages = append(f.messages, part.Text)
	}
	if len(f.replies) == 0 {
		return nil, errors.New("unexpected call")
	}
	next := f.replies[0]
	f.replies = f.replies[1:]
	if next.err != nil {
		return nil, next.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking", Thought: true},
				{Text: next.text},
			}},
		}},
	}, nil
}

type fakeChatCreator struct {
	chats   []*fakeChat
	created int
	models  []string
}

func (f *fakeChatCreator) Create(_ context.Context, model string, _ *genai.GenerateContentConfig, _ []*genai.Content) (chatSession, error) {
	if f.created >= len(f.chats) {
		return nil, errors.New("no chat prepared")
	}
	chat := f.chats[f.created]
	f.created++
	f.models = append(f.models, model)
	return chat, nil
}

func fastRetry(t *testing.T) {
	t.Helper()
	orig := assistant.RetryDelay
	assistant.RetryDelay = time.Millisecond
	t.Cleanup(func() { assistant.RetryDelay = orig })
}

func TestConversationKeepsOneChat(t *testing.T) {
	chat := &fakeChat{replies: []fakeReply{{text: "Tell me more."}, {text: "Based on my analysis, yes."}}}
	creator := &fakeChatCreator{chats: []*fakeChat{chat}}
	c := &Client{chats: creator, model: "gemini-test"}

	conv := c.NewConversation()
	assert.Empty(t, conv.ThreadID())

	reply, err := conv.Send(context.Background(), "opening")
	require.NoError(t, err)
	assert.Equal(t, "Tell me more.", reply)
	threadID := conv.ThreadID()
	assert.True(t, strings.HasPrefix(threadID, "gemini-"), threadID)

	reply, err = conv.Send(context.Background(), "answer")
	require.NoError(t, err)
	assert.Equal(t, "Based on my analysis, yes.", reply)
	assert.Equal(t, threadID, conv.ThreadID())

	assert.Equal(t, 1, creator.created)
	assert.Equal(t, []string{"gemini-test"}, creator.models)
	assert.Equal(t, []string{"opening", "answer"}, chat.messages)
}

func TestSendRetriesServerError(t *testing.T) {
	fastRetry(t)
	chat := &fakeChat{replies: []fakeReply{
		{err: genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}},
		{text: "retry ok"},
	}}
	c := &Client{chats: &fakeChatCreator{chats: []*fakeChat{chat}}, model: "m"}

	reply, err := c.NewConversation().Send(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "retry ok", reply)
}

func TestSendClientErrorNotRetried(t *testing.T) {
	fastRetry(t)
	chat := &fakeChat{replies: []fakeReply{
		{err: genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"}},
		{text: "should not be used"},
	}}
	c := &Client{chats: &fakeChatCreator{chats: []*fakeChat{chat}}, model: "m"}

	_, err := c.NewConversation().Send(context.Background(), "q")
	assert.ErrorIs(t, err, assistant.ErrUnavailable)
	var apiErr genai.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Code)
	assert.Len(t, chat.replies, 1)
}

func TestResponseTextEmpty(t *testing.T) {
	assert.Empty(t, responseText(nil))
	assert.Empty(t, responseText(&genai.GenerateContentResponse{}))
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), " ", "")
	assert.Error(t, err)
}
