package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aichat.dev/chat-gateway/internal/apperr"
)

func newTestChatService() (*ChatService, *stubProvider, *stubProvider) {
	groq := &stubProvider{name: ProviderGroq, reply: "from groq"}
	gemini := &stubProvider{name: ProviderGemini, reply: "from gemini"}
	return NewChatService(NewProviderRegistry(groq, gemini)), groq, gemini
}

func TestChatSingleMessageUsesDefaultSystemPrompt(t *testing.T) {
	svc, groq, _ := newTestChatService()

	res, err := svc.Chat(context.Background(), ChatRequest{Message: "  hello  "})
	require.NoError(t, err)

	assert.Equal(t, &ChatResult{Reply: "from groq", Provider: ProviderGroq}, res)
	assert.Equal(t, []Message{
		{Role: "system", Content: SystemPromptFor(ModeGeneral)},
		{Role: "user", Content: "hello"},
	}, groq.got)
}

func TestChatSingleMessageUsesModePrompt(t *testing.T) {
	svc, _, gemini := newTestChatService()

	_, err := svc.Chat(context.Background(), ChatRequest{Provider: "gemini", Mode: "coding", Message: "fix my loop"})
	require.NoError(t, err)

	require.Len(t, gemini.got, 2)
	assert.Equal(t, SystemPromptFor("coding"), gemini.got[0].Content)
}

func TestChatUnknownProviderFallsBackToGroq(t *testing.T) {
	svc, groq, gemini := newTestChatService()

	res, err := svc.Chat(context.Background(), ChatRequest{Provider: "unknown-provider", Message: "hi"})
	require.NoError(t, err)

	assert.Equal(t, ProviderGroq, res.Provider)
	assert.NotNil(t, groq.got)
	assert.Nil(t, gemini.got)
}

func TestChatMessageHistory(t *testing.T) {
	history := []Message{
		{Role: "user", Content: "What is Go?"},
		{Role: "assistant", Content: "A programming language."},
		{Role: "user", Content: "Who made it?"},
	}

	tests := []struct {
		name      string
		req       ChatRequest
		wantFirst *Message
	}{
		{"as given", ChatRequest{Messages: history}, nil},
		{"explicit system prompt", ChatRequest{Messages: history, SystemPrompt: "Be terse."}, &Message{Role: "system", Content: "Be terse."}},
		{"mode prompt", ChatRequest{Messages: history, Mode: "study"}, &Message{Role: "system", Content: SystemPromptFor("study")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, groq, _ := newTestChatService()
			_, err := svc.Chat(context.Background(), tt.req)
			require.NoError(t, err)

			want := history
			if tt.wantFirst != nil {
				want = append([]Message{*tt.wantFirst}, history...)
			}
			assert.Equal(t, want, groq.got)
		})
	}
}

func TestChatKeepsExistingSystemMessage(t *testing.T) {
	svc, groq, _ := newTestChatService()
	msgs := []Message{{Role: "system", Content: "Custom."}, {Role: "user", Content: "hi"}}

	_, err := svc.Chat(context.Background(), ChatRequest{Messages: msgs, SystemPrompt: "Ignored.", Mode: "cv"})
	require.NoError(t, err)
	assert.Equal(t, msgs, groq.got)
}

func TestChatValidation(t *testing.T) {
	tests := []struct {
		name string
		req  ChatRequest
	}{
		{"empty", ChatRequest{}},
		{"blank message", ChatRequest{Message: "   "}},
		{"bad role", ChatRequest{Messages: []Message{{Role: "bot", Content: "hi"}}}},
		{"empty content", ChatRequest{Messages: []Message{{Role: "user"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, groq, _ := newTestChatService()
			_, err := svc.Chat(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			assert.Nil(t, groq.got)
		})
	}
}

func TestChatProviderFailure(t *testing.T) {
	svc, groq, _ := newTestChatService()
	groq.err = errors.New("connection reset")

	_, err := svc.Chat(context.Background(), ChatRequest{Message: "hi"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindProvider))
	assert.Equal(t, "groq request failed", apperr.PublicMessage(err))
}

func TestSystemPromptFor(t *testing.T) {
	assert.Equal(t, SystemPromptFor("general"), SystemPromptFor("no-such-mode"))
	assert.Equal(t, SystemPromptFor("translation"), SystemPromptFor(" Translation "))
	assert.NotEqual(t, SystemPromptFor("general"), SystemPromptFor("cv"))
}
