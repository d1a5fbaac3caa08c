package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aichat.dev/chat-gateway/internal/apperr"
)

// stubProvider records the conversation it was asked to answer.
type stubProvider struct {
	name  string
	reply string
	err   error
	got   []Message
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	p.got = messages
	return p.reply, p.err
}

func TestProviderRegistryResolve(t *testing.T) {
	groq := &stubProvider{name: ProviderGroq}
	gemini := &stubProvider{name: ProviderGemini}
	r := NewProviderRegistry(groq, gemini)

	tests := []struct {
		id   string
		want string
	}{
		{"gemini", ProviderGemini},
		{"  Gemini ", ProviderGemini},
		{"groq", ProviderGroq},
		{"", ProviderGroq},
		{"unknown-provider", ProviderGroq},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			p, err := r.Resolve(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
		})
	}

	assert.Equal(t, []string{"gemini", "groq"}, r.Names())
}

func TestProviderRegistryWithoutDefault(t *testing.T) {
	r := NewProviderRegistry(&stubProvider{name: ProviderGemini})
	_, err := r.Resolve("unknown")
	assert.True(t, apperr.Is(err, apperr.KindConfig))
}

func TestTranscript(t *testing.T) {
	got := Transcript([]Message{
		{Role: "system", Content: "Be brief."},
		{Role: "user", Content: "Hi"},
		{Role: "assistant", Content: "Hello!"},
	})
	assert.Equal(t, "SYSTEM: Be brief.\nUSER: Hi\nASSISTANT: Hello!", got)
}

func TestUnconfiguredProvider(t *testing.T) {
	p := NewUnconfiguredProvider(ProviderDeepSeek, "DEEPSEEK_API_KEY")
	_, err := p.Generate(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindProvider))
	assert.Contains(t, err.Error(), "DEEPSEEK_API_KEY")
}

func TestOpenAICompatibleProvider(t *testing.T) {
	var gotAuth string
	var gotBody struct {
		Model    string    `json:"model"`
		Messages []Message `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/v1/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"llama","choices":[{"index":0,"message":{"role":"assistant","content":"Recursion is a function calling itself."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p := NewOpenAICompatibleProvider(ProviderGroq, "gsk-test", srv.URL+"/openai/v1", "llama", time.Second*5)
	reply, err := p.Generate(context.Background(), []Message{{Role: "user", Content: "Explain recursion"}})
	require.NoError(t, err)

	assert.Equal(t, "Recursion is a function calling itself.", reply)
	assert.Equal(t, "Bearer gsk-test", gotAuth)
	assert.Equal(t, "llama", gotBody.Model)
	assert.Equal(t, []Message{{Role: "user", Content: "Explain recursion"}}, gotBody.Messages)
}

func TestOpenAICompatibleProviderErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"no choices", http.StatusOK, `{"id":"c1","choices":[]}`, "no choices returned"},
		{"upstream error", http.StatusUnauthorized, `{"error":{"message":"Invalid API Key","type":"invalid_request_error"}}`, "Invalid API Key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewOpenAICompatibleProvider(ProviderDeepSeek, "key", srv.URL, "deepseek-chat", time.Second*5)
			_, err := p.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}})
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindProvider))
			assert.Contains(t, apperr.PublicMessage(err), tt.wantMsg)
			assert.Contains(t, apperr.PublicMessage(err), "deepseek")
		})
	}
}

func TestHuggingFaceProvider(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantReply string
		wantErr   string
	}{
		{"generation array", http.StatusOK, `[{"generated_text":"Paris"}]`, "Paris", ""},
		{"other shape", http.StatusOK, `{"answer":"Paris"}`, `{"answer":"Paris"}`, ""},
		{"empty array", http.StatusOK, `[]`, `[]`, ""},
		{"model loading", http.StatusServiceUnavailable, `{"error":"Model is currently loading"}`, "", "Model is currently loading"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var inputs map[string]string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/models/google/flan-t5-large", r.URL.Path)
				assert.Equal(t, "Bearer hf-test", r.Header.Get("Authorization"))
				json.NewDecoder(r.Body).Decode(&inputs)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewHuggingFaceProvider("hf-test", srv.URL+"/models/", "google/flan-t5-large", time.Second*5)
			reply, err := p.Generate(context.Background(), []Message{
				{Role: "system", Content: "Answer briefly."},
				{Role: "user", Content: "Capital of France?"},
			})

			assert.Equal(t, "SYSTEM: Answer briefly.\nUSER: Capital of France?", inputs["inputs"])
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, apperr.Is(err, apperr.KindProvider))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantReply, reply)
		})
	}
}
