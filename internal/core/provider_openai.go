package core

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAICompatibleProvider serves providers that speak the OpenAI chat
// completion API (Groq, DeepSeek).
type OpenAICompatibleProvider struct {
	name   string
	model  string
	client *openai.Client
}

func NewOpenAICompatibleProvider(name, apiKey, baseURL, model string, timeout time.Duration) *OpenAICompatibleProvider {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAICompatibleProvider{
		name:   name,
		model:  model,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

func (p *OpenAICompatibleProvider) Name() string { return p.name }

func (p *OpenAICompatibleProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	openaiMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		openaiMessages = append(openaiMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: openaiMessages,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", providerError(p.name, apiErr.Message, err)
		}
		return "", providerError(p.name, "", err)
	}

	if len(resp.Choices) == 0 {
		return "", providerError(p.name, "no choices returned", nil)
	}
	return resp.Choices[0].Message.Content, nil
}
