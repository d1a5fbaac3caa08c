package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiProvider sends the whole conversation as one transcript prompt;
// this integration does not use Gemini's multi-turn history.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*GeminiProvider, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Name() string { return ProviderGemini }

func (p *GeminiProvider) Close() {
	if p.client == nil {
		return
	}
	if err := p.client.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing GenAI client")
	}
}

func (p *GeminiProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	model := p.client.GenerativeModel(p.model)

	resp, err := model.GenerateContent(ctx, genai.Text(Transcript(messages)))
	if err != nil {
		var apiErr *googleapi.Error
		msg := ""
		if errors.As(err, &apiErr) {
			msg = apiErr.Message
		}
		return "", providerError(ProviderGemini, msg, err)
	}

	text := responseText(resp)
	if text == "" {
		return "", providerError(ProviderGemini, "empty response", nil)
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}
