package core

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"aichat.dev/chat-gateway/internal/apperr"
)

type ChatRequest struct {
	Provider     string    `json:"provider"`
	Mode         string    `json:"mode"`
	Message      string    `json:"message"`
	Messages     []Message `json:"messages" validate:"omitempty,dive"`
	SystemPrompt string    `json:"systemPrompt"`
}

type ChatResult struct {
	Reply    string `json:"reply"`
	Provider string `json:"provider"`
}

type ChatService struct {
	providers *ProviderRegistry
	validate  *validator.Validate
}

func NewChatService(providers *ProviderRegistry) *ChatService {
	return &ChatService{
		providers: providers,
		validate:  newValidator(),
	}
}

// Chat answers a single message or a full conversation with the requested
// provider. Unknown providers fall back to the default one, and the result
// names the provider that actually replied.
func (s *ChatService) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	messages, err := s.buildConversation(req)
	if err != nil {
		return nil, err
	}

	provider, err := s.providers.Resolve(req.Provider)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	reply, err := provider.Generate(ctx, messages)
	observe("provider:"+provider.Name(), start, err)
	if err != nil {
		log.Error().Err(err).Str("provider", provider.Name()).Int("messages", len(messages)).Msg("Provider call failed")
		if apperr.KindOf(err) == apperr.KindInternal {
			err = providerError(provider.Name(), "", err)
		}
		return nil, err
	}

	return &ChatResult{Reply: reply, Provider: provider.Name()}, nil
}

func (s *ChatService) buildConversation(req ChatRequest) ([]Message, error) {
	if len(req.Messages) == 0 {
		msg := strings.TrimSpace(req.Message)
		if msg == "" {
			return nil, apperr.Validation("message or messages is required")
		}
		return []Message{
			{Role: "system", Content: SystemPromptFor(req.Mode)},
			{Role: "user", Content: msg},
		}, nil
	}

	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	messages := make([]Message, 0, len(req.Messages)+1)
	if !hasSystemMessage(req.Messages) {
		switch {
		case strings.TrimSpace(req.SystemPrompt) != "":
			messages = append(messages, Message{Role: "system", Content: req.SystemPrompt})
		case req.Mode != "":
			messages = append(messages, Message{Role: "system", Content: SystemPromptFor(req.Mode)})
		}
	}
	return append(messages, req.Messages...), nil
}

func hasSystemMessage(messages []Message) bool {
	for _, m := range messages {
		if m.Role == "system" {
			return true
		}
	}
	return false
}
