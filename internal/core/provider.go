package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"aichat.dev/chat-gateway/internal/apperr"
)

const (
	ProviderGroq        = "groq"
	ProviderGemini      = "gemini"
	ProviderDeepSeek    = "deepseek"
	ProviderHuggingFace = "huggingface"

	// DefaultProvider serves requests that name no provider or an unknown one.
	DefaultProvider = ProviderGroq
)

type Message struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

// Provider turns an ordered conversation into a plain-text reply.
type Provider interface {
	Name() string
	Generate(ctx context.Context, messages []Message) (string, error)
}

// ProviderRegistry selects a Provider by id.
type ProviderRegistry struct {
	providers map[string]Provider
}

func NewProviderRegistry(providers ...Provider) *ProviderRegistry {
	r := &ProviderRegistry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Resolve returns the provider registered under id, falling back to the
// default provider for empty or unknown ids.
func (r *ProviderRegistry) Resolve(id string) (Provider, error) {
	if p, ok := r.providers[strings.ToLower(strings.TrimSpace(id))]; ok {
		return p, nil
	}
	if p, ok := r.providers[DefaultProvider]; ok {
		return p, nil
	}
	return nil, apperr.Config(fmt.Sprintf("default provider %q is not registered", DefaultProvider))
}

func (r *ProviderRegistry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Transcript flattens messages into newline-joined "ROLE: content" lines for
// providers that take a single prompt.
func Transcript(messages []Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, strings.ToUpper(m.Role)+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// unconfiguredProvider stands in for a provider whose API key is not set.
type unconfiguredProvider struct {
	name   string
	envVar string
}

func NewUnconfiguredProvider(name, envVar string) Provider {
	return &unconfiguredProvider{name: name, envVar: envVar}
}

func (p *unconfiguredProvider) Name() string { return p.name }

func (p *unconfiguredProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	return "", apperr.Provider(fmt.Sprintf("%s is not configured (%s is not set)", p.name, p.envVar), nil)
}

func providerError(name, upstreamMessage string, err error) error {
	msg := name + " request failed"
	if upstreamMessage != "" {
		msg = name + ": " + upstreamMessage
	}
	return apperr.Provider(msg, err)
}
