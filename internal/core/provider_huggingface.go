package core

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"resty.dev/v3"
)

// HuggingFaceProvider posts the conversation transcript to a text-generation
// inference endpoint.
type HuggingFaceProvider struct {
	client   *resty.Client
	endpoint string
	apiKey   string
}

func NewHuggingFaceProvider(apiKey, baseURL, model string, timeout time.Duration) *HuggingFaceProvider {
	return &HuggingFaceProvider{
		client:   newUpstreamClient(ProviderHuggingFace, timeout),
		endpoint: strings.TrimSuffix(baseURL, "/") + "/" + model,
		apiKey:   apiKey,
	}
}

func (p *HuggingFaceProvider) Name() string { return ProviderHuggingFace }

type hfGeneration struct {
	GeneratedText *string `json:"generated_text"`
}

type hfError struct {
	Error string `json:"error"`
}

func (p *HuggingFaceProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+p.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"inputs": Transcript(messages)}).
		Post(p.endpoint)
	if err != nil {
		return "", providerError(ProviderHuggingFace, "", err)
	}

	body := resp.Bytes()
	if resp.IsError() {
		var e hfError
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return "", providerError(ProviderHuggingFace, e.Error, nil)
		}
		return "", providerError(ProviderHuggingFace, resp.Status(), nil)
	}

	return extractGeneratedText(body), nil
}

// extractGeneratedText returns generated_text of the first generation, or
// the raw response when it has another shape.
func extractGeneratedText(body []byte) string {
	var generations []hfGeneration
	if err := json.Unmarshal(body, &generations); err == nil && len(generations) > 0 && generations[0].GeneratedText != nil {
		return *generations[0].GeneratedText
	}
	return strings.TrimSpace(string(body))
}
