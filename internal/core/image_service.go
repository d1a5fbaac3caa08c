package core

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"resty.dev/v3"

	"aichat.dev/chat-gateway/internal/apperr"
)

type GeneratedImage struct {
	ImageBase64 string `json:"imageBase64"`
}

// ImageService generates images through a HuggingFace text-to-image model.
type ImageService struct {
	client   *resty.Client
	endpoint string
	apiKey   string
}

func NewImageService(apiKey, baseURL, model string, timeout time.Duration) *ImageService {
	return &ImageService{
		client:   newUpstreamClient("huggingface-image", timeout),
		endpoint: strings.TrimSuffix(baseURL, "/") + "/" + model,
		apiKey:   apiKey,
	}
}

// GenerateImage returns the image as a data URI. Upstream error bodies are
// logged, never returned.
func (s *ImageService) GenerateImage(ctx context.Context, prompt string) (*GeneratedImage, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, apperr.Validation("Prompt is required")
	}
	if s.apiKey == "" {
		return nil, apperr.Config("Image API key is not configured")
	}

	start := time.Now()
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+s.apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "image/png").
		SetBody(map[string]string{"inputs": prompt}).
		Post(s.endpoint)
	if err != nil {
		observe("huggingface-image", start, err)
		log.Error().Err(err).Msg("Image generation request failed")
		return nil, apperr.Upstream("Image generation failed", http.StatusInternalServerError, err)
	}

	if resp.IsError() {
		upstreamErr := apperr.Upstream("Image generation failed", http.StatusInternalServerError, nil)
		observe("huggingface-image", start, upstreamErr)
		log.Error().
			Int("status", resp.StatusCode()).
			Str("body", string(resp.Bytes())).
			Msg("Image generation upstream error")
		return nil, upstreamErr
	}
	observe("huggingface-image", start, nil)

	mime, _, _ := strings.Cut(resp.Header().Get("Content-Type"), ";")
	mime = strings.TrimSpace(mime)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/png"
	}
	return &GeneratedImage{
		ImageBase64: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(resp.Bytes()),
	}, nil
}
