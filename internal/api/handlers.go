package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"aichat.dev/chat-gateway/internal/apperr"
	"aichat.dev/chat-gateway/internal/core"
	"aichat.dev/chat-gateway/internal/store"
)

// maxBodyBytes leaves room for chat histories carrying pasted text.
const maxBodyBytes = 1 << 20

type Authenticator interface {
	Register(ctx context.Context, req core.RegisterRequest) (*core.AuthResult, error)
	Login(ctx context.Context, req core.LoginRequest) (*core.AuthResult, error)
	Authenticate(token string) (*core.Principal, error)
	Me(ctx context.Context, p *core.Principal) (*store.User, error)
}

type Chatter interface {
	Chat(ctx context.Context, req core.ChatRequest) (*core.ChatResult, error)
}

type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*core.GeneratedImage, error)
}

type WeatherLookup interface {
	GetWeather(ctx context.Context, city string) (*core.Weather, error)
}

type APIHandler struct {
	authService    Authenticator
	chatService    Chatter
	imageService   ImageGenerator
	weatherService WeatherLookup
}

func NewAPIHandler(auth Authenticator, chat Chatter, image ImageGenerator, weather WeatherLookup) *APIHandler {
	return &APIHandler{
		authService:    auth,
		chatService:    chat,
		imageService:   image,
		weatherService: weather,
	}
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req core.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.authService.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req core.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.authService.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())

	user, err := h.authService.Me(r.Context(), principal)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*store.User{"user": user})
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req core.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.chatService.Chat(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type ImageRequest struct {
	Prompt string `json:"prompt"`
}

func (h *APIHandler) ImageHandler(w http.ResponseWriter, r *http.Request) {
	var req ImageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	img, err := h.imageService.GenerateImage(r.Context(), req.Prompt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, img)
}

type WeatherRequest struct {
	City string `json:"city"`
}

func (h *APIHandler) WeatherHandler(w http.ResponseWriter, r *http.Request) {
	var req WeatherRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	weather, err := h.weatherService.GetWeather(r.Context(), req.City)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, weather)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, apperr.Validation("Invalid request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError answers with {"error": message}. Server-side failures are logged
// with their cause; the body only carries the public message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("kind", apperr.KindOf(err).String()).
			Str("path", r.URL.Path).
			Msg("Request failed")
	}
	writeJSON(w, status, map[string]string{"error": apperr.PublicMessage(err)})
}
