package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"aichat.dev/chat-gateway/internal/api"
	"aichat.dev/chat-gateway/internal/auth"
	"aichat.dev/chat-gateway/internal/config"
	"aichat.dev/chat-gateway/internal/core"
	"aichat.dev/chat-gateway/internal/logger"
	"aichat.dev/chat-gateway/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logging
	if _, err := logger.New(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatal().Err(err).Msg("Failed to configure logger")
	}

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer dbStore.Close()

	providers, closeProviders := buildProviders(cfg)
	defer closeProviders()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	authService := core.NewAuthService(dbStore, tokens)
	chatService := core.NewChatService(providers)
	imageService := core.NewImageService(cfg.HuggingFaceAPIKey, cfg.HuggingFaceBaseURL, cfg.HuggingFaceImageModel, cfg.UpstreamTimeout)
	weatherService := core.NewWeatherService(cfg.OpenWeatherAPIKey, cfg.OpenWeatherBaseURL, cfg.UpstreamTimeout)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(authService, chatService, imageService, weatherService)
	router := api.NewRouter(apiHandler, cfg.AllowedOrigins)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout + 15*time.Second, // provider calls can take time
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Strs("providers", providers.Names()).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Str("addr", serverAddr).Msg("Could not listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		return
	}

	log.Info().Msg("Server exiting gracefully")
}

// buildProviders registers every chat provider. A provider without an API key
// is still registered and fails its requests with a configuration error.
func buildProviders(cfg *config.Config) (*core.ProviderRegistry, func()) {
	var providers []core.Provider
	closeFn := func() {}

	if cfg.GroqAPIKey != "" {
		providers = append(providers, core.NewOpenAICompatibleProvider(core.ProviderGroq, cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.GroqModel, cfg.UpstreamTimeout))
	} else {
		providers = append(providers, core.NewUnconfiguredProvider(core.ProviderGroq, "GROQ_API_KEY"))
	}

	if cfg.DeepSeekAPIKey != "" {
		providers = append(providers, core.NewOpenAICompatibleProvider(core.ProviderDeepSeek, cfg.DeepSeekAPIKey, cfg.DeepSeekBaseURL, cfg.DeepSeekModel, cfg.UpstreamTimeout))
	} else {
		providers = append(providers, core.NewUnconfiguredProvider(core.ProviderDeepSeek, "DEEPSEEK_API_KEY"))
	}

	gemini := core.NewUnconfiguredProvider(core.ProviderGemini, "GEMINI_API_KEY")
	if cfg.GeminiAPIKey != "" {
		p, err := core.NewGeminiProvider(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Error().Err(err).Msg("Gemini provider unavailable")
		} else {
			gemini = p
			closeFn = p.Close
		}
	}
	providers = append(providers, gemini)

	if cfg.HuggingFaceAPIKey != "" {
		providers = append(providers, core.NewHuggingFaceProvider(cfg.HuggingFaceAPIKey, cfg.HuggingFaceBaseURL, cfg.HuggingFaceChatModel, cfg.UpstreamTimeout))
	} else {
		providers = append(providers, core.NewUnconfiguredProvider(core.ProviderHuggingFace, "HF_API_KEY"))
	}

	for _, p := range providers {
		log.Debug().Str("provider", p.Name()).Msg("Registered chat provider")
	}
	return core.NewProviderRegistry(providers...), closeFn
}
