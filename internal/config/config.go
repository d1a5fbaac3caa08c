package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"chat_gateway.db"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"console"`

	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"168h"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:3000"`

	GroqAPIKey  string `env:"GROQ_API_KEY"`
	GroqBaseURL string `env:"GROQ_BASE_URL" envDefault:"https://api.groq.com/openai/v1"`
	GroqModel   string `env:"GROQ_MODEL" envDefault:"llama-3.1-8b-instant"`

	DeepSeekAPIKey  string `env:"DEEPSEEK_API_KEY"`
	DeepSeekBaseURL string `env:"DEEPSEEK_BASE_URL" envDefault:"https://api.deepseek.com/v1"`
	DeepSeekModel   string `env:"DEEPSEEK_MODEL" envDefault:"deepseek-chat"`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`

	HuggingFaceAPIKey     string `env:"HF_API_KEY"`
	HuggingFaceBaseURL    string `env:"HF_BASE_URL" envDefault:"https://api-inference.huggingface.co/models"`
	HuggingFaceChatModel  string `env:"HF_CHAT_MODEL" envDefault:"google/flan-t5-large"`
	HuggingFaceImageModel string `env:"HF_IMAGE_MODEL" envDefault:"stabilityai/stable-diffusion-xl-base-1.0"`

	OpenWeatherAPIKey  string `env:"OPENWEATHER_API_KEY"`
	OpenWeatherBaseURL string `env:"OPENWEATHER_BASE_URL" envDefault:"https://api.openweathermap.org/data/2.5"`

	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"60s"`
}

// LoadConfig reads an optional .env file and then the process environment.
// Provider and tool keys are optional: a missing one fails only the requests
// that need it. The JWT secret is not.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, relying on environment variables")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive, got %s", cfg.TokenTTL)
	}

	return cfg, nil
}
