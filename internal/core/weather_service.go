package core

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"resty.dev/v3"

	"aichat.dev/chat-gateway/internal/apperr"
)

type Weather struct {
	City        string  `json:"city"`
	Country     string  `json:"country"`
	Temp        float64 `json:"temp"`
	FeelsLike   float64 `json:"feels_like"`
	Humidity    int     `json:"humidity"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
}

type owmResponse struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Message string `json:"message"`
}

// WeatherService looks up current conditions on OpenWeatherMap.
type WeatherService struct {
	client  *resty.Client
	baseURL string
	apiKey  string
}

func NewWeatherService(apiKey, baseURL string, timeout time.Duration) *WeatherService {
	return &WeatherService{
		client:  newUpstreamClient("openweather", timeout),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (s *WeatherService) GetWeather(ctx context.Context, city string) (*Weather, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, apperr.Validation("City is required")
	}
	if s.apiKey == "" {
		return nil, apperr.Config("Weather API key is not configured")
	}

	start := time.Now()
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":     city,
			"appid": s.apiKey,
			"units": "metric",
		}).
		Get(s.baseURL + "/weather")
	if err != nil {
		observe("openweather", start, err)
		log.Error().Err(err).Str("city", city).Msg("Weather request failed")
		return nil, apperr.Upstream("Failed to fetch weather", http.StatusBadGateway, err)
	}

	var body owmResponse
	parseErr := json.Unmarshal(resp.Bytes(), &body)

	if resp.IsError() {
		observe("openweather", start, apperr.Upstream("status", resp.StatusCode(), nil))
		msg := "Failed to fetch weather"
		if parseErr == nil && body.Message != "" {
			msg = body.Message
		}
		return nil, apperr.Upstream(msg, resp.StatusCode(), nil)
	}
	if parseErr != nil {
		observe("openweather", start, parseErr)
		return nil, apperr.Upstream("Invalid weather response", http.StatusBadGateway, parseErr)
	}
	observe("openweather", start, nil)

	w := &Weather{
		City:      body.Name,
		Country:   body.Sys.Country,
		Temp:      body.Main.Temp,
		FeelsLike: body.Main.FeelsLike,
		Humidity:  body.Main.Humidity,
	}
	if len(body.Weather) > 0 {
		w.Description = body.Weather[0].Description
		w.Icon = body.Weather[0].Icon
	}
	return w, nil
}
