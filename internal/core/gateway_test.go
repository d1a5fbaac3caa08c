package core

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aichat.dev/chat-gateway/internal/apperr"
)

func TestGetWeather(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/weather", r.URL.Path)
		assert.Equal(t, "Lisbon", r.URL.Query().Get("q"))
		assert.Equal(t, "owm-key", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"Lisbon","sys":{"country":"PT"},"main":{"temp":21.4,"feels_like":20.9,"humidity":64},"weather":[{"description":"clear sky","icon":"01d"}]}`))
	}))
	defer srv.Close()

	svc := NewWeatherService("owm-key", srv.URL+"/data/2.5/", 5*time.Second)
	got, err := svc.GetWeather(context.Background(), " Lisbon ")
	require.NoError(t, err)

	assert.Equal(t, &Weather{
		City:        "Lisbon",
		Country:     "PT",
		Temp:        21.4,
		FeelsLike:   20.9,
		Humidity:    64,
		Description: "clear sky",
		Icon:        "01d",
	}, got)
}

func TestGetWeatherRejectsBlankCityWithoutCallingUpstream(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	svc := NewWeatherService("owm-key", srv.URL, 5*time.Second)
	for _, city := range []string{"", "   "} {
		_, err := svc.GetWeather(context.Background(), city)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	}
	assert.Zero(t, calls.Load())
}

func TestGetWeatherErrors(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		svc := NewWeatherService("", "http://127.0.0.1:1", time.Second)
		_, err := svc.GetWeather(context.Background(), "Paris")
		assert.True(t, apperr.Is(err, apperr.KindConfig))
		assert.Equal(t, http.StatusInternalServerError, apperr.HTTPStatus(err))
	})

	t.Run("upstream status propagates", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"cod":"404","message":"city not found"}`))
		}))
		defer srv.Close()

		svc := NewWeatherService("owm-key", srv.URL, 5*time.Second)
		_, err := svc.GetWeather(context.Background(), "Atlantis")
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindUpstream))
		assert.Equal(t, http.StatusNotFound, apperr.HTTPStatus(err))
		assert.Equal(t, "city not found", apperr.PublicMessage(err))
	})
}

func TestGenerateImage(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/sdxl", r.URL.Path)
		assert.Equal(t, "Bearer hf-key", r.Header.Get("Authorization"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a red fox", body["inputs"])
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}))
	defer srv.Close()

	svc := NewImageService("hf-key", srv.URL+"/models", "sdxl", 5*time.Second)
	got, err := svc.GenerateImage(context.Background(), "a red fox")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(png), got.ImageBase64)
}

func TestGenerateImageErrors(t *testing.T) {
	t.Run("blank prompt", func(t *testing.T) {
		svc := NewImageService("hf-key", "http://127.0.0.1:1", "sdxl", time.Second)
		_, err := svc.GenerateImage(context.Background(), " ")
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("missing key", func(t *testing.T) {
		svc := NewImageService("", "http://127.0.0.1:1", "sdxl", time.Second)
		_, err := svc.GenerateImage(context.Background(), "fox")
		assert.True(t, apperr.Is(err, apperr.KindConfig))
	})

	t.Run("upstream failure hides body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"internal token abc123 exhausted"}`))
		}))
		defer srv.Close()

		svc := NewImageService("hf-key", srv.URL, "sdxl", 5*time.Second)
		_, err := svc.GenerateImage(context.Background(), "fox")
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindUpstream))
		assert.Equal(t, http.StatusInternalServerError, apperr.HTTPStatus(err))
		assert.NotContains(t, apperr.PublicMessage(err), "abc123")
	})
}
