// Package client talks to the chat gateway HTTP API.
package client

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"resty.dev/v3"

	"aichat.dev/chat-gateway/internal/apperr"
	"aichat.dev/chat-gateway/internal/session"
)

const defaultTimeout = 90 * time.Second

type Client struct {
	http *resty.Client
}

func New(baseURL string) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(defaultTimeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json")
	return &Client{http: c}
}

func (c *Client) Close() error {
	return c.http.Close()
}

type AuthResponse struct {
	User  session.User `json:"user"`
	Token string       `json:"token"`
}

type ChatRequest struct {
	Provider string         `json:"provider,omitempty"`
	Mode     string         `json:"mode,omitempty"`
	Message  string         `json:"message,omitempty"`
	Messages []session.Turn `json:"messages,omitempty"`
}

type ChatResponse struct {
	Reply    string `json:"reply"`
	Provider string `json:"provider"`
}

type Weather struct {
	City        string  `json:"city"`
	Country     string  `json:"country"`
	Temp        float64 `json:"temp"`
	FeelsLike   float64 `json:"feels_like"`
	Humidity    int     `json:"humidity"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", "", nil, nil)
}

func (c *Client) Register(ctx context.Context, name, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the user the token belongs to.
func (c *Client) Me(ctx context.Context, token string) (*session.User, error) {
	var out struct {
		User session.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", token, nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *Client) Chat(ctx context.Context, token string, req ChatRequest) (*ChatResponse, error) {
	var out ChatResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat", token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateImage returns the generated image as a data URI.
func (c *Client) GenerateImage(ctx context.Context, token, prompt string) (string, error) {
	var out struct {
		ImageBase64 string `json:"imageBase64"`
	}
	body := map[string]string{"prompt": prompt}
	if err := c.do(ctx, http.MethodPost, "/api/image/generate", token, body, &out); err != nil {
		return "", err
	}
	return out.ImageBase64, nil
}

func (c *Client) Weather(ctx context.Context, city string) (*Weather, error) {
	var out Weather
	if err := c.do(ctx, http.MethodPost, "/api/tools/weather", "", map[string]string{"city": city}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	req := c.http.R().SetContext(ctx)
	if token != "" {
		req.SetAuthToken(token)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return apperr.Network("Error contacting server", err)
	}
	if resp.IsError() {
		return responseError(resp.StatusCode(), resp.Bytes())
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Bytes(), out); err != nil {
		return apperr.Upstream("Unexpected response from server", resp.StatusCode(), err)
	}
	return nil
}

// responseError turns a {"error": ...} reply into an error whose kind follows
// the status code.
func responseError(status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	msg := strings.TrimSpace(eb.Error)
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status == http.StatusUnauthorized:
		return apperr.Auth(msg)
	case status == http.StatusConflict:
		return apperr.Conflict(msg)
	case status >= 400 && status < 500:
		return &apperr.Error{Kind: apperr.KindValidation, Message: msg, Status: status}
	default:
		return apperr.Upstream(msg, status, nil)
	}
}
