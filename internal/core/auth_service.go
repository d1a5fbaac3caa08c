package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"aichat.dev/chat-gateway/internal/apperr"
	"aichat.dev/chat-gateway/internal/auth"
	"aichat.dev/chat-gateway/internal/metrics"
	"aichat.dev/chat-gateway/internal/store"
)

const invalidCredentials = "Invalid email or password"

// UserStore is the credential persistence the auth service needs.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	GetUserByID(ctx context.Context, id int64) (*store.User, error)
	CreateUser(ctx context.Context, name, email, passwordHash string) (*store.User, error)
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResult struct {
	User  *store.User `json:"user"`
	Token string      `json:"token"`
}

// Principal identifies the caller behind a verified token.
type Principal struct {
	UserID int64
	Email  string
}

type AuthService struct {
	users    UserStore
	tokens   *auth.TokenManager
	validate *validator.Validate
}

func NewAuthService(users UserStore, tokens *auth.TokenManager) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		validate: newValidator(),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if err := s.validate.Struct(req); err != nil {
		metrics.AuthEvent("register", err)
		return nil, apperr.Validation("Name, email and password are required")
	}

	res, err := s.register(ctx, req)
	metrics.AuthEvent("register", err)
	return res, err
}

func (s *AuthService) register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	existing, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, apperr.Conflict("User already exists")
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	// The existence check above can race with a concurrent registration;
	// the email UNIQUE constraint settles it.
	user, err := s.users.CreateUser(ctx, req.Name, req.Email, hashedPassword)
	if errors.Is(err, store.ErrEmailTaken) {
		return nil, apperr.Conflict("User already exists")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Info().Int64("user_id", user.ID).Msg("User registered")
	return s.issue(user)
}

// Login never tells an unknown email apart from a wrong password.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validate.Struct(req); err != nil {
		metrics.AuthEvent("login", err)
		return nil, apperr.Validation("Email and password are required")
	}

	res, err := s.login(ctx, req)
	metrics.AuthEvent("login", err)
	return res, err
}

func (s *AuthService) login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		return nil, apperr.Credentials(invalidCredentials)
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *store.User) (*AuthResult, error) {
	token, err := s.tokens.GenerateJWT(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) Authenticate(token string) (*Principal, error) {
	if token == "" {
		metrics.AuthEvent("authenticate", apperr.Auth("missing"))
		return nil, apperr.Auth("Authorization token is required")
	}

	claims, err := s.tokens.ValidateJWT(token)
	metrics.AuthEvent("authenticate", err)
	if err != nil {
		return nil, &apperr.Error{Kind: apperr.KindAuth, Message: "Invalid or expired token", Err: err}
	}
	return &Principal{UserID: claims.UserID, Email: claims.Email}, nil
}

// Me returns the account behind a verified principal.
func (s *AuthService) Me(ctx context.Context, p *Principal) (*store.User, error) {
	user, err := s.users.GetUserByID(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, apperr.Auth("User not found")
	}
	return user, nil
}
