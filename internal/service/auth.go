// internal/service/auth.go
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rovshanmuradov/solana-market-nexus/internal/apperr"
	"github.com/rovshanmuradov/solana-market-nexus/internal/auth"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/models"
	"go.uber.org/zap"
)

const minPasswordLength = 8

// RegisterRequest - данные регистрации.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest - данные входа.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse возвращается после регистрации и входа.
type AuthResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// AuthService регистрирует пользователей и выдаёт токены.
type AuthService struct {
	users  storage.UserStore
	hasher *auth.Hasher
	tokens *auth.TokenManager
	logger *zap.Logger
	now    func() time.Time
}

func NewAuthService(users storage.UserStore, hasher *auth.Hasher, tokens *auth.TokenManager, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger.Named("auth_service"),
		now:    time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register создаёт пользователя и возвращает токен.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	switch {
	case !strings.Contains(email, "@"):
		return nil, apperr.BadRequest("Invalid email address")
	case len(req.Password) < minPasswordLength:
		return nil, apperr.BadRequestf("Password must be at least %d characters", minPasswordLength)
	case name == "":
		return nil, apperr.BadRequest("Name is required")
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, apperr.Conflict("User with this email already exists")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, storageErr(err, "")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperr.Internal("Failed to register user", err)
	}

	now := utcNow(s.now)
	user := &models.User{
		ID:           newID(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		// уникальный индекс по email защищает от гонки двух регистраций
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperr.Conflict("User with this email already exists")
		}
		return nil, storageErr(err, "")
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID))
	return s.issue(user)
}

// Login проверяет пароль и возвращает токен.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Unauthorized("Invalid email or password")
	}
	if err != nil {
		return nil, storageErr(err, "")
	}

	ok, err := s.hasher.Verify(user.PasswordHash, req.Password)
	if err != nil {
		return nil, apperr.Internal("Failed to verify credentials", err)
	}
	if !ok {
		return nil, apperr.Unauthorized("Invalid email or password")
	}
	return s.issue(user)
}

// Authenticate проверяет токен и возвращает id пользователя.
func (s *AuthService) Authenticate(token string) (string, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		return "", apperr.Unauthorized("Invalid or missing authentication token")
	}
	return userID, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResponse, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, apperr.Internal("Failed to issue token", err)
	}
	return &AuthResponse{Token: token, UserID: user.ID, Email: user.Email}, nil
}
