// internal/service/auth_test.go
package service

import (
	"context"
	"testing"
	"time"

	"github.com/rovshanmuradov/solana-market-nexus/internal/apperr"
	"github.com/rovshanmuradov/solana-market-nexus/internal/auth"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

func newAuthService(t *testing.T) *AuthService {
	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	require.NoError(t, err)
	return NewAuthService(memory.New(), auth.NewHasher(bcrypt.MinCost), tokens, zaptest.NewLogger(t))
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService(t)

	reg, err := svc.Register(ctx, RegisterRequest{Email: " Trader@Example.com ", Password: "password123", Name: "Trader"})
	require.NoError(t, err)
	assert.Equal(t, "trader@example.com", reg.Email)
	assert.NotEmpty(t, reg.Token)

	userID, err := svc.Authenticate(reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, userID)

	login, err := svc.Login(ctx, LoginRequest{Email: "TRADER@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, login.UserID)

	_, err = svc.Register(ctx, RegisterRequest{Email: "trader@example.com", Password: "password123", Name: "Again"})
	assertKind(t, err, apperr.KindConflict, "User with this email already exists")
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc := newAuthService(t)
	tests := []struct {
		name string
		req  RegisterRequest
		msg  string
	}{
		{"bad email", RegisterRequest{Email: "nope", Password: "password123", Name: "x"}, "Invalid email address"},
		{"short password", RegisterRequest{Email: "a@b.c", Password: "short", Name: "x"}, "Password must be at least 8 characters"},
		{"no name", RegisterRequest{Email: "a@b.c", Password: "password123", Name: " "}, "Name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.req)
			assertKind(t, err, apperr.KindBadRequest, tt.msg)
		})
	}
}

func TestAuthService_LoginFailures(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService(t)
	_, err := svc.Register(ctx, RegisterRequest{Email: "a@b.c", Password: "password123", Name: "A"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Email: "a@b.c", Password: "wrong-password"})
	assertKind(t, err, apperr.KindUnauthorized, "Invalid email or password")

	_, err = svc.Login(ctx, LoginRequest{Email: "ghost@b.c", Password: "password123"})
	assertKind(t, err, apperr.KindUnauthorized, "Invalid email or password")

	_, err = svc.Authenticate("garbage")
	assertKind(t, err, apperr.KindUnauthorized, "Invalid or missing authentication token")
}
