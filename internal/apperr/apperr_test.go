package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMapping(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{BadRequest("Invalid Solana address"), http.StatusBadRequest, "Invalid Solana address"},
		{Unauthorized("Invalid email or password"), http.StatusUnauthorized, "Invalid email or password"},
		{NotFound("Wallet not found"), http.StatusNotFound, "Wallet not found"},
		{Conflict("User with this email already exists"), http.StatusConflict, "User with this email already exists"},
		{Internal("Database error", errors.New("connection reset")), http.StatusInternalServerError, "Database error"},
		{Unavailable("Market data unavailable", errors.New("timeout")), http.StatusBadGateway, "Market data unavailable"},
		{errors.New("plain"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.status, KindOf(tt.err).HTTPStatus())
			assert.Equal(t, tt.message, Message(tt.err))
		})
	}
}

func TestWrappedErrorKeepsKind(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("execute trade: %w", Internal("Database error", cause))

	assert.True(t, Is(err, KindInternal))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Database error: boom", errors.Unwrap(err).Error())
}
