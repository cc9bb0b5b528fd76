// internal/service/service.go
// Package service реализует бизнес-операции HTTP API поверх хранилища.
package service

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rovshanmuradov/solana-market-nexus/internal/apperr"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage"
)

// storageErr переводит ошибки хранилища в ошибки API.
func storageErr(err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return apperr.NotFound(notFound)
	case errors.Is(err, storage.ErrDuplicate):
		return apperr.Conflict("Resource already exists")
	default:
		return apperr.Internal("Database error", err)
	}
}

func newID() string {
	return uuid.NewString()
}

func utcNow(now func() time.Time) time.Time {
	return now().UTC()
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
