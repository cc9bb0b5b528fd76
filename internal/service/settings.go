// internal/service/settings.go
package service

import (
	"context"
	"strings"
	"time"

	"github.com/rovshanmuradov/solana-market-nexus/internal/apperr"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/models"
	"go.uber.org/zap"
)

var riskLevels = map[string]bool{"low": true, "medium": true, "high": true}

// SettingsService читает и обновляет настройки пользователя.
type SettingsService struct {
	store  storage.SettingsStore
	logger *zap.Logger
	now    func() time.Time
}

func NewSettingsService(store storage.SettingsStore, logger *zap.Logger) *SettingsService {
	return &SettingsService{store: store, logger: logger.Named("settings_service"), now: time.Now}
}

func (s *SettingsService) Get(ctx context.Context, userID string) (*models.Settings, error) {
	settings, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		return nil, storageErr(err, "Settings not found")
	}
	return settings, nil
}

// Update применяет частичное обновление; первая запись получает значения по умолчанию.
func (s *SettingsService) Update(ctx context.Context, userID string, patch models.SettingsPatch) (*models.Settings, error) {
	if patch.MinWalletBalance != nil && *patch.MinWalletBalance < 0 {
		return nil, apperr.BadRequest("Minimum wallet balance cannot be negative")
	}
	if p := patch.DefaultAllocationPercentage; p != nil && (*p < 0 || *p > 100) {
		return nil, apperr.BadRequest("Allocation percentage must be between 0 and 100")
	}
	if patch.RiskLevel != nil {
		level := strings.ToLower(strings.TrimSpace(*patch.RiskLevel))
		if !riskLevels[level] {
			return nil, apperr.BadRequest("Risk level must be low, medium, or high")
		}
		patch.RiskLevel = &level
	}
	patch.NotificationEmail = trimmedOrNil(patch.NotificationEmail)

	now := utcNow(s.now)
	defaults := &models.Settings{
		ID:                          newID(),
		UserID:                      userID,
		MinWalletBalance:            models.DefaultMinWalletBalance,
		DefaultAllocationPercentage: models.DefaultAllocationPercentage,
		RiskLevel:                   models.DefaultRiskLevel,
		CreatedAt:                   now,
		UpdatedAt:                   now,
	}
	settings, err := s.store.PatchSettings(ctx, defaults, patch)
	if err != nil {
		return nil, storageErr(err, "")
	}
	s.logger.Info("Settings updated", zap.String("user_id", userID))
	return settings, nil
}
