// internal/service/alerts.go
package service

import (
	"context"
	"strings"
	"time"

	"github.com/rovshanmuradov/solana-market-nexus/internal/apperr"
	"github.com/rovshanmuradov/solana-market-nexus/internal/market"
	"github.com/rovshanmuradov/solana-market-nexus/internal/monitor"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/models"
	"go.uber.org/zap"
)

// TriggerHistory отдаёт недавние срабатывания пользователя.
type TriggerHistory interface {
	GetRecentTriggers(userID string, limit int) []monitor.Trigger
}

// AlertRequest - запрос на создание алерта.
type AlertRequest struct {
	AlertType        string   `json:"alert_type"`
	MarketPair       string   `json:"market_pair"`
	PriceThreshold   *float64 `json:"price_threshold,omitempty"`
	PercentageChange *float64 `json:"percentage_change,omitempty"`
	IsAbove          *bool    `json:"is_above,omitempty"`
	Enabled          *bool    `json:"enabled,omitempty"`
}

// AlertService управляет пользовательскими алертами.
type AlertService struct {
	store    storage.AlertStore
	triggers TriggerHistory
	logger   *zap.Logger
	now      func() time.Time
}

func NewAlertService(store storage.AlertStore, triggers TriggerHistory, logger *zap.Logger) *AlertService {
	return &AlertService{
		store:    store,
		triggers: triggers,
		logger:   logger.Named("alert_service"),
		now:      time.Now,
	}
}

func (s *AlertService) List(ctx context.Context, userID string) ([]*models.Alert, error) {
	alerts, err := s.store.ListAlerts(ctx, userID)
	if err != nil {
		return nil, storageErr(err, "")
	}
	return alerts, nil
}

// Create проверяет параметры алерта по его типу и сохраняет его.
func (s *AlertService) Create(ctx context.Context, userID string, req AlertRequest) (*models.Alert, error) {
	alertType := strings.ToLower(strings.TrimSpace(req.AlertType))
	switch alertType {
	case models.AlertTypePrice:
		if req.PriceThreshold == nil || req.IsAbove == nil {
			return nil, apperr.BadRequest("Price alerts require price_threshold and is_above parameters")
		}
		if *req.PriceThreshold <= 0 {
			return nil, apperr.BadRequest("Price threshold must be positive")
		}
	case models.AlertTypePercentage:
		if req.PercentageChange == nil || req.IsAbove == nil {
			return nil, apperr.BadRequest("Percentage alerts require percentage_change and is_above parameters")
		}
		if *req.PercentageChange < 0 {
			return nil, apperr.BadRequest("Percentage change cannot be negative")
		}
	default:
		return nil, apperr.BadRequest("Invalid alert type")
	}

	pair, err := market.ParsePair(req.MarketPair)
	if err != nil {
		return nil, apperr.BadRequest("Invalid market pair")
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	now := utcNow(s.now)
	alert := &models.Alert{
		ID:         newID(),
		UserID:     userID,
		AlertType:  alertType,
		MarketPair: pair.String(),
		IsAbove:    req.IsAbove,
		Enabled:    enabled,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if alertType == models.AlertTypePrice {
		alert.PriceThreshold = req.PriceThreshold
	} else {
		alert.PercentageChange = req.PercentageChange
	}

	if err := s.store.CreateAlert(ctx, alert); err != nil {
		return nil, storageErr(err, "")
	}
	s.logger.Info("Alert created", zap.String("user_id", userID), zap.String("alert_id", alert.ID))
	return alert, nil
}

func (s *AlertService) Delete(ctx context.Context, userID, alertID string) error {
	if err := s.store.DeleteAlert(ctx, userID, alertID); err != nil {
		return storageErr(err, "Alert not found")
	}
	return nil
}

// Triggered возвращает недавние срабатывания, новые первыми.
func (s *AlertService) Triggered(userID string, limit int) []monitor.Trigger {
	if s.triggers == nil {
		return []monitor.Trigger{}
	}
	out := s.triggers.GetRecentTriggers(userID, limit)
	if out == nil {
		return []monitor.Trigger{}
	}
	return out
}
