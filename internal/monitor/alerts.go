package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rovshanmuradov/solana-market-nexus/internal/events"
	"github.com/rovshanmuradov/solana-market-nexus/internal/market"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Trigger represents a triggered alert
type Trigger struct {
	AlertID    string    `json:"alert_id"`
	UserID     string    `json:"user_id"`
	AlertType  string    `json:"alert_type"`
	MarketPair string    `json:"market_pair"`
	Observed   float64   `json:"observed"`
	Threshold  float64   `json:"threshold"`
	IsAbove    bool      `json:"is_above"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// AlertConfig holds alert configuration
type AlertConfig struct {
	// How often enabled alerts are checked
	Interval time.Duration `json:"interval"`

	// Alert cooldown to prevent spam
	CooldownDuration time.Duration `json:"cooldown_duration"`

	// Size of the in-memory trigger history
	MaxHistory int `json:"max_history"`
}

// DefaultAlertConfig returns default alert configuration
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		Interval:         30 * time.Second,
		CooldownDuration: 5 * time.Minute,
		MaxHistory:       1000,
	}
}

// PriceSource отдаёт текущую котировку пары.
type PriceSource interface {
	Price(ctx context.Context, pair market.Pair) (models.MarketPrice, error)
}

// TriggerRecorder учитывает сработавшие алерты в метриках.
type TriggerRecorder interface {
	RecordAlertTrigger(alertType, pair string)
}

// TriggerHandler is called when an alert is triggered
type TriggerHandler func(trigger Trigger)

// AlertManager проверяет пользовательские алерты по рыночным котировкам.
type AlertManager struct {
	mu     sync.RWMutex
	config AlertConfig
	logger *zap.Logger

	store     storage.AlertStore
	prices    PriceSource
	publisher events.Publisher
	metrics   TriggerRecorder
	now       func() time.Time

	// Track triggers
	history  []Trigger
	lastFire map[string]time.Time // alert id -> last trigger time

	// Trigger handlers
	handlers []TriggerHandler
}

// NewAlertManager creates a new alert manager. publisher and metrics may be nil.
func NewAlertManager(config AlertConfig, store storage.AlertStore, prices PriceSource,
	publisher events.Publisher, metrics TriggerRecorder, logger *zap.Logger) *AlertManager {
	if config.MaxHistory <= 0 {
		config.MaxHistory = DefaultAlertConfig().MaxHistory
	}
	if config.Interval <= 0 {
		config.Interval = DefaultAlertConfig().Interval
	}
	return &AlertManager{
		config:    config,
		logger:    logger.Named("alerts"),
		store:     store,
		prices:    prices,
		publisher: publisher,
		metrics:   metrics,
		now:       time.Now,
		history:   make([]Trigger, 0, 100),
		lastFire:  make(map[string]time.Time),
	}
}

// AddHandler adds a trigger handler
func (am *AlertManager) AddHandler(handler TriggerHandler) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.handlers = append(am.handlers, handler)
}

// Run проверяет алерты с заданным интервалом до отмены контекста.
func (am *AlertManager) Run(ctx context.Context) error {
	ticker := time.NewTicker(am.config.Interval)
	defer ticker.Stop()

	am.logger.Info("Alert evaluation started", zap.Duration("interval", am.config.Interval))
	for {
		select {
		case <-ctx.Done():
			am.logger.Info("Alert evaluation stopped")
			return nil
		case <-ticker.C:
			if _, err := am.EvaluateOnce(ctx); err != nil {
				am.logger.Error("Alert evaluation failed", zap.Error(err))
			}
		}
	}
}

// EvaluateOnce загружает включённые алерты, запрашивает котировку один раз
// на пару и возвращает сработавшие алерты.
func (am *AlertManager) EvaluateOnce(ctx context.Context) ([]Trigger, error) {
	alerts, err := am.store.ListEnabledAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load alerts: %w", err)
	}

	byPair := make(map[market.Pair][]*models.Alert)
	for _, a := range alerts {
		pair, err := market.ParsePair(a.MarketPair)
		if err != nil {
			am.logger.Warn("Skipping alert with unsupported pair",
				zap.String("alert_id", a.ID), zap.String("pair", a.MarketPair))
			continue
		}
		byPair[pair] = append(byPair[pair], a)
	}

	var (
		mu        sync.Mutex
		triggered []Trigger
	)
	g, gctx := errgroup.WithContext(ctx)
	for pair, group := range byPair {
		g.Go(func() error {
			price, err := am.prices.Price(gctx, pair)
			if err != nil {
				am.logger.Warn("No quote for alerts", zap.String("pair", pair.String()), zap.Error(err))
				return nil
			}
			// Опорные и устаревшие котировки не сравниваются с порогами.
			if price.Source == market.SourceReference || price.Source == market.SourceStale {
				am.logger.Debug("Skipping alerts on non-live quote",
					zap.String("pair", pair.String()), zap.String("source", price.Source))
				return nil
			}
			for _, a := range group {
				if t, ok := am.check(gctx, a, price); ok {
					mu.Lock()
					triggered = append(triggered, t)
					mu.Unlock()
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return triggered, err
	}
	return triggered, nil
}

// check применяет условие алерта с учётом паузы между срабатываниями.
func (am *AlertManager) check(ctx context.Context, a *models.Alert, price models.MarketPrice) (Trigger, bool) {
	now := am.now()

	am.mu.Lock()
	last, seen := am.lastFire[a.ID]
	if !seen && a.LastTriggeredAt != nil {
		last, seen = *a.LastTriggeredAt, true
	}
	if seen && now.Sub(last) < am.config.CooldownDuration {
		am.mu.Unlock()
		return Trigger{}, false // Skip due to cooldown
	}
	am.mu.Unlock()

	observed, threshold, hit := Evaluate(a, price)
	if !hit {
		return Trigger{}, false
	}

	trigger := Trigger{
		AlertID:    a.ID,
		UserID:     a.UserID,
		AlertType:  a.AlertType,
		MarketPair: a.MarketPair,
		Observed:   observed,
		Threshold:  threshold,
		IsAbove:    a.IsAbove != nil && *a.IsAbove,
		Message:    describe(a, observed, threshold),
		Timestamp:  now,
	}

	if err := am.store.MarkAlertTriggered(ctx, a.ID, now); err != nil {
		am.logger.Warn("Failed to mark alert", zap.String("alert_id", a.ID), zap.Error(err))
	}
	am.triggerAlert(trigger)
	return trigger, true
}

// Evaluate проверяет условие алерта на котировке и возвращает наблюдаемое
// значение и порог.
func Evaluate(a *models.Alert, price models.MarketPrice) (observed, threshold float64, hit bool) {
	if a.IsAbove == nil {
		return 0, 0, false
	}
	above := *a.IsAbove

	switch a.AlertType {
	case models.AlertTypePrice:
		if a.PriceThreshold == nil {
			return 0, 0, false
		}
		observed, threshold = price.Price, *a.PriceThreshold
		if above {
			return observed, threshold, observed >= threshold
		}
		return observed, threshold, observed <= threshold
	case models.AlertTypePercentage:
		if a.PercentageChange == nil {
			return 0, 0, false
		}
		observed, threshold = price.Change24h, *a.PercentageChange
		if above {
			return observed, threshold, observed >= threshold
		}
		return observed, threshold, observed <= -threshold
	default:
		return 0, 0, false
	}
}

func describe(a *models.Alert, observed, threshold float64) string {
	direction := "below"
	if a.IsAbove != nil && *a.IsAbove {
		direction = "above"
	}
	if a.AlertType == models.AlertTypePercentage {
		return fmt.Sprintf("%s 24h change %.2f%% moved %s %.2f%%", a.MarketPair, observed, direction, threshold)
	}
	return fmt.Sprintf("%s price %.4f moved %s %.4f", a.MarketPair, observed, direction, threshold)
}

// triggerAlert handles alert triggering
func (am *AlertManager) triggerAlert(trigger Trigger) {
	am.mu.Lock()
	am.lastFire[trigger.AlertID] = trigger.Timestamp
	if len(am.history) >= am.config.MaxHistory {
		am.history = am.history[1:]
	}
	am.history = append(am.history, trigger)
	handlers := append([]TriggerHandler(nil), am.handlers...)
	am.mu.Unlock()

	am.logger.Info("Alert triggered",
		zap.String("alert_id", trigger.AlertID),
		zap.String("pair", trigger.MarketPair),
		zap.String("message", trigger.Message))

	if am.metrics != nil {
		am.metrics.RecordAlertTrigger(trigger.AlertType, trigger.MarketPair)
	}
	if am.publisher != nil {
		if err := am.publisher.Publish(trigger.Event()); err != nil {
			am.logger.Warn("Failed to publish alert event", zap.Error(err))
		}
	}

	// Call handlers
	for _, handler := range handlers {
		go handler(trigger)
	}
}

// Event переводит срабатывание в событие шины.
func (t Trigger) Event() *events.AlertTriggeredEvent {
	return &events.AlertTriggeredEvent{
		BaseEvent:  events.BaseEvent{EventType: events.AlertTriggered, EventTime: t.Timestamp, Owner: t.UserID},
		AlertID:    t.AlertID,
		AlertType:  t.AlertType,
		MarketPair: t.MarketPair,
		Observed:   t.Observed,
		Threshold:  t.Threshold,
		IsAbove:    t.IsAbove,
		Message:    t.Message,
	}
}

// GetRecentTriggers returns the newest triggers of a user, newest first.
func (am *AlertManager) GetRecentTriggers(userID string, limit int) []Trigger {
	am.mu.RLock()
	defer am.mu.RUnlock()

	var result []Trigger
	for i := len(am.history) - 1; i >= 0; i-- {
		if am.history[i].UserID != userID {
			continue
		}
		result = append(result, am.history[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result
}
