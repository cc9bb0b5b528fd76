// internal/service/trading.go
package service

import (
	"context"
	"crypto/rand"
	"io"
	"strings"
	"time"

	"github.com/rovshanmuradov/solana-market-nexus/internal/apperr"
	"github.com/rovshanmuradov/solana-market-nexus/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solana-market-nexus/internal/events"
	"github.com/rovshanmuradov/solana-market-nexus/internal/export"
	"github.com/rovshanmuradov/solana-market-nexus/internal/monitor"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/models"
	"github.com/rovshanmuradov/solana-market-nexus/internal/strategy"
	"go.uber.org/zap"
)

// Лимиты выборки транзакций.
const (
	DefaultTransactionLimit = 20
	MaxTransactionLimit     = 200
	simulatedSlippage       = 0.1
)

// TokenPricer возвращает цену токена в USD.
type TokenPricer interface {
	TokenUSDPrice(ctx context.Context, token string) float64
}

// TradeRecorder учитывает сделки в метриках.
type TradeRecorder interface {
	RecordTrade(action, token, status string)
}

// TradingStore - часть хранилища, нужная торговому сервису.
type TradingStore interface {
	storage.WalletStore
	storage.StrategyStore
	storage.TransactionStore
}

// TradeRequest - запрос на исполнение сделки.
type TradeRequest struct {
	WalletID string   `json:"wallet_id"`
	Action   string   `json:"action"`
	Amount   float64  `json:"amount"`
	Token    string   `json:"token"`
	Price    *float64 `json:"price,omitempty"`
}

// TransactionQuery - параметры списка транзакций.
type TransactionQuery struct {
	Limit    int
	WalletID string
}

// TradingServiceConfig configuration for TradingService
type TradingServiceConfig struct {
	Store     TradingStore
	Prices    TokenPricer
	Templates *strategy.Catalog
	Exporter  *export.TradeExporter
	Publisher events.Publisher
	Metrics   TradeRecorder
	Logger    *zap.Logger
}

// TradingService provides strategy management and simulated trade execution
type TradingService struct {
	store     TradingStore
	prices    TokenPricer
	templates *strategy.Catalog
	exporter  *export.TradeExporter
	publisher events.Publisher
	metrics   TradeRecorder
	logger    *zap.Logger
	now       func() time.Time
	signer    func() string
}

// NewTradingService creates a new trading service
func NewTradingService(config *TradingServiceConfig) *TradingService {
	return &TradingService{
		store:     config.Store,
		prices:    config.Prices,
		templates: config.Templates,
		exporter:  config.Exporter,
		publisher: config.Publisher,
		metrics:   config.Metrics,
		logger:    config.Logger.Named("trading_service"),
		now:       time.Now,
		signer:    randomSignature,
	}
}

func randomSignature() string {
	var raw [64]byte
	_, _ = rand.Read(raw[:])
	return solbc.SimulatedSignature(raw)
}

func (s *TradingService) ListStrategies(ctx context.Context, userID string) ([]*models.Strategy, error) {
	strategies, err := s.store.ListStrategies(ctx, userID)
	if err != nil {
		return nil, storageErr(err, "")
	}
	return strategies, nil
}

func (s *TradingService) CreateStrategy(ctx context.Context, userID string, params strategy.Params) (*models.Strategy, error) {
	params, err := params.Normalize()
	if err != nil {
		return nil, err
	}

	now := utcNow(s.now)
	st := &models.Strategy{ID: newID(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	params.ApplyTo(st)
	if err := s.store.CreateStrategy(ctx, st); err != nil {
		return nil, storageErr(err, "")
	}
	s.logger.Info("Strategy created", zap.String("user_id", userID), zap.String("strategy_id", st.ID))
	return st, nil
}

func (s *TradingService) UpdateStrategy(ctx context.Context, userID, strategyID string, params strategy.Params) (*models.Strategy, error) {
	st, err := s.store.GetStrategy(ctx, userID, strategyID)
	if err != nil {
		return nil, storageErr(err, "Strategy not found")
	}
	params, err = params.Normalize()
	if err != nil {
		return nil, err
	}

	params.ApplyTo(st)
	st.UpdatedAt = utcNow(s.now)
	if err := s.store.UpdateStrategy(ctx, st); err != nil {
		return nil, storageErr(err, "Strategy not found")
	}
	return st, nil
}

// Templates возвращает готовые шаблоны стратегий.
func (s *TradingService) Templates() []strategy.Template {
	if s.templates == nil {
		return []strategy.Template{}
	}
	return s.templates.List()
}

// ExecuteTrade записывает симулированную сделку и публикует событие.
func (s *TradingService) ExecuteTrade(ctx context.Context, userID string, req TradeRequest) (*models.Transaction, error) {
	w, err := s.store.GetWallet(ctx, userID, req.WalletID)
	if err != nil {
		return nil, storageErr(err, "Wallet not found")
	}
	if req.Amount <= 0 {
		return nil, apperr.BadRequest("Trade amount must be positive")
	}
	action := strings.ToLower(strings.TrimSpace(req.Action))
	if action != models.ActionBuy && action != models.ActionSell {
		return nil, apperr.BadRequest("Action must be 'buy' or 'sell'")
	}
	token := strings.ToUpper(strings.TrimSpace(req.Token))
	if token == "" {
		return nil, apperr.BadRequest("Token is required")
	}

	var price float64
	if req.Price != nil {
		if *req.Price <= 0 {
			return nil, apperr.BadRequest("Price must be positive")
		}
		price = *req.Price
	} else {
		price = s.prices.TokenUSDPrice(ctx, token)
	}

	slippage := simulatedSlippage
	signature := s.signer()
	tx := &models.Transaction{
		ID:              newID(),
		UserID:          userID,
		WalletID:        w.ID,
		WalletAddress:   w.Address,
		Action:          action,
		Amount:          req.Amount,
		Token:           token,
		Price:           price,
		Status:          models.TxStatusSuccess,
		Slippage:        &slippage,
		TransactionHash: &signature,
		CreatedAt:       utcNow(s.now),
	}
	if err := s.store.SaveTransaction(ctx, tx); err != nil {
		return nil, storageErr(err, "")
	}

	if s.metrics != nil {
		s.metrics.RecordTrade(action, token, tx.Status)
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(events.NewTradeExecuted(*tx)); err != nil {
			s.logger.Warn("Trade event not published", zap.Error(err))
		}
	}

	s.logger.Info("Trade executed",
		zap.String("user_id", userID),
		zap.String("wallet_id", w.ID),
		zap.String("action", action),
		zap.Float64("amount", req.Amount),
		zap.String("token", token),
		zap.Float64("price", price))
	return tx, nil
}

// ListTransactions возвращает последние транзакции пользователя.
func (s *TradingService) ListTransactions(ctx context.Context, userID string, q TransactionQuery) ([]*models.Transaction, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultTransactionLimit
	}
	if limit > MaxTransactionLimit {
		limit = MaxTransactionLimit
	}
	return s.transactions(ctx, userID, q.WalletID, limit)
}

func (s *TradingService) transactions(ctx context.Context, userID, walletID string, limit int) ([]*models.Transaction, error) {
	if walletID != "" {
		if _, err := s.store.GetWallet(ctx, userID, walletID); err != nil {
			return nil, storageErr(err, "Wallet not found")
		}
	}
	txs, err := s.store.ListTransactions(ctx, storage.TransactionFilter{
		UserID:   userID,
		WalletID: walletID,
		Limit:    limit,
	})
	if err != nil {
		return nil, storageErr(err, "")
	}
	return txs, nil
}

// TransactionStats считает сводку по всем транзакциям пользователя.
func (s *TradingService) TransactionStats(ctx context.Context, userID, walletID string) (monitor.TransactionStats, error) {
	txs, err := s.transactions(ctx, userID, walletID, 0)
	if err != nil {
		return monitor.TransactionStats{}, err
	}
	return monitor.Summarize(txs), nil
}

// ExportTransactions пишет транзакции пользователя в w.
func (s *TradingService) ExportTransactions(ctx context.Context, userID, walletID string, w io.Writer, opts export.ExportOptions) (int, error) {
	txs, err := s.transactions(ctx, userID, walletID, 0)
	if err != nil {
		return 0, err
	}
	n, err := s.exporter.ExportTrades(w, txs, opts)
	if err != nil {
		return 0, apperr.Internal("Failed to export transactions", err)
	}
	return n, nil
}

// ExportFilename возвращает имя файла выгрузки.
func (s *TradingService) ExportFilename(opts export.ExportOptions) string {
	return s.exporter.Filename(opts)
}
