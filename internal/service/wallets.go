// internal/service/wallets.go
package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rovshanmuradov/solana-market-nexus/internal/apperr"
	"github.com/rovshanmuradov/solana-market-nexus/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/models"
	"github.com/rovshanmuradov/solana-market-nexus/internal/wallet"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BalanceSource возвращает баланс адреса в SOL.
type BalanceSource interface {
	GetBalance(ctx context.Context, address string) (float64, error)
}

// WalletStore - часть хранилища, нужная сервису кошельков.
type WalletStore interface {
	storage.WalletStore
	storage.TransactionStore
	storage.SettingsStore
}

// AddWalletRequest - запрос на добавление кошелька.
type AddWalletRequest struct {
	Address              string   `json:"address"`
	Label                *string  `json:"label,omitempty"`
	AllocationPercentage *float64 `json:"allocation_percentage,omitempty"`
}

// WalletBalance - ответ на запрос баланса.
type WalletBalance struct {
	WalletID string  `json:"wallet_id"`
	Address  string  `json:"address"`
	Balance  float64 `json:"balance"`
	Stale    bool    `json:"stale,omitempty"`
}

// ImportResult - итог импорта CSV.
type ImportResult struct {
	Imported []*models.Wallet     `json:"imported"`
	Rejected []wallet.ImportError `json:"rejected"`
}

// WalletServiceConfig configuration for WalletService
type WalletServiceConfig struct {
	Store    WalletStore
	Balances BalanceSource
	Logger   *zap.Logger
	// MaxConcurrentBalances ограничивает параллельные RPC-запросы.
	MaxConcurrentBalances int
}

// WalletService управляет кошельками пользователя.
type WalletService struct {
	store       WalletStore
	balances    BalanceSource
	logger      *zap.Logger
	concurrency int
	now         func() time.Time
}

func NewWalletService(config *WalletServiceConfig) *WalletService {
	concurrency := config.MaxConcurrentBalances
	if concurrency <= 0 {
		concurrency = 8
	}
	return &WalletService{
		store:       config.Store,
		balances:    config.Balances,
		logger:      config.Logger.Named("wallet_service"),
		concurrency: concurrency,
		now:         time.Now,
	}
}

func (s *WalletService) List(ctx context.Context, userID string) ([]*models.Wallet, error) {
	wallets, err := s.store.ListWallets(ctx, userID)
	if err != nil {
		return nil, storageErr(err, "")
	}
	return wallets, nil
}

// Add проверяет адрес и сохраняет кошелёк.
func (s *WalletService) Add(ctx context.Context, userID string, req AddWalletRequest) (*models.Wallet, error) {
	pubkey, err := solbc.ParseAddress(req.Address)
	if err != nil {
		return nil, apperr.BadRequest("Invalid Solana address")
	}
	allocation := 0.0
	if req.AllocationPercentage != nil {
		allocation = *req.AllocationPercentage
	}
	return s.create(ctx, userID, pubkey.String(), trimmedOrNil(req.Label), allocation)
}

func (s *WalletService) create(ctx context.Context, userID, address string, label *string, allocation float64) (*models.Wallet, error) {
	if allocation < 0 || allocation > 100 {
		return nil, apperr.BadRequest("Allocation percentage must be between 0 and 100")
	}

	_, err := s.store.GetWalletByAddress(ctx, userID, address)
	if err == nil {
		return nil, apperr.Conflict("Wallet already added")
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, storageErr(err, "")
	}

	now := utcNow(s.now)
	w := &models.Wallet{
		ID:                   newID(),
		UserID:               userID,
		Address:              address,
		Label:                label,
		AllocationPercentage: allocation,
		Status:               models.WalletStatusActive,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	// Проверка выше не атомарна; окончательно дубликат отсекает уникальный индекс.
	if err := s.store.CreateWallet(ctx, w); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperr.Conflict("Wallet already added")
		}
		return nil, storageErr(err, "")
	}
	s.logger.Info("Wallet added", zap.String("user_id", userID), zap.String("address", address))
	return w, nil
}

func (s *WalletService) Remove(ctx context.Context, userID, walletID string) error {
	if err := s.store.DeleteWallet(ctx, userID, walletID); err != nil {
		return storageErr(err, "Wallet not found")
	}
	return nil
}

// Balance запрашивает баланс из сети. При ошибке RPC возвращается 0 с
// признаком stale.
func (s *WalletService) Balance(ctx context.Context, userID, walletID string) (*WalletBalance, error) {
	w, err := s.store.GetWallet(ctx, userID, walletID)
	if err != nil {
		return nil, storageErr(err, "Wallet not found")
	}
	b := s.fetchBalance(ctx, w)
	return &WalletBalance{WalletID: w.ID, Address: w.Address, Balance: b.SOL, Stale: b.Stale}, nil
}

func (s *WalletService) fetchBalance(ctx context.Context, w *models.Wallet) wallet.Balance {
	sol, err := s.balances.GetBalance(ctx, w.Address)
	if err != nil {
		s.logger.Warn("Balance lookup failed, returning stale value",
			zap.String("wallet_id", w.ID), zap.Error(err))
		return wallet.Balance{SOL: 0, Stale: true}
	}
	return wallet.Balance{SOL: sol}
}

// Rows строит строки таблицы кошельков; sortColumn может быть пустым.
func (s *WalletService) Rows(ctx context.Context, userID, sortColumn, sortDir string) ([]wallet.Row, error) {
	var dir wallet.Direction
	if sortColumn != "" {
		if !wallet.ValidColumn(sortColumn) {
			return nil, apperr.BadRequestf("Unknown sort column: %s", sortColumn)
		}
		d, err := wallet.ParseDirection(sortDir)
		if err != nil {
			return nil, apperr.BadRequest("Sort direction must be asc or desc")
		}
		dir = d
	}

	rows, _, err := s.rows(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sortColumn != "" {
		if err := wallet.SortRows(rows, sortColumn, dir); err != nil {
			return nil, apperr.BadRequest(err.Error())
		}
	}
	return rows, nil
}

// Overview возвращает сводку по кошелькам.
func (s *WalletService) Overview(ctx context.Context, userID string) (wallet.Overview, error) {
	rows, minBalance, err := s.rows(ctx, userID)
	if err != nil {
		return wallet.Overview{}, err
	}
	return wallet.Summarize(rows, minBalance), nil
}

func (s *WalletService) minBalance(ctx context.Context, userID string) (float64, error) {
	settings, err := s.store.GetSettings(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.DefaultMinWalletBalance, nil
	}
	if err != nil {
		return 0, storageErr(err, "")
	}
	return settings.MinWalletBalance, nil
}

func (s *WalletService) rows(ctx context.Context, userID string) ([]wallet.Row, float64, error) {
	wallets, err := s.store.ListWallets(ctx, userID)
	if err != nil {
		return nil, 0, storageErr(err, "")
	}
	minBalance, err := s.minBalance(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	txs, err := s.store.ListTransactions(ctx, storage.TransactionFilter{
		UserID: userID,
		Since:  utcNow(s.now).Add(-wallet.TrustWindow),
	})
	if err != nil {
		return nil, 0, storageErr(err, "")
	}
	byWallet := make(map[string][]*models.Transaction)
	for _, tx := range txs {
		byWallet[tx.WalletID] = append(byWallet[tx.WalletID], tx)
	}

	rows := make([]wallet.Row, len(wallets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, w := range wallets {
		g.Go(func() error {
			rows[i] = wallet.BuildRow(w, s.fetchBalance(gctx, w), byWallet[w.ID], minBalance)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return rows, minBalance, nil
}

// Import добавляет кошельки из CSV: [Label, Address, Allocation].
// Повторы и некорректные строки попадают в Rejected.
func (s *WalletService) Import(ctx context.Context, userID string, r io.Reader) (*ImportResult, error) {
	records, rejects, err := wallet.ReadCSV(r)
	if err != nil {
		return nil, apperr.BadRequest(err.Error())
	}

	result := &ImportResult{Imported: []*models.Wallet{}, Rejected: rejects}
	for _, rec := range records {
		label := rec.Label
		w, err := s.create(ctx, userID, rec.Address, trimmedOrNil(&label), rec.Allocation)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindInternal {
				return nil, err
			}
			result.Rejected = append(result.Rejected, wallet.ImportError{Line: rec.Line, Reason: apperr.Message(err)})
			continue
		}
		result.Imported = append(result.Imported, w)
	}

	s.logger.Info("Wallets imported",
		zap.String("user_id", userID),
		zap.Int("imported", len(result.Imported)),
		zap.Int("rejected", len(result.Rejected)))
	return result, nil
}
