// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/models"
)

var (
	// ErrNotFound возвращается, когда документ не найден или принадлежит другому пользователю.
	ErrNotFound = errors.New("storage: not found")
	// ErrDuplicate возвращается при нарушении уникального индекса.
	ErrDuplicate = errors.New("storage: duplicate key")
)

// Имена коллекций
const (
	CollectionUsers        = "users"
	CollectionWallets      = "wallets"
	CollectionStrategies   = "strategies"
	CollectionTransactions = "transactions"
	CollectionAlerts       = "alerts"
	CollectionSettings     = "settings"
	CollectionMarketData   = "market_data"
)

// TransactionFilter ограничивает выборку транзакций. Пустые поля не фильтруют.
type TransactionFilter struct {
	UserID   string
	WalletID string
	Since    time.Time
	Limit    int
}

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type WalletStore interface {
	ListWallets(ctx context.Context, userID string) ([]*models.Wallet, error)
	GetWallet(ctx context.Context, userID, id string) (*models.Wallet, error)
	GetWalletByAddress(ctx context.Context, userID, address string) (*models.Wallet, error)
	CreateWallet(ctx context.Context, wallet *models.Wallet) error
	DeleteWallet(ctx context.Context, userID, id string) error
}

type StrategyStore interface {
	ListStrategies(ctx context.Context, userID string) ([]*models.Strategy, error)
	GetStrategy(ctx context.Context, userID, id string) (*models.Strategy, error)
	CreateStrategy(ctx context.Context, strategy *models.Strategy) error
	UpdateStrategy(ctx context.Context, strategy *models.Strategy) error
}

type TransactionStore interface {
	SaveTransaction(ctx context.Context, tx *models.Transaction) error
	// ListTransactions возвращает транзакции от новых к старым.
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*models.Transaction, error)
}

type AlertStore interface {
	ListAlerts(ctx context.Context, userID string) ([]*models.Alert, error)
	ListEnabledAlerts(ctx context.Context) ([]*models.Alert, error)
	CreateAlert(ctx context.Context, alert *models.Alert) error
	DeleteAlert(ctx context.Context, userID, id string) error
	MarkAlertTriggered(ctx context.Context, id string, at time.Time) error
}

type SettingsStore interface {
	GetSettings(ctx context.Context, userID string) (*models.Settings, error)
	// PatchSettings атомарно применяет patch к настройкам пользователя.
	// Если записи нет, она создаётся из defaults; UpdatedAt берётся из defaults.
	PatchSettings(ctx context.Context, defaults *models.Settings, patch models.SettingsPatch) (*models.Settings, error)
}

type MarketDataStore interface {
	UpsertMarketData(ctx context.Context, record *models.MarketDataRecord) error
	GetMarketData(ctx context.Context, symbol string) (*models.MarketDataRecord, error)
	ListMarketData(ctx context.Context) ([]*models.MarketDataRecord, error)
}

// Storage определяет интерфейс для работы с хранилищем
type Storage interface {
	UserStore
	WalletStore
	StrategyStore
	TransactionStore
	AlertStore
	SettingsStore
	MarketDataStore

	// EnsureIndexes создаёт индексы; повторный вызов безопасен.
	EnsureIndexes(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
