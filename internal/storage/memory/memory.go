// internal/storage/memory/memory.go
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rovshanmuradov/solana-market-nexus/internal/storage"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/models"
)

// Storage - потокобезопасное хранилище в памяти для разработки и тестов.
// Возвращаемые значения являются копиями.
type Storage struct {
	mu           sync.RWMutex
	users        map[string]models.User
	wallets      map[string]models.Wallet
	strategies   map[string]models.Strategy
	transactions []models.Transaction
	alerts       map[string]models.Alert
	settings     map[string]models.Settings // ключ - user_id
	marketData   map[string]models.MarketDataRecord
}

var _ storage.Storage = (*Storage)(nil)

// New создает пустое хранилище.
func New() *Storage {
	return &Storage{
		users:      make(map[string]models.User),
		wallets:    make(map[string]models.Wallet),
		strategies: make(map[string]models.Strategy),
		alerts:     make(map[string]models.Alert),
		settings:   make(map[string]models.Settings),
		marketData: make(map[string]models.MarketDataRecord),
	}
}

func (s *Storage) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return storage.ErrDuplicate
	}
	for _, u := range s.users {
		if u.Email == user.Email {
			return storage.ErrDuplicate
		}
	}
	s.users[user.ID] = *user
	return nil
}

func (s *Storage) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Storage) ListWallets(_ context.Context, userID string) ([]*models.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Wallet, 0)
	for _, w := range s.wallets {
		if w.UserID == userID {
			w := w
			out = append(out, &w)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Storage) GetWallet(_ context.Context, userID, id string) (*models.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[id]
	if !ok || w.UserID != userID {
		return nil, storage.ErrNotFound
	}
	return &w, nil
}

func (s *Storage) GetWalletByAddress(_ context.Context, userID, address string) (*models.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.wallets {
		if w.UserID == userID && w.Address == address {
			return &w, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Storage) CreateWallet(_ context.Context, wallet *models.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[wallet.ID]; ok {
		return storage.ErrDuplicate
	}
	// Повторяет уникальный индекс (user_id, address) из mongo.
	for _, w := range s.wallets {
		if w.UserID == wallet.UserID && w.Address == wallet.Address {
			return storage.ErrDuplicate
		}
	}
	s.wallets[wallet.ID] = *wallet
	return nil
}

func (s *Storage) DeleteWallet(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[id]
	if !ok || w.UserID != userID {
		return storage.ErrNotFound
	}
	delete(s.wallets, id)
	return nil
}

func (s *Storage) ListStrategies(_ context.Context, userID string) ([]*models.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Strategy, 0)
	for _, st := range s.strategies {
		if st.UserID == userID {
			st := st
			out = append(out, &st)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Storage) GetStrategy(_ context.Context, userID, id string) (*models.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.strategies[id]
	if !ok || st.UserID != userID {
		return nil, storage.ErrNotFound
	}
	return &st, nil
}

func (s *Storage) CreateStrategy(_ context.Context, strategy *models.Strategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.strategies[strategy.ID]; ok {
		return storage.ErrDuplicate
	}
	s.strategies[strategy.ID] = *strategy
	return nil
}

func (s *Storage) UpdateStrategy(_ context.Context, strategy *models.Strategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.strategies[strategy.ID]
	if !ok || existing.UserID != strategy.UserID {
		return storage.ErrNotFound
	}
	s.strategies[strategy.ID] = *strategy
	return nil
}

func (s *Storage) SaveTransaction(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.transactions {
		if existing.ID == tx.ID {
			return storage.ErrDuplicate
		}
	}
	s.transactions = append(s.transactions, *tx)
	return nil
}

func (s *Storage) ListTransactions(_ context.Context, filter storage.TransactionFilter) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Transaction, 0)
	for _, tx := range s.transactions {
		if filter.UserID != "" && tx.UserID != filter.UserID {
			continue
		}
		if filter.WalletID != "" && tx.WalletID != filter.WalletID {
			continue
		}
		if !filter.Since.IsZero() && tx.CreatedAt.Before(filter.Since) {
			continue
		}
		tx := tx
		out = append(out, &tx)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Storage) ListAlerts(_ context.Context, userID string) ([]*models.Alert, error) {
	return s.filterAlerts(func(a models.Alert) bool { return a.UserID == userID }), nil
}

func (s *Storage) ListEnabledAlerts(_ context.Context) ([]*models.Alert, error) {
	return s.filterAlerts(func(a models.Alert) bool { return a.Enabled }), nil
}

func (s *Storage) filterAlerts(keep func(models.Alert) bool) []*models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Alert, 0)
	for _, a := range s.alerts {
		if keep(a) {
			a := a
			out = append(out, &a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Storage) CreateAlert(_ context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[alert.ID]; ok {
		return storage.ErrDuplicate
	}
	s.alerts[alert.ID] = *alert
	return nil
}

func (s *Storage) DeleteAlert(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok || a.UserID != userID {
		return storage.ErrNotFound
	}
	delete(s.alerts, id)
	return nil
}

func (s *Storage) MarkAlertTriggered(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return storage.ErrNotFound
	}
	a.LastTriggeredAt = &at
	a.UpdatedAt = at
	s.alerts[id] = a
	return nil
}

func (s *Storage) GetSettings(_ context.Context, userID string) (*models.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.settings[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &st, nil
}

func (s *Storage) PatchSettings(_ context.Context, defaults *models.Settings, patch models.SettingsPatch) (*models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settings[defaults.UserID]
	if !ok {
		st = *defaults
	}
	patch.Apply(&st)
	st.UpdatedAt = defaults.UpdatedAt
	s.settings[st.UserID] = st
	return &st, nil
}

func (s *Storage) UpsertMarketData(_ context.Context, record *models.MarketDataRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marketData[record.Symbol] = *record
	return nil
}

func (s *Storage) GetMarketData(_ context.Context, symbol string) (*models.MarketDataRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.marketData[symbol]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &r, nil
}

func (s *Storage) ListMarketData(_ context.Context) ([]*models.MarketDataRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.MarketDataRecord, 0, len(s.marketData))
	for _, r := range s.marketData {
		r := r
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *Storage) EnsureIndexes(context.Context) error { return nil }

func (s *Storage) Ping(context.Context) error { return nil }

func (s *Storage) Close(context.Context) error { return nil }
