package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rovshanmuradov/solana-market-nexus/internal/storage"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsersUniqueEmail(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "u1", Email: "a@b.io"}))
	assert.ErrorIs(t, s.CreateUser(ctx, &models.User{ID: "u2", Email: "a@b.io"}), storage.ErrDuplicate)

	u, err := s.GetUserByEmail(ctx, "a@b.io")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	_, err = s.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWalletOwnership(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateWallet(ctx, &models.Wallet{ID: "w1", UserID: "u1", Address: "A"}))

	_, err := s.GetWallet(ctx, "u2", "w1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteWallet(ctx, "u2", "w1"), storage.ErrNotFound)

	list, err := s.ListWallets(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.DeleteWallet(ctx, "u1", "w1"))
	_, err = s.GetWallet(ctx, "u1", "w1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateStrategy(ctx, &models.Strategy{ID: "s1", UserID: "u1", Name: "grid"}))

	got, err := s.GetStrategy(ctx, "u1", "s1")
	require.NoError(t, err)
	got.Name = "changed"

	again, err := s.GetStrategy(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "grid", again.Name)
}

func TestListTransactionsFilter(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		wallet := "w1"
		if i%2 == 1 {
			wallet = "w2"
		}
		require.NoError(t, s.SaveTransaction(ctx, &models.Transaction{
			ID:        fmt.Sprintf("t%d", i),
			UserID:    "u1",
			WalletID:  wallet,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, s.SaveTransaction(ctx, &models.Transaction{ID: "other", UserID: "u2", CreatedAt: base}))

	tests := []struct {
		name   string
		filter storage.TransactionFilter
		want   []string
	}{
		{"by user newest first", storage.TransactionFilter{UserID: "u1"}, []string{"t4", "t3", "t2", "t1", "t0"}},
		{"limit", storage.TransactionFilter{UserID: "u1", Limit: 2}, []string{"t4", "t3"}},
		{"by wallet", storage.TransactionFilter{UserID: "u1", WalletID: "w2"}, []string{"t3", "t1"}},
		{"since", storage.TransactionFilter{UserID: "u1", Since: base.Add(3 * time.Hour)}, []string{"t4", "t3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs, err := s.ListTransactions(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(txs))
			for _, tx := range txs {
				ids = append(ids, tx.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestAlertsAndSettings(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.CreateAlert(ctx, &models.Alert{ID: "a1", UserID: "u1", Enabled: true}))
	require.NoError(t, s.CreateAlert(ctx, &models.Alert{ID: "a2", UserID: "u1", Enabled: false}))

	enabled, err := s.ListEnabledAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 1)

	at := time.Now()
	require.NoError(t, s.MarkAlertTriggered(ctx, "a1", at))
	alerts, err := s.ListAlerts(ctx, "u1")
	require.NoError(t, err)
	for _, a := range alerts {
		if a.ID == "a1" {
			require.NotNil(t, a.LastTriggeredAt)
			assert.True(t, a.LastTriggeredAt.Equal(at))
		}
	}

	_, err = s.GetSettings(ctx, "u1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	high := "high"
	created, err := s.PatchSettings(ctx, &models.Settings{ID: "s", UserID: "u1", RiskLevel: "low"}, models.SettingsPatch{})
	require.NoError(t, err)
	assert.Equal(t, "low", created.RiskLevel)
	_, err = s.PatchSettings(ctx, &models.Settings{ID: "other", UserID: "u1", RiskLevel: "low"}, models.SettingsPatch{RiskLevel: &high})
	require.NoError(t, err)
	st, err := s.GetSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "high", st.RiskLevel)
	assert.Equal(t, "s", st.ID)
}

func TestWalletAddressUniquePerUser(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateWallet(ctx, &models.Wallet{ID: "w1", UserID: "u1", Address: "A"}))

	assert.ErrorIs(t, s.CreateWallet(ctx, &models.Wallet{ID: "w2", UserID: "u1", Address: "A"}), storage.ErrDuplicate)
	require.NoError(t, s.CreateWallet(ctx, &models.Wallet{ID: "w3", UserID: "u2", Address: "A"}))

	list, err := s.ListWallets(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestConcurrentSettingsPatches(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defaults := &models.Settings{ID: fmt.Sprintf("s%d", i), UserID: "u1", RiskLevel: "medium"}
			var patch models.SettingsPatch
			if i%2 == 0 {
				on := true
				patch.AutoRebalance = &on
			} else {
				low := "low"
				patch.RiskLevel = &low
			}
			_, err := s.PatchSettings(ctx, defaults, patch)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	st, err := s.GetSettings(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, st.AutoRebalance)
	assert.Equal(t, "low", st.RiskLevel)
}

func TestSettingsPatchCopiesEmail(t *testing.T) {
	ctx := context.Background()
	s := New()
	email := "a@b.io"
	patch := models.SettingsPatch{NotificationEmail: &email}

	_, err := s.PatchSettings(ctx, &models.Settings{ID: "s", UserID: "u1"}, patch)
	require.NoError(t, err)
	email = "changed@b.io"

	st, err := s.GetSettings(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, st.NotificationEmail)
	assert.Equal(t, "a@b.io", *st.NotificationEmail)
}

func TestConcurrentMarketDataUpserts(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			symbol := []string{"SOL/USD", "BTC/SOL"}[i%2]
			_ = s.UpsertMarketData(ctx, &models.MarketDataRecord{Symbol: symbol, Price: float64(i)})
			_, _ = s.ListMarketData(ctx)
		}(i)
	}
	wg.Wait()

	all, err := s.ListMarketData(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "BTC/SOL", all[0].Symbol)
}
