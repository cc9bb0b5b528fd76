// internal/service/settings_test.go
package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rovshanmuradov/solana-market-nexus/internal/apperr"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/memory"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSettingsService(t *testing.T) {
	ctx := context.Background()
	svc := NewSettingsService(memory.New(), zaptest.NewLogger(t))

	_, err := svc.Get(ctx, "u1")
	assertKind(t, err, apperr.KindNotFound, "Settings not found")

	s, err := svc.Update(ctx, "u1", models.SettingsPatch{AutoRebalance: boolp(true)})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultMinWalletBalance, s.MinWalletBalance)
	assert.Equal(t, models.DefaultAllocationPercentage, s.DefaultAllocationPercentage)
	assert.Equal(t, "medium", s.RiskLevel)
	assert.True(t, s.AutoRebalance)
	firstID := s.ID

	s, err = svc.Update(ctx, "u1", models.SettingsPatch{RiskLevel: strp("HIGH"), MinWalletBalance: f64(0.5), NotificationEmail: strp(" ops@example.com ")})
	require.NoError(t, err)
	assert.Equal(t, firstID, s.ID)
	assert.Equal(t, "high", s.RiskLevel)
	assert.Equal(t, 0.5, s.MinWalletBalance)
	assert.True(t, s.AutoRebalance)
	assert.Equal(t, "ops@example.com", *s.NotificationEmail)

	got, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "high", got.RiskLevel)
}

func TestSettingsService_Validation(t *testing.T) {
	svc := NewSettingsService(memory.New(), zaptest.NewLogger(t))
	tests := []struct {
		name  string
		patch models.SettingsPatch
		msg   string
	}{
		{"negative balance", models.SettingsPatch{MinWalletBalance: f64(-1)}, "Minimum wallet balance cannot be negative"},
		{"allocation over 100", models.SettingsPatch{DefaultAllocationPercentage: f64(100.5)}, "Allocation percentage must be between 0 and 100"},
		{"allocation negative", models.SettingsPatch{DefaultAllocationPercentage: f64(-0.1)}, "Allocation percentage must be between 0 and 100"},
		{"bad risk", models.SettingsPatch{RiskLevel: strp("extreme")}, "Risk level must be low, medium, or high"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(context.Background(), "u1", tt.patch)
			assertKind(t, err, apperr.KindBadRequest, tt.msg)
		})
	}
}

// slowReadStore задерживает чтение настроек, чтобы расширить окно гонки.
type slowReadStore struct {
	storage.SettingsStore
	reads atomic.Int32
}

func (s *slowReadStore) GetSettings(ctx context.Context, userID string) (*models.Settings, error) {
	s.reads.Add(1)
	time.Sleep(20 * time.Millisecond)
	return s.SettingsStore.GetSettings(ctx, userID)
}

func TestSettingsService_ConcurrentUpdatesKeepBothFields(t *testing.T) {
	ctx := context.Background()
	store := &slowReadStore{SettingsStore: memory.New()}
	svc := NewSettingsService(store, zaptest.NewLogger(t))

	for round := 0; round < 5; round++ {
		userID := "u" + string(rune('a'+round))
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Update(ctx, userID, models.SettingsPatch{RiskLevel: strp("low")})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Update(ctx, userID, models.SettingsPatch{AutoRebalance: boolp(true)})
			assert.NoError(t, err)
		}()
		wg.Wait()

		got, err := svc.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "low", got.RiskLevel)
		assert.True(t, got.AutoRebalance)
		assert.Equal(t, models.DefaultMinWalletBalance, got.MinWalletBalance)
	}
	// Get читает пять раз; Update не читает.
	assert.Equal(t, int32(5), store.reads.Load())
}
