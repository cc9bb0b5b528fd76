// internal/service/wallets_test.go
package service

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rovshanmuradov/solana-market-nexus/internal/apperr"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/memory"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/models"
	"github.com/rovshanmuradov/solana-market-nexus/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newWalletService(t *testing.T, store *memory.Storage, balances *fakeBalances) *WalletService {
	svc := NewWalletService(&WalletServiceConfig{
		Store:                 store,
		Balances:              balances,
		Logger:                zaptest.NewLogger(t),
		MaxConcurrentBalances: 2,
	})
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestWalletService_AddListRemove(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newWalletService(t, store, &fakeBalances{})

	w, err := svc.Add(ctx, "u1", AddWalletRequest{Address: testAddrA, Label: strp("  main "), AllocationPercentage: f64(30)})
	require.NoError(t, err)
	assert.Equal(t, "main", *w.Label)
	assert.Equal(t, models.WalletStatusActive, w.Status)
	assert.Equal(t, 30.0, w.AllocationPercentage)

	_, err = svc.Add(ctx, "u1", AddWalletRequest{Address: testAddrA})
	assertKind(t, err, apperr.KindConflict, "")

	// другой пользователь может добавить тот же адрес
	_, err = svc.Add(ctx, "u2", AddWalletRequest{Address: testAddrA})
	require.NoError(t, err)

	_, err = svc.Add(ctx, "u1", AddWalletRequest{Address: "not-base58!"})
	assertKind(t, err, apperr.KindBadRequest, "Invalid Solana address")

	_, err = svc.Add(ctx, "u1", AddWalletRequest{Address: testAddrB, AllocationPercentage: f64(101)})
	assertKind(t, err, apperr.KindBadRequest, "Allocation percentage must be between 0 and 100")

	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	assertKind(t, svc.Remove(ctx, "u2", w.ID), apperr.KindNotFound, "Wallet not found")
	require.NoError(t, svc.Remove(ctx, "u1", w.ID))
	assertKind(t, svc.Remove(ctx, "u1", w.ID), apperr.KindNotFound, "Wallet not found")
}

func TestWalletService_Balance(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	balances := &fakeBalances{balances: map[string]float64{testAddrA: 2.5}}
	svc := newWalletService(t, store, balances)

	seedWallet(t, store, "u1", "w1", testAddrA)
	seedWallet(t, store, "u1", "w2", testAddrB)

	b, err := svc.Balance(ctx, "u1", "w1")
	require.NoError(t, err)
	assert.Equal(t, 2.5, b.Balance)
	assert.False(t, b.Stale)

	b, err = svc.Balance(ctx, "u1", "w2")
	require.NoError(t, err)
	assert.Equal(t, 0.0, b.Balance)
	assert.True(t, b.Stale)

	_, err = svc.Balance(ctx, "u2", "w1")
	assertKind(t, err, apperr.KindNotFound, "Wallet not found")
}

func TestWalletService_RowsAndOverview(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	balances := &fakeBalances{balances: map[string]float64{testAddrA: 5, testAddrB: 0.05, testAddrC: 1}}
	svc := newWalletService(t, store, balances)

	seedWallet(t, store, "u1", "w1", testAddrA)
	seedWallet(t, store, "u1", "w2", testAddrB)
	seedWallet(t, store, "u1", "w3", testAddrC)

	recent := fixedNow.Add(-time.Hour)
	seedTx(t, store, "u1", "w1", "buy", "success", 1, 150, recent)
	seedTx(t, store, "u1", "w1", "sell", "success", 2, 100, recent)
	seedTx(t, store, "u1", "w3", "buy", "success", 1, 10, recent)
	seedTx(t, store, "u1", "w3", "buy", "failed", 1, 10, recent)
	// вне окна 24 часов
	seedTx(t, store, "u1", "w3", "buy", "failed", 1, 10, fixedNow.Add(-48*time.Hour))

	rows, err := svc.Rows(ctx, "u1", wallet.ColumnBalance, "desc")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"w1", "w3", "w2"}, []string{rows[0].ID, rows[1].ID, rows[2].ID})

	assert.Equal(t, 350.0, rows[0].Volume24h)
	assert.Equal(t, 2, rows[0].Trades24h)
	assert.Equal(t, 100.0, rows[0].TrustScore)
	assert.Equal(t, 50.0, rows[1].TrustScore)
	assert.Equal(t, wallet.StatusLowBalance, rows[2].Status)

	rows, err = svc.Rows(ctx, "u1", wallet.ColumnTrust, "asc")
	require.NoError(t, err)
	assert.Equal(t, "w3", rows[0].ID)

	_, err = svc.Rows(ctx, "u1", "secret", "asc")
	assertKind(t, err, apperr.KindBadRequest, "")
	_, err = svc.Rows(ctx, "u1", wallet.ColumnBalance, "up")
	assertKind(t, err, apperr.KindBadRequest, "")

	ov, err := svc.Overview(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, ov.TotalWallets)
	assert.Equal(t, 6.05, ov.TotalBalance)
	// w2 - низкий баланс, w3 - доверие 50
	assert.Equal(t, 2, ov.WalletsAtRisk)
	assert.Equal(t, 4, ov.Trades24h)
}

func TestWalletService_OverviewUsesSettings(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	balances := &fakeBalances{balances: map[string]float64{testAddrA: 0.5}}
	svc := newWalletService(t, store, balances)
	seedWallet(t, store, "u1", "w1", testAddrA)

	ov, err := svc.Overview(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, ov.WalletsAtRisk)

	minBalance := 1.0
	_, err = store.PatchSettings(ctx, &models.Settings{ID: "s1", UserID: "u1"},
		models.SettingsPatch{MinWalletBalance: &minBalance})
	require.NoError(t, err)
	ov, err = svc.Overview(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, ov.WalletsAtRisk)
}

func TestWalletService_Import(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newWalletService(t, store, &fakeBalances{})
	seedWallet(t, store, "u1", "w1", testAddrA)

	csv := strings.Join([]string{
		"label,address,allocation",
		"dup," + testAddrA + ",10",
		"wsol," + testAddrB + ",20",
		",bad-address,5",
		"usdc," + testAddrC,
	}, "\n")

	result, err := svc.Import(ctx, "u1", strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, result.Imported, 2)
	assert.Equal(t, testAddrB, result.Imported[0].Address)
	assert.Equal(t, 20.0, result.Imported[0].AllocationPercentage)
	assert.Equal(t, "wsol", *result.Imported[0].Label)

	require.Len(t, result.Rejected, 2)
	lines := []int{result.Rejected[0].Line, result.Rejected[1].Line}
	assert.ElementsMatch(t, []int{2, 4}, lines)

	_, err = svc.Import(ctx, "u1", strings.NewReader(""))
	assertKind(t, err, apperr.KindBadRequest, "")
}

func TestWalletService_ConcurrentAddSameAddress(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newWalletService(t, store, &fakeBalances{})

	var (
		wg        sync.WaitGroup
		added     atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Add(ctx, "u1", AddWalletRequest{Address: testAddrA})
			switch {
			case err == nil:
				added.Add(1)
			case apperr.KindOf(err) == apperr.KindConflict:
				assert.Equal(t, "Wallet already added", apperr.Message(err))
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), added.Load())
	assert.Equal(t, int32(15), conflicts.Load())
	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
