// internal/service/trading_test.go
package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/rovshanmuradov/solana-market-nexus/internal/apperr"
	"github.com/rovshanmuradov/solana-market-nexus/internal/events"
	"github.com/rovshanmuradov/solana-market-nexus/internal/export"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/memory"
	"github.com/rovshanmuradov/solana-market-nexus/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type tradingFixture struct {
	svc     *TradingService
	store   *memory.Storage
	pub     *recordingPublisher
	metrics *tradeCounter
}

func newTradingFixture(t *testing.T) *tradingFixture {
	logger := zaptest.NewLogger(t)
	catalog, err := strategy.NewCatalog(strategy.DefaultTemplates())
	require.NoError(t, err)

	f := &tradingFixture{store: memory.New(), pub: &recordingPublisher{}, metrics: &tradeCounter{}}
	f.svc = NewTradingService(&TradingServiceConfig{
		Store:     f.store,
		Prices:    fixedPricer{"SOL": 142.5},
		Templates: catalog,
		Exporter:  export.NewTradeExporter(logger),
		Publisher: f.pub,
		Metrics:   f.metrics,
		Logger:    logger,
	})
	f.svc.now = func() time.Time { return fixedNow }
	f.svc.signer = func() string { return "sig" }
	return f
}

func strategyParams() strategy.Params {
	return strategy.Params{
		Name: "MM", StrategyType: "market_making", TradingPair: "SOL/USD",
		MinTradeSize: 1, MaxTradeSize: 2, MaxDailyVolume: 10, TradeFrequency: 3,
	}
}

func TestTradingService_Strategies(t *testing.T) {
	ctx := context.Background()
	f := newTradingFixture(t)

	st, err := f.svc.CreateStrategy(ctx, "u1", strategyParams())
	require.NoError(t, err)
	assert.Equal(t, "SOL/USD", st.TradingPair)

	bad := strategyParams()
	bad.MinTradeSize = 0
	_, err = f.svc.CreateStrategy(ctx, "u1", bad)
	assertKind(t, err, apperr.KindBadRequest, "Minimum trade size must be positive")

	upd := strategyParams()
	upd.Name = "MM v2"
	upd.TradingPair = "sol_usdt"
	updated, err := f.svc.UpdateStrategy(ctx, "u1", st.ID, upd)
	require.NoError(t, err)
	assert.Equal(t, "MM v2", updated.Name)
	assert.Equal(t, "SOL/USDT", updated.TradingPair)

	_, err = f.svc.UpdateStrategy(ctx, "u2", st.ID, upd)
	assertKind(t, err, apperr.KindNotFound, "Strategy not found")

	list, err := f.svc.ListStrategies(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "MM v2", list[0].Name)

	assert.NotEmpty(t, f.svc.Templates())
}

func TestTradingService_ExecuteTrade(t *testing.T) {
	ctx := context.Background()
	f := newTradingFixture(t)
	seedWallet(t, f.store, "u1", "w1", testAddrA)

	tx, err := f.svc.ExecuteTrade(ctx, "u1", TradeRequest{WalletID: "w1", Action: "BUY", Amount: 2, Token: "sol"})
	require.NoError(t, err)
	assert.Equal(t, "buy", tx.Action)
	assert.Equal(t, "SOL", tx.Token)
	assert.Equal(t, 142.5, tx.Price)
	assert.Equal(t, "success", tx.Status)
	assert.Equal(t, 0.1, *tx.Slippage)
	assert.Equal(t, "sig", *tx.TransactionHash)
	assert.Equal(t, testAddrA, tx.WalletAddress)

	tx, err = f.svc.ExecuteTrade(ctx, "u1", TradeRequest{WalletID: "w1", Action: "sell", Amount: 1, Token: "BTC", Price: f64(61000)})
	require.NoError(t, err)
	assert.Equal(t, 61000.0, tx.Price)

	assert.Equal(t, 2, f.metrics.count)
	require.Len(t, f.pub.events, 2)
	assert.Equal(t, events.TradeExecuted, f.pub.events[0].Type())
	assert.Equal(t, "u1", f.pub.events[0].UserID())

	tests := []struct {
		name string
		req  TradeRequest
		kind apperr.Kind
		msg  string
	}{
		{"foreign wallet", TradeRequest{WalletID: "w9", Action: "buy", Amount: 1, Token: "SOL"}, apperr.KindNotFound, "Wallet not found"},
		{"zero amount", TradeRequest{WalletID: "w1", Action: "buy", Amount: 0, Token: "SOL"}, apperr.KindBadRequest, "Trade amount must be positive"},
		{"bad action", TradeRequest{WalletID: "w1", Action: "hold", Amount: 1, Token: "SOL"}, apperr.KindBadRequest, "Action must be 'buy' or 'sell'"},
		{"no token", TradeRequest{WalletID: "w1", Action: "buy", Amount: 1}, apperr.KindBadRequest, "Token is required"},
		{"negative price", TradeRequest{WalletID: "w1", Action: "buy", Amount: 1, Token: "SOL", Price: f64(-1)}, apperr.KindBadRequest, "Price must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ExecuteTrade(ctx, "u1", tt.req)
			assertKind(t, err, tt.kind, tt.msg)
		})
	}
}

func TestTradingService_TransactionsAndStats(t *testing.T) {
	ctx := context.Background()
	f := newTradingFixture(t)
	seedWallet(t, f.store, "u1", "w1", testAddrA)
	seedWallet(t, f.store, "u1", "w2", testAddrB)

	for i := 0; i < 25; i++ {
		seedTx(t, f.store, "u1", "w1", "buy", "success", 1, 100, fixedNow.Add(-time.Duration(i)*time.Minute))
	}
	seedTx(t, f.store, "u1", "w2", "sell", "failed", 1, 100, fixedNow)
	seedTx(t, f.store, "u2", "w9", "sell", "success", 1, 100, fixedNow)

	txs, err := f.svc.ListTransactions(ctx, "u1", TransactionQuery{})
	require.NoError(t, err)
	assert.Len(t, txs, DefaultTransactionLimit)

	txs, err = f.svc.ListTransactions(ctx, "u1", TransactionQuery{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, txs, 26)

	txs, err = f.svc.ListTransactions(ctx, "u1", TransactionQuery{WalletID: "w2"})
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	_, err = f.svc.ListTransactions(ctx, "u1", TransactionQuery{WalletID: "w9"})
	assertKind(t, err, apperr.KindNotFound, "Wallet not found")

	stats, err := f.svc.TransactionStats(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, 26, stats.TotalTransactions)
	assert.Equal(t, 25, stats.BuyCount)
	assert.Equal(t, 0, stats.SellCount)
	assert.Equal(t, 100.0/26, stats.FailureRate)

	var buf bytes.Buffer
	n, err := f.svc.ExportTransactions(ctx, "u1", "w2", &buf, export.ExportOptions{Format: export.FormatCSV})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 2)

	assert.Contains(t, f.svc.ExportFilename(export.ExportOptions{Format: export.FormatJSON}), ".json")
}
