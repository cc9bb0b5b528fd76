package strategy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rovshanmuradov/solana-market-nexus/internal/apperr"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func validParams() Params {
	return Params{
		Name:           "My strategy",
		StrategyType:   "Market_Making",
		TradingPair:    "sol-usdc",
		MinTradeSize:   0.1,
		MaxTradeSize:   1,
		MaxDailyVolume: 10,
		TradeFrequency: 5,
	}
}

func TestParams_Normalize(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Params)
		wantMsg string
	}{
		{"valid", func(*Params) {}, ""},
		{"equal sizes", func(p *Params) { p.MaxTradeSize = p.MinTradeSize }, ""},
		{"zero delay", func(p *Params) { p.TransactionDelay = 0 }, ""},
		{"empty name", func(p *Params) { p.Name = "  " }, "Strategy name is required"},
		{"bad type", func(p *Params) { p.StrategyType = "hodl" }, "Invalid strategy type"},
		{"bad pair", func(p *Params) { p.TradingPair = "DOGE/USD" }, "Unsupported trading pair"},
		{"zero min", func(p *Params) { p.MinTradeSize = 0 }, "Minimum trade size must be positive"},
		{"max below min", func(p *Params) { p.MaxTradeSize = 0.05 }, "Maximum trade size must be greater than minimum trade size"},
		{"zero daily", func(p *Params) { p.MaxDailyVolume = 0 }, "Maximum daily volume must be positive"},
		{"negative delay", func(p *Params) { p.TransactionDelay = -1 }, "Transaction delay cannot be negative"},
		{"zero frequency", func(p *Params) { p.TradeFrequency = 0 }, "Trade frequency must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			got, err := p.Normalize()
			if tt.wantMsg == "" {
				require.NoError(t, err)
				assert.Equal(t, "market_making", got.StrategyType)
				assert.Equal(t, "SOL/USDC", got.TradingPair)
				return
			}
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindBadRequest))
			assert.Equal(t, tt.wantMsg, apperr.Message(err))
		})
	}
}

func TestParams_ApplyTo(t *testing.T) {
	p, err := validParams().Normalize()
	require.NoError(t, err)

	var s models.Strategy
	p.ApplyTo(&s)
	assert.Equal(t, "My strategy", s.Name)
	assert.Equal(t, "SOL/USDC", s.TradingPair)
	assert.Equal(t, 5, s.TradeFrequency)
}

func TestDefaultTemplatesAreValid(t *testing.T) {
	catalog, err := NewCatalog(DefaultTemplates())
	require.NoError(t, err)
	assert.Len(t, catalog.List(), len(DefaultTemplates()))

	tpl, ok := catalog.Get("grid-sol-usd")
	require.True(t, ok)
	assert.Equal(t, "grid", tpl.Params.StrategyType)

	_, ok = catalog.Get("missing")
	assert.False(t, ok)
}

func TestLoadTemplatesYAML(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("repository file", func(t *testing.T) {
		catalog, err := LoadTemplatesYAML(filepath.Join("..", "..", "configs", "strategy_templates.yaml"), logger)
		require.NoError(t, err)
		assert.Len(t, catalog.List(), 4)
		tpl, ok := catalog.Get("btc-sol-arb")
		require.True(t, ok)
		assert.Equal(t, "BTC/SOL", tpl.Params.TradingPair)
	})

	t.Run("missing file falls back", func(t *testing.T) {
		catalog, err := LoadTemplatesYAML(filepath.Join(t.TempDir(), "nope.yaml"), logger)
		require.NoError(t, err)
		assert.Len(t, catalog.List(), len(DefaultTemplates()))
	})

	t.Run("invalid template", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		content := "templates:\n  - id: broken\n    params:\n      name: x\n      strategy_type: grid\n      trading_pair: SOL/USD\n      min_trade_size: 0\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		_, err := LoadTemplatesYAML(path, logger)
		assert.ErrorContains(t, err, "broken")
	})

	t.Run("duplicate ids", func(t *testing.T) {
		tpl := DefaultTemplates()[0]
		_, err := NewCatalog([]Template{tpl, tpl})
		assert.ErrorContains(t, err, "duplicate")
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.yaml")
		require.NoError(t, os.WriteFile(path, []byte("templates: []\n"), 0o600))
		_, err := LoadTemplatesYAML(path, logger)
		assert.Error(t, err)
	})
}
