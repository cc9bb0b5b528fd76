package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rovshanmuradov/solana-market-nexus/internal/events"
	"github.com/rovshanmuradov/solana-market-nexus/internal/market"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/memory"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func f64(v float64) *float64 { return &v }
func boolp(v bool) *bool     { return &v }

type staticPrices struct {
	mu     sync.Mutex
	quotes map[market.Pair]models.MarketPrice
	calls  map[market.Pair]int
}

func newStaticPrices(quotes map[market.Pair]models.MarketPrice) *staticPrices {
	return &staticPrices{quotes: quotes, calls: make(map[market.Pair]int)}
}

func (s *staticPrices) Price(_ context.Context, pair market.Pair) (models.MarketPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[pair]++
	q, ok := s.quotes[pair]
	if !ok {
		return models.MarketPrice{}, errors.New("no quote")
	}
	return q, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capturePublisher) Publish(e events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func TestEvaluate(t *testing.T) {
	quote := models.MarketPrice{MarketPair: "SOL/USD", Price: 150, Change24h: -6}

	tests := []struct {
		name  string
		alert models.Alert
		want  bool
	}{
		{"price above hit", models.Alert{AlertType: models.AlertTypePrice, PriceThreshold: f64(150), IsAbove: boolp(true)}, true},
		{"price above miss", models.Alert{AlertType: models.AlertTypePrice, PriceThreshold: f64(151), IsAbove: boolp(true)}, false},
		{"price below hit", models.Alert{AlertType: models.AlertTypePrice, PriceThreshold: f64(155), IsAbove: boolp(false)}, true},
		{"price below miss", models.Alert{AlertType: models.AlertTypePrice, PriceThreshold: f64(140), IsAbove: boolp(false)}, false},
		{"percentage above miss", models.Alert{AlertType: models.AlertTypePercentage, PercentageChange: f64(5), IsAbove: boolp(true)}, false},
		{"percentage below hit", models.Alert{AlertType: models.AlertTypePercentage, PercentageChange: f64(5), IsAbove: boolp(false)}, true},
		{"percentage below miss", models.Alert{AlertType: models.AlertTypePercentage, PercentageChange: f64(10), IsAbove: boolp(false)}, false},
		{"missing direction", models.Alert{AlertType: models.AlertTypePrice, PriceThreshold: f64(1)}, false},
		{"missing threshold", models.Alert{AlertType: models.AlertTypePrice, IsAbove: boolp(true)}, false},
		{"unknown type", models.Alert{AlertType: "volume", IsAbove: boolp(true)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, hit := Evaluate(&tt.alert, quote)
			assert.Equal(t, tt.want, hit)
		})
	}
}

func TestAlertManager_EvaluateOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	alerts := []*models.Alert{
		{ID: "a1", UserID: "u1", AlertType: models.AlertTypePrice, MarketPair: "SOL/USD", PriceThreshold: f64(140), IsAbove: boolp(true), Enabled: true},
		{ID: "a2", UserID: "u1", AlertType: models.AlertTypePrice, MarketPair: "SOL/USD", PriceThreshold: f64(100), IsAbove: boolp(false), Enabled: true},
		{ID: "a3", UserID: "u2", AlertType: models.AlertTypePercentage, MarketPair: "BTC/SOL", PercentageChange: f64(2), IsAbove: boolp(true), Enabled: true},
		{ID: "a4", UserID: "u2", AlertType: models.AlertTypePrice, MarketPair: "SOL/USD", PriceThreshold: f64(1), IsAbove: boolp(true), Enabled: false},
	}
	for _, a := range alerts {
		require.NoError(t, store.CreateAlert(ctx, a))
	}

	prices := newStaticPrices(map[market.Pair]models.MarketPrice{
		market.PairSOLUSD: {MarketPair: "SOL/USD", Price: 150, Source: market.SourceLive},
		market.PairBTCSOL: {MarketPair: "BTC/SOL", Price: 400, Change24h: 3, Source: market.SourceLive},
	})
	pub := &capturePublisher{}

	cfg := DefaultAlertConfig()
	am := NewAlertManager(cfg, store, prices, pub, nil, zap.NewNop())

	var handled int32
	am.AddHandler(func(Trigger) { atomic.AddInt32(&handled, 1) })

	triggered, err := am.EvaluateOnce(ctx)
	require.NoError(t, err)
	require.Len(t, triggered, 2)

	ids := []string{triggered[0].AlertID, triggered[1].AlertID}
	assert.ElementsMatch(t, []string{"a1", "a3"}, ids)
	assert.Equal(t, 1, prices.calls[market.PairSOLUSD])
	assert.Equal(t, 1, prices.calls[market.PairBTCSOL])

	stored, err := store.ListAlerts(ctx, "u1")
	require.NoError(t, err)
	for _, a := range stored {
		if a.ID == "a1" {
			assert.NotNil(t, a.LastTriggeredAt)
		} else {
			assert.Nil(t, a.LastTriggeredAt)
		}
	}

	require.Len(t, pub.events, 2)
	assert.Equal(t, events.AlertTriggered, pub.events[0].Type())

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&handled) == 2 }, time.Second, 10*time.Millisecond)

	recent := am.GetRecentTriggers("u1", 10)
	require.Len(t, recent, 1)
	assert.Equal(t, "a1", recent[0].AlertID)
	assert.Contains(t, recent[0].Message, "above")
}

type downSource struct{ calls atomic.Int32 }

func (d *downSource) FetchQuotes(context.Context) (map[string]market.CoinQuote, error) {
	d.calls.Add(1)
	return nil, errors.New("provider unavailable")
}

func TestAlertManager_IgnoresReferenceQuotes(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreateAlert(ctx, &models.Alert{
		ID: "a1", UserID: "u1", AlertType: models.AlertTypePrice, MarketPair: "SOL/USD",
		PriceThreshold: f64(140), IsAbove: boolp(true), Enabled: true,
	}))
	require.NoError(t, store.CreateAlert(ctx, &models.Alert{
		ID: "a2", UserID: "u1", AlertType: models.AlertTypePercentage, MarketPair: "SOL/USD",
		PercentageChange: f64(0), IsAbove: boolp(false), Enabled: true,
	}))

	src := &downSource{}
	prices := market.NewService(src, market.NewMemoryCache(time.Minute),
		market.NewOrderBookGenerator(nil), store, nil, zap.NewNop())

	quote, err := prices.Price(ctx, market.PairSOLUSD)
	require.NoError(t, err)
	require.Equal(t, market.SourceReference, quote.Source)

	pub := &capturePublisher{}
	am := NewAlertManager(DefaultAlertConfig(), store, prices, pub, nil, zap.NewNop())

	triggered, err := am.EvaluateOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, triggered)
	assert.Empty(t, pub.events)
	assert.Positive(t, src.calls.Load())

	stored, err := store.ListAlerts(ctx, "u1")
	require.NoError(t, err)
	for _, a := range stored {
		assert.Nil(t, a.LastTriggeredAt, a.ID)
	}
}

func TestAlertManager_IgnoresStaleQuotes(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreateAlert(ctx, &models.Alert{
		ID: "a1", UserID: "u1", AlertType: models.AlertTypePrice, MarketPair: "SOL/USD",
		PriceThreshold: f64(100), IsAbove: boolp(true), Enabled: true,
	}))
	prices := newStaticPrices(map[market.Pair]models.MarketPrice{
		market.PairSOLUSD: {MarketPair: "SOL/USD", Price: 150, Source: market.SourceStale},
	})
	am := NewAlertManager(DefaultAlertConfig(), store, prices, nil, nil, zap.NewNop())

	triggered, err := am.EvaluateOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, triggered)
	assert.Empty(t, am.GetRecentTriggers("u1", 0))
}

func TestAlertManager_Cooldown(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreateAlert(ctx, &models.Alert{
		ID: "a1", UserID: "u1", AlertType: models.AlertTypePrice, MarketPair: "SOL/USD",
		PriceThreshold: f64(100), IsAbove: boolp(true), Enabled: true,
	}))
	prices := newStaticPrices(map[market.Pair]models.MarketPrice{
		market.PairSOLUSD: {MarketPair: "SOL/USD", Price: 150, Source: market.SourceLive},
	})

	cfg := DefaultAlertConfig()
	cfg.CooldownDuration = time.Minute
	am := NewAlertManager(cfg, store, prices, nil, nil, zap.NewNop())

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	am.now = func() time.Time { return now }

	first, err := am.EvaluateOnce(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	now = now.Add(30 * time.Second)
	second, err := am.EvaluateOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, second)

	now = now.Add(time.Minute)
	third, err := am.EvaluateOnce(ctx)
	require.NoError(t, err)
	assert.Len(t, third, 1)

	assert.Len(t, am.GetRecentTriggers("u1", 0), 2)
	assert.Len(t, am.GetRecentTriggers("u1", 1), 1)
}

func TestAlertManager_HistoryBounded(t *testing.T) {
	store := memory.New()
	cfg := AlertConfig{MaxHistory: 3}
	am := NewAlertManager(cfg, store, newStaticPrices(nil), nil, nil, zap.NewNop())

	for i := 0; i < 5; i++ {
		am.triggerAlert(Trigger{AlertID: string(rune('a' + i)), UserID: "u1", Timestamp: time.Now()})
	}
	recent := am.GetRecentTriggers("u1", 0)
	require.Len(t, recent, 3)
	assert.Equal(t, "e", recent[0].AlertID)
	assert.Equal(t, "c", recent[2].AlertID)
}

func TestAlertManager_Run(t *testing.T) {
	store := memory.New()
	cfg := AlertConfig{Interval: 10 * time.Millisecond}
	am := NewAlertManager(cfg, store, newStaticPrices(nil), nil, nil, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, am.Run(ctx))
}
