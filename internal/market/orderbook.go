// internal/market/orderbook.go
package market

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/models"
	"github.com/shopspring/decimal"
)

// Параметры синтетического стакана.
const (
	OrderBookDepth  = 15
	OrderBookStep   = "0.1"
	minLevelSize    = 10.0
	levelSizeSpread = 90.0
	botProbability  = 0.35
	pricePrecision  = 4
	sizePrecision   = 2
	totalPrecision  = 2
)

// OrderBookGenerator строит стакан вокруг цены. Источник случайности
// подменяется в тестах.
type OrderBookGenerator struct {
	mu   sync.Mutex
	rng  *rand.Rand
	step decimal.Decimal
	now  func() time.Time
}

// NewOrderBookGenerator создает генератор; src == nil означает случайное зерно.
func NewOrderBookGenerator(src rand.Source) *OrderBookGenerator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &OrderBookGenerator{
		rng:  rand.New(src),
		step: decimal.RequireFromString(OrderBookStep),
		now:  time.Now,
	}
}

// Generate возвращает стакан: биды по убыванию цены, аски по возрастанию.
func (g *OrderBookGenerator) Generate(pair Pair, lastPrice float64) models.OrderBook {
	g.mu.Lock()
	defer g.mu.Unlock()

	mid := decimal.NewFromFloat(lastPrice)
	bids := make([]models.OrderBookEntry, 0, OrderBookDepth)
	asks := make([]models.OrderBookEntry, 0, OrderBookDepth)

	for i := 1; i <= OrderBookDepth; i++ {
		offset := g.step.Mul(decimal.NewFromInt(int64(i)))
		bids = append(bids, g.level(mid.Sub(offset)))
		asks = append(asks, g.level(mid.Add(offset)))
	}

	book := models.OrderBook{
		MarketPair: pair.String(),
		Bids:       bids,
		Asks:       asks,
		LastPrice:  lastPrice,
		Timestamp:  g.now().UTC(),
	}
	book.Spread = Spread(book)
	return book
}

func (g *OrderBookGenerator) level(price decimal.Decimal) models.OrderBookEntry {
	size := decimal.NewFromFloat(minLevelSize + g.rng.Float64()*levelSizeSpread).Round(sizePrecision)
	total := price.Mul(size).Round(totalPrecision)

	return models.OrderBookEntry{
		Price: price.Round(pricePrecision).InexactFloat64(),
		Size:  size.InexactFloat64(),
		Total: total.InexactFloat64(),
		IsBot: g.rng.Float64() < botProbability,
	}
}

// Spread возвращает разницу между лучшим аском и лучшим бидом.
func Spread(book models.OrderBook) float64 {
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return 0
	}
	ask := decimal.NewFromFloat(book.Asks[0].Price)
	bid := decimal.NewFromFloat(book.Bids[0].Price)
	return ask.Sub(bid).InexactFloat64()
}
