// internal/market/service.go
package market

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rovshanmuradov/solana-market-nexus/internal/storage"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/models"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Источник котировки в ответе.
const (
	SourceLive      = "live"
	SourceStale     = "stale"
	SourceReference = "reference"
)

// Ограничения обращения к провайдеру по умолчанию.
const (
	DefaultFetchTimeout = 5 * time.Second
	DefaultFailureTTL   = 30 * time.Second
)

var errProviderCoolingDown = errors.New("market provider failed recently")

// Recorder получает итог каждого обращения к провайдеру.
type Recorder interface {
	RecordMarketFetch(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordMarketFetch(string) {}

// Service отдает котировки, стаканы и рыночные записи.
type Service struct {
	source  QuoteSource
	cache   QuoteCache
	books   *OrderBookGenerator
	store   storage.MarketDataStore
	logger  *zap.Logger
	metrics Recorder
	group   singleflight.Group
	now     func() time.Time

	fetchTimeout time.Duration
	failureTTL   time.Duration

	mu          sync.RWMutex
	lastKnown   map[Pair]models.MarketPrice
	failedUntil time.Time
}

// NewService собирает сервис рыночных данных. metrics может быть nil.
func NewService(source QuoteSource, cache QuoteCache, books *OrderBookGenerator,
	store storage.MarketDataStore, metrics Recorder, logger *zap.Logger) *Service {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Service{
		source:    source,
		cache:     cache,
		books:     books,
		store:     store,
		logger:    logger.Named("market"),
		metrics:   metrics,
		now:          time.Now,
		fetchTimeout: DefaultFetchTimeout,
		failureTTL:   DefaultFailureTTL,
		lastKnown:    make(map[Pair]models.MarketPrice),
	}
}

// SetFetchLimits задаёт общий дедлайн обращения к провайдеру (со всеми повторами)
// и время, в течение которого после отказа провайдер не опрашивается.
// Вызывается до начала работы; нулевые значения не меняют текущие.
func (s *Service) SetFetchLimits(timeout, failureTTL time.Duration) {
	if timeout > 0 {
		s.fetchTimeout = timeout
	}
	if failureTTL > 0 {
		s.failureTTL = failureTTL
	}
}

// Price возвращает котировку пары: кэш, затем провайдер, затем последняя
// известная котировка, затем сохранённая запись, затем опорная цена.
func (s *Service) Price(ctx context.Context, pair Pair) (models.MarketPrice, error) {
	if !pair.Supported() {
		return models.MarketPrice{}, &ErrUnsupportedPair{Raw: pair.String()}
	}
	if cached, ok := s.cache.Get(ctx, pair); ok {
		return *cached, nil
	}

	prices, err := s.refreshQuotes(ctx)
	if err == nil {
		if price, ok := prices[pair]; ok {
			return price, nil
		}
	} else if !errors.Is(err, errProviderCoolingDown) {
		s.logger.Warn("Market provider unavailable", zap.String("pair", pair.String()), zap.Error(err))
	}

	s.mu.RLock()
	last, ok := s.lastKnown[pair]
	s.mu.RUnlock()
	if ok {
		last.Source = SourceStale
		s.metrics.RecordMarketFetch(SourceStale)
		return last, nil
	}

	if stored, err := s.store.GetMarketData(ctx, pair.String()); err == nil && stored.Source != SourceReference {
		price := stored.ToMarketPrice()
		price.Source = SourceStale
		s.metrics.RecordMarketFetch(SourceStale)
		return price, nil
	}

	s.metrics.RecordMarketFetch(SourceReference)
	return s.referenceQuote(pair), nil
}

// refreshQuotes выполняет один запрос к провайдеру на все параллельные вызовы.
// После отказа провайдер не опрашивается в течение failureTTL.
func (s *Service) refreshQuotes(ctx context.Context) (map[Pair]models.MarketPrice, error) {
	s.mu.RLock()
	coolingDown := s.now().Before(s.failedUntil)
	s.mu.RUnlock()
	if coolingDown {
		return nil, errProviderCoolingDown
	}

	v, err, _ := s.group.Do("quotes", func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()

		quotes, err := s.source.FetchQuotes(fetchCtx)
		if err != nil {
			s.metrics.RecordMarketFetch("error")
			if ctx.Err() == nil {
				s.mu.Lock()
				s.failedUntil = s.now().Add(s.failureTTL)
				s.mu.Unlock()
			}
			return nil, err
		}
		s.metrics.RecordMarketFetch(SourceLive)

		prices := DerivePairPrices(quotes, s.now().UTC())
		s.mu.Lock()
		for pair, price := range prices {
			s.lastKnown[pair] = price
		}
		s.mu.Unlock()

		for _, price := range prices {
			if err := s.cache.Set(ctx, price); err != nil {
				s.logger.Warn("Failed to cache quote", zap.String("pair", price.MarketPair), zap.Error(err))
			}
		}
		return prices, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[Pair]models.MarketPrice), nil
}

func (s *Service) referenceQuote(pair Pair) models.MarketPrice {
	price := ReferencePrice(pair)
	return models.MarketPrice{
		MarketPair: pair.String(),
		Price:      price,
		High24h:    price,
		Low24h:     price,
		Source:     SourceReference,
		Timestamp:  s.now().UTC(),
	}
}

// OrderBook строит стакан вокруг текущей цены пары.
func (s *Service) OrderBook(ctx context.Context, pair Pair) (models.OrderBook, error) {
	price, err := s.Price(ctx, pair)
	if err != nil {
		return models.OrderBook{}, err
	}
	return s.books.Generate(pair, price.Price), nil
}

// MarketData собирает запись с котировкой и стаканом и сохраняет её.
func (s *Service) MarketData(ctx context.Context, pair Pair) (*models.MarketDataRecord, error) {
	price, err := s.Price(ctx, pair)
	if err != nil {
		return nil, err
	}
	book := s.books.Generate(pair, price.Price)

	record := &models.MarketDataRecord{
		Symbol:    pair.String(),
		Price:     price.Price,
		Volume24h: price.Volume24h,
		Change24h: price.Change24h,
		High24h:   price.High24h,
		Low24h:    price.Low24h,
		Source:    price.Source,
		Timestamp: price.Timestamp,
		OrderBook: &book,
	}
	if err := s.store.UpsertMarketData(ctx, record); err != nil {
		s.logger.Error("Failed to persist market data", zap.String("symbol", record.Symbol), zap.Error(err))
	}
	return record, nil
}

// LatestPrices возвращает сохраненные котировки; если их нет - живые по всем парам.
func (s *Service) LatestPrices(ctx context.Context) ([]models.MarketPrice, error) {
	records, err := s.store.ListMarketData(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		out := make([]models.MarketPrice, 0, len(records))
		for _, r := range records {
			out = append(out, r.ToMarketPrice())
		}
		return out, nil
	}

	out := make([]models.MarketPrice, 0, len(SupportedPairs()))
	for _, pair := range SupportedPairs() {
		price, err := s.Price(ctx, pair)
		if err != nil {
			return nil, err
		}
		out = append(out, price)
	}
	return out, nil
}

// TokenUSDPrice возвращает цену токена в USD для исполнения сделок.
func (s *Service) TokenUSDPrice(ctx context.Context, token string) float64 {
	switch strings.ToUpper(token) {
	case "SOL":
		if p, err := s.Price(ctx, PairSOLUSD); err == nil && p.Source != SourceReference {
			return p.Price
		}
	case "BTC":
		sol, errSol := s.Price(ctx, PairSOLUSD)
		cross, errCross := s.Price(ctx, PairBTCSOL)
		if errSol == nil && errCross == nil && sol.Source != SourceReference && cross.Source != SourceReference {
			return cross.Price * sol.Price
		}
	case "USDC", "USDT":
		return 1.0
	}
	return ReferenceTokenPrice(token)
}

// DerivePairPrices переводит котировки монет в котировки пар.
func DerivePairPrices(quotes map[string]CoinQuote, at time.Time) map[Pair]models.MarketPrice {
	out := make(map[Pair]models.MarketPrice)
	sol, ok := quotes[CoinSolana]
	if !ok || sol.USD <= 0 {
		return out
	}

	out[PairSOLUSD] = newQuote(PairSOLUSD, sol.USD, sol.Change24h, sol.Volume24h, at)

	for pair, coin := range map[Pair]string{PairSOLUSDC: CoinUSDC, PairSOLUSDT: CoinUSDT} {
		stable, ok := quotes[coin]
		if !ok || stable.USD <= 0 {
			stable = CoinQuote{USD: 1}
		}
		out[pair] = newQuote(pair, sol.USD/stable.USD, crossChange(sol.Change24h, stable.Change24h), sol.Volume24h, at)
	}

	if btc, ok := quotes[CoinBitcoin]; ok && btc.USD > 0 {
		out[PairBTCSOL] = newQuote(PairBTCSOL, btc.USD/sol.USD, crossChange(btc.Change24h, sol.Change24h), btc.Volume24h/sol.USD, at)
	}
	return out
}

// newQuote оценивает дневной диапазон по цене открытия, восстановленной из изменения.
func newQuote(pair Pair, price, change, volume float64, at time.Time) models.MarketPrice {
	open := price
	if change > -100 {
		open = price / (1 + change/100)
	}
	return models.MarketPrice{
		MarketPair: pair.String(),
		Price:      roundTo(price, 6),
		Change24h:  roundTo(change, 4),
		High24h:    roundTo(math.Max(price, open), 6),
		Low24h:     roundTo(math.Min(price, open), 6),
		Volume24h:  roundTo(volume, 2),
		Source:     SourceLive,
		Timestamp:  at,
	}
}

// crossChange - изменение курса A/B в процентах по изменениям A и B к USD.
func crossChange(changeA, changeB float64) float64 {
	denom := 1 + changeB/100
	if denom == 0 {
		return 0
	}
	return ((1+changeA/100)/denom - 1) * 100
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
