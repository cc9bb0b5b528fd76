// internal/market/refresher.go
package market

import (
	"context"
	"time"

	"github.com/rovshanmuradov/solana-market-nexus/internal/events"
	"go.uber.org/zap"
)

// Refresher периодически обновляет и сохраняет рыночные данные по парам.
type Refresher struct {
	svc       *Service
	pairs     []Pair
	interval  time.Duration
	publisher events.Publisher
	logger    *zap.Logger
}

// NewRefresher создает фоновую задачу обновления. Неподдерживаемые символы пропускаются.
func NewRefresher(svc *Service, symbols []string, interval time.Duration, publisher events.Publisher, logger *zap.Logger) *Refresher {
	logger = logger.Named("market_refresher")
	pairs := make([]Pair, 0, len(symbols))
	for _, s := range symbols {
		p, err := ParsePair(s)
		if err != nil {
			logger.Warn("Skipping unsupported symbol", zap.String("symbol", s))
			continue
		}
		pairs = append(pairs, p)
	}
	return &Refresher{
		svc:       svc,
		pairs:     pairs,
		interval:  interval,
		publisher: publisher,
		logger:    logger,
	}
}

// Run обновляет данные сразу и затем по таймеру, пока ctx не отменён.
func (r *Refresher) Run(ctx context.Context) error {
	r.logger.Info("Market refresher started",
		zap.Int("pairs", len(r.pairs)),
		zap.Duration("interval", r.interval))

	r.RefreshOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Market refresher stopped")
			return nil
		case <-ticker.C:
			r.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce обновляет все пары и возвращает число успешных обновлений.
func (r *Refresher) RefreshOnce(ctx context.Context) int {
	updated := 0
	for _, pair := range r.pairs {
		record, err := r.svc.MarketData(ctx, pair)
		if err != nil {
			r.logger.Warn("Failed to refresh pair", zap.String("pair", pair.String()), zap.Error(err))
			continue
		}
		updated++
		if r.publisher != nil {
			if err := r.publisher.Publish(events.NewMarketUpdated(record.ToMarketPrice())); err != nil {
				r.logger.Debug("Market event not published", zap.Error(err))
			}
		}
	}
	return updated
}
