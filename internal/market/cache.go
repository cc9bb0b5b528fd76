// internal/market/cache.go
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/models"
	"go.uber.org/zap"
)

// QuoteCache хранит котировки по паре.
type QuoteCache interface {
	Get(ctx context.Context, pair Pair) (*models.MarketPrice, bool)
	Set(ctx context.Context, price models.MarketPrice) error
}

type cachedQuote struct {
	price     models.MarketPrice
	expiresAt time.Time
}

// MemoryCache - TTL-кэш котировок в памяти процесса.
type MemoryCache struct {
	mu     sync.RWMutex
	quotes map[Pair]cachedQuote
	ttl    time.Duration
	now    func() time.Time

	hits   uint64
	misses uint64
}

// NewMemoryCache создает кэш с заданным временем жизни записей.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		quotes: make(map[Pair]cachedQuote),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, pair Pair) (*models.MarketPrice, bool) {
	c.mu.RLock()
	q, ok := c.quotes[pair]
	c.mu.RUnlock()

	if !ok || c.now().After(q.expiresAt) {
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}
	atomic.AddUint64(&c.hits, 1)
	price := q.price
	return &price, true
}

func (c *MemoryCache) Set(_ context.Context, price models.MarketPrice) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes[Pair(price.MarketPair)] = cachedQuote{price: price, expiresAt: c.now().Add(c.ttl)}
	return nil
}

// Stats возвращает число попаданий и промахов.
func (c *MemoryCache) Stats() (hits, misses uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses)
}

// RedisCache хранит котировки в Redis под ключами "quote:<PAIR>".
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache создает кэш поверх клиента Redis.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger.Named("redis_cache")}
}

// NewRedisClient создает клиента Redis.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func quoteKey(pair Pair) string {
	return fmt.Sprintf("quote:%s", pair)
}

func (r *RedisCache) Get(ctx context.Context, pair Pair) (*models.MarketPrice, bool) {
	data, err := r.client.Get(ctx, quoteKey(pair)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("Redis get failed", zap.String("pair", pair.String()), zap.Error(err))
		}
		return nil, false
	}

	var price models.MarketPrice
	if err := json.Unmarshal([]byte(data), &price); err != nil {
		r.logger.Warn("Malformed cached quote", zap.String("pair", pair.String()), zap.Error(err))
		return nil, false
	}
	return &price, true
}

func (r *RedisCache) Set(ctx context.Context, price models.MarketPrice) error {
	data, err := json.Marshal(price)
	if err != nil {
		return fmt.Errorf("failed to marshal quote: %w", err)
	}
	return r.client.Set(ctx, quoteKey(Pair(price.MarketPair)), data, r.ttl).Err()
}

// Close закрывает соединение с Redis.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// TieredCache читает из первого уровня, при промахе - из второго с прогревом первого.
type TieredCache struct {
	l1 QuoteCache
	l2 QuoteCache
}

// NewTieredCache объединяет два кэша; l2 может быть nil.
func NewTieredCache(l1, l2 QuoteCache) *TieredCache {
	return &TieredCache{l1: l1, l2: l2}
}

func (t *TieredCache) Get(ctx context.Context, pair Pair) (*models.MarketPrice, bool) {
	if price, ok := t.l1.Get(ctx, pair); ok {
		return price, true
	}
	if t.l2 == nil {
		return nil, false
	}
	price, ok := t.l2.Get(ctx, pair)
	if ok {
		_ = t.l1.Set(ctx, *price)
	}
	return price, ok
}

func (t *TieredCache) Set(ctx context.Context, price models.MarketPrice) error {
	if err := t.l1.Set(ctx, price); err != nil {
		return err
	}
	if t.l2 != nil {
		return t.l2.Set(ctx, price)
	}
	return nil
}
