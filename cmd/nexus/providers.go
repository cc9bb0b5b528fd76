// cmd/nexus/providers.go
package main

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-market-nexus/internal/api"
	"github.com/rovshanmuradov/solana-market-nexus/internal/app"
	"github.com/rovshanmuradov/solana-market-nexus/internal/auth"
	"github.com/rovshanmuradov/solana-market-nexus/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solana-market-nexus/internal/config"
	"github.com/rovshanmuradov/solana-market-nexus/internal/events"
	"github.com/rovshanmuradov/solana-market-nexus/internal/export"
	"github.com/rovshanmuradov/solana-market-nexus/internal/market"
	"github.com/rovshanmuradov/solana-market-nexus/internal/monitor"
	"github.com/rovshanmuradov/solana-market-nexus/internal/service"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/memory"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/mongo"
	"github.com/rovshanmuradov/solana-market-nexus/internal/strategy"
	"github.com/rovshanmuradov/solana-market-nexus/internal/utils/metrics"
)

// Компоненты регистрируются в ShutdownHandler по мере создания; fx создаёт
// зависимости раньше зависимых, поэтому закрытие LIFO идёт от сервера к хранилищу.
var infrastructure = fx.Options(
	fx.Provide(
		newShutdownHandler,
		metrics.NewCollector,
		newStorage,
		newEventBus,
		func(bus *events.Bus) events.Publisher { return bus },
		newQuoteCache,
		newMarketService,
		newSolanaClient,
		newTemplates,
	),
)

var services = fx.Options(
	fx.Provide(
		newAlertManager,
		newAuthService,
		newWalletService,
		newTradingService,
		func(st storage.Storage, am *monitor.AlertManager, logger *zap.Logger) *service.AlertService {
			return service.NewAlertService(st, am, logger)
		},
		func(st storage.Storage, logger *zap.Logger) *service.SettingsService {
			return service.NewSettingsService(st, logger)
		},
		newHub,
		newWorkers,
		newServer,
	),
)

func newShutdownHandler(cfg *config.Config, logger *zap.Logger) *app.ShutdownHandler {
	return app.NewShutdownHandler(logger, cfg.Server.ShutdownTimeout)
}

func newStorage(cfg *config.Config, sh *app.ShutdownHandler, logger *zap.Logger) (storage.Storage, error) {
	if cfg.Storage.Driver == "memory" {
		logger.Warn("Using in-memory storage, data is lost on restart")
		return memory.New(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.Mongo.Timeout)
	defer cancel()

	st, err := mongo.NewStorage(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Timeout, logger)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureIndexes(ctx); err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}
	sh.Add("storage", st.Close)
	return st, nil
}

func newEventBus(cfg *config.Config, sh *app.ShutdownHandler, logger *zap.Logger) *events.Bus {
	bus := events.NewBus(logger, cfg.EventBus.BufferSize)
	sh.Add("event_bus", bus.Shutdown)
	return bus
}

// newQuoteCache собирает кэш котировок: память процесса и, если включён, Redis.
// Недоступный Redis не мешает старту.
func newQuoteCache(cfg *config.Config, sh *app.ShutdownHandler, logger *zap.Logger) market.QuoteCache {
	l1 := market.NewMemoryCache(cfg.Market.CacheTTL)
	if !cfg.Redis.Enabled {
		return market.NewTieredCache(l1, nil)
	}

	client := market.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, using in-memory quote cache only",
			zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		_ = client.Close()
		return market.NewTieredCache(l1, nil)
	}

	l2 := market.NewRedisCache(client, cfg.Redis.TTL, logger)
	sh.AddCloser("redis", l2)
	return market.NewTieredCache(l1, l2)
}

func newMarketService(cfg *config.Config, st storage.Storage, cache market.QuoteCache,
	m *metrics.Collector, logger *zap.Logger) *market.Service {
	source := market.NewCoinGeckoClient(cfg.Market.ProviderURL, cfg.Market.RequestTimeout, cfg.Market.Retries, logger)
	svc := market.NewService(source, cache, market.NewOrderBookGenerator(nil), st, m, logger)
	svc.SetFetchLimits(cfg.Market.FetchTimeout, cfg.Market.CacheTTL)
	return svc
}

func newSolanaClient(cfg *config.Config, m *metrics.Collector, logger *zap.Logger) (*solbc.Client, error) {
	return solbc.NewClient(cfg.Solana.RPCList, solbc.Options{
		Commitment:     cfg.Solana.Commitment,
		RequestTimeout: cfg.Solana.RequestTimeout,
		Retries:        cfg.Solana.Retries,
		Metrics:        m,
	}, logger)
}

func newTemplates(cfg *config.Config, logger *zap.Logger) (*strategy.Catalog, error) {
	return strategy.LoadTemplatesYAML(cfg.Strategy.TemplatesFile, logger)
}

func newAlertManager(cfg *config.Config, st storage.Storage, svc *market.Service,
	bus events.Publisher, m *metrics.Collector, logger *zap.Logger) *monitor.AlertManager {
	return monitor.NewAlertManager(monitor.AlertConfig{
		Interval:         cfg.Alerts.EvaluationInterval,
		CooldownDuration: cfg.Alerts.Cooldown,
		MaxHistory:       cfg.Alerts.HistorySize,
	}, st, svc, bus, m, logger)
}

func newAuthService(cfg *config.Config, st storage.Storage, logger *zap.Logger) (*service.AuthService, error) {
	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
	if err != nil {
		return nil, err
	}
	return service.NewAuthService(st, auth.NewHasher(cfg.Auth.BcryptCost), tokens, logger), nil
}

func newWalletService(st storage.Storage, sol *solbc.Client, logger *zap.Logger) *service.WalletService {
	return service.NewWalletService(&service.WalletServiceConfig{
		Store:    st,
		Balances: sol,
		Logger:   logger,
	})
}

func newTradingService(st storage.Storage, svc *market.Service, catalog *strategy.Catalog,
	bus events.Publisher, m *metrics.Collector, logger *zap.Logger) *service.TradingService {
	return service.NewTradingService(&service.TradingServiceConfig{
		Store:     st,
		Prices:    svc,
		Templates: catalog,
		Exporter:  export.NewTradeExporter(logger),
		Publisher: bus,
		Metrics:   m,
		Logger:    logger,
	})
}

func newHub(bus *events.Bus, m *metrics.Collector, sh *app.ShutdownHandler, logger *zap.Logger) *api.Hub {
	hub := api.NewHub(m, logger)
	sub := bus.Subscribe(events.AllEvents, hub)
	sh.AddCloser("websocket_hub", app.CloserFunc(func() error {
		sub.Unsubscribe()
		return hub.Close()
	}))
	return hub
}

func newWorkers(cfg *config.Config, svc *market.Service, am *monitor.AlertManager,
	bus events.Publisher, logger *zap.Logger) *app.Workers {
	w := app.NewWorkers(logger)
	w.Add("market_refresher", market.NewRefresher(svc, cfg.Market.Symbols, cfg.Market.RefreshInterval, bus, logger))
	w.Add("alert_evaluator", am)
	return w
}

type serverParams struct {
	fx.In

	Config   *config.Config
	Auth     *service.AuthService
	Wallets  *service.WalletService
	Trading  *service.TradingService
	Alerts   *service.AlertService
	Settings *service.SettingsService
	Market   *market.Service
	Hub      *api.Hub
	Storage  storage.Storage
	Metrics  *metrics.Collector
	Logger   *zap.Logger
}

func newServer(p serverParams) *api.Server {
	cfg := &api.ServerConfig{
		Addr:         p.Config.Server.Addr(),
		ReadTimeout:  p.Config.Server.ReadTimeout,
		WriteTimeout: p.Config.Server.WriteTimeout,
		CORSOrigins:  p.Config.Server.CORSOrigins,
		Auth:         p.Auth,
		Wallets:      p.Wallets,
		Trading:      p.Trading,
		Alerts:       p.Alerts,
		Settings:     p.Settings,
		Market:       p.Market,
		Hub:          p.Hub,
		Health:       p.Storage,
		Logger:       p.Logger,
	}
	if p.Config.Metrics.Enabled {
		cfg.Metrics = p.Metrics
		cfg.MetricsHandler = p.Metrics.Handler()
		cfg.MetricsPath = p.Config.Metrics.Path
	}
	return api.NewServer(cfg)
}

// startNATSBridge пересылает события шины в NATS, если он включён.
func startNATSBridge(cfg *config.Config, bus *events.Bus, sh *app.ShutdownHandler, logger *zap.Logger) error {
	if !cfg.NATS.Enabled {
		return nil
	}
	conn, err := events.ConnectNATS(cfg.NATS.URL, logger)
	if err != nil {
		return err
	}
	bridge := events.NewNATSBridge(bus, conn, cfg.NATS.SubjectPrefix, logger)
	sh.AddCloser("nats", app.CloserFunc(func() error {
		_ = bridge.Close()
		return conn.Drain()
	}))
	return nil
}

// run запускает воркеры и HTTP-сервер; остановка идёт через ShutdownHandler.
func run(lc fx.Lifecycle, shutdowner fx.Shutdowner, server *api.Server, workers *app.Workers,
	sh *app.ShutdownHandler, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			workers.Start(ctx)
			sh.Add("workers", workers.Stop)
			sh.Add("http_server", server.Shutdown)

			go func() {
				if err := server.Start(); err != nil {
					logger.Error("HTTP server error", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return sh.Shutdown(ctx)
		},
	})
}
