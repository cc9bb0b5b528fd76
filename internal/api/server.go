// internal/api/server.go
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rovshanmuradov/solana-market-nexus/internal/market"
	"github.com/rovshanmuradov/solana-market-nexus/internal/service"
	"go.uber.org/zap"
)

// HTTPRecorder учитывает обработанные запросы.
type HTTPRecorder interface {
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}

// HealthChecker проверяет доступность хранилища.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// ServerConfig configuration for Server
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string

	Auth     *service.AuthService
	Wallets  *service.WalletService
	Trading  *service.TradingService
	Alerts   *service.AlertService
	Settings *service.SettingsService
	Market   *market.Service
	Hub      *Hub
	Health   HealthChecker

	// Metrics и MetricsHandler необязательны; MetricsPath по умолчанию /metrics.
	Metrics        HTTPRecorder
	MetricsHandler http.Handler
	MetricsPath    string

	Logger *zap.Logger
}

// Server обслуживает REST API, websocket-ленту, /health и /metrics.
type Server struct {
	auth     *service.AuthService
	wallets  *service.WalletService
	trading  *service.TradingService
	alerts   *service.AlertService
	settings *service.SettingsService
	market   *market.Service
	hub      *Hub
	health   HealthChecker
	metrics  HTTPRecorder

	corsOrigins []string
	mux         *http.ServeMux
	server      *http.Server
	logger      *zap.Logger
}

// NewServer creates a new HTTP server with all routes registered
func NewServer(config *ServerConfig) *Server {
	s := &Server{
		auth:        config.Auth,
		wallets:     config.Wallets,
		trading:     config.Trading,
		alerts:      config.Alerts,
		settings:    config.Settings,
		market:      config.Market,
		hub:         config.Hub,
		health:      config.Health,
		metrics:     config.Metrics,
		corsOrigins: config.CORSOrigins,
		mux:         http.NewServeMux(),
		logger:      config.Logger.Named("api"),
	}

	s.registerRoutes()
	if config.MetricsHandler != nil {
		path := config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, config.MetricsHandler)
	}

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.instrument(pattern, h))
}

func (s *Server) registerRoutes() {
	s.handle("GET /health", s.handleHealth)

	s.handle("POST /api/auth/register", s.handleRegister)
	s.handle("POST /api/auth/login", s.handleLogin)

	s.handle("GET /api/wallets", s.authenticated(s.listWallets))
	s.handle("POST /api/wallets", s.authenticated(s.addWallet))
	s.handle("DELETE /api/wallets/{id}", s.authenticated(s.removeWallet))
	s.handle("GET /api/wallets/{id}/balance", s.authenticated(s.walletBalance))
	s.handle("GET /api/wallets/rows", s.authenticated(s.walletRows))
	s.handle("GET /api/wallets/overview", s.authenticated(s.walletOverview))
	s.handle("POST /api/wallets/import", s.authenticated(s.importWallets))

	s.handle("GET /api/trading/strategies", s.authenticated(s.listStrategies))
	s.handle("POST /api/trading/strategies", s.authenticated(s.createStrategy))
	s.handle("PUT /api/trading/strategies/{id}", s.authenticated(s.updateStrategy))
	s.handle("GET /api/trading/strategies/templates", s.authenticated(s.strategyTemplates))
	s.handle("POST /api/trading/execute", s.authenticated(s.executeTrade))
	s.handle("GET /api/trading/transactions", s.authenticated(s.listTransactions))
	s.handle("GET /api/trading/transactions/stats", s.authenticated(s.transactionStats))
	s.handle("GET /api/trading/transactions/export", s.authenticated(s.exportTransactions))

	s.handle("GET /api/orderbook/price/{pair...}", s.authenticated(s.marketPrice))
	s.handle("GET /api/orderbook/{pair...}", s.authenticated(s.orderBook))
	s.handle("GET /api/market/data/{symbol...}", s.authenticated(s.marketData))
	s.handle("GET /api/market/prices", s.authenticated(s.latestPrices))

	s.handle("GET /api/alerts", s.authenticated(s.listAlerts))
	s.handle("POST /api/alerts", s.authenticated(s.createAlert))
	s.handle("DELETE /api/alerts/{id}", s.authenticated(s.deleteAlert))
	s.handle("GET /api/alerts/triggered", s.authenticated(s.triggeredAlerts))

	s.handle("GET /api/settings", s.authenticated(s.getSettings))
	s.handle("PUT /api/settings", s.authenticated(s.updateSettings))

	s.handle("GET /api/ws", s.handleWebsocket)
}

// Handler возвращает корневой обработчик с общими middleware.
func (s *Server) Handler() http.Handler {
	return s.requestID(s.accessLog(s.cors(s.mux)))
}

// Start слушает адрес до вызова Shutdown.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.logger.Warn("Health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	userID, err := s.auth.Authenticate(token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.hub.ServeWS(w, r, userID)
}
