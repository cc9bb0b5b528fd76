// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config описывает все параметры сервиса.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Solana   SolanaConfig   `mapstructure:"solana"`
	Market   MarketConfig   `mapstructure:"market"`
	Redis    RedisConfig    `mapstructure:"redis"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	EventBus EventBusConfig `mapstructure:"event_bus"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// Addr возвращает адрес для net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StorageConfig struct {
	// Driver: "mongo" или "memory".
	Driver string `mapstructure:"driver"`
}

type MongoConfig struct {
	URI      string        `mapstructure:"uri"`
	Database string        `mapstructure:"database"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwt_secret"`
	JWTExpiration int64  `mapstructure:"jwt_expiration"` // секунды
	BcryptCost    int    `mapstructure:"bcrypt_cost"`
}

// TokenTTL возвращает время жизни токена.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.JWTExpiration) * time.Second
}

type SolanaConfig struct {
	RPCList        []string      `mapstructure:"rpc_list"`
	Commitment     string        `mapstructure:"commitment"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Retries        int           `mapstructure:"retries"`
}

type MarketConfig struct {
	ProviderURL     string        `mapstructure:"provider_url"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"` // общий дедлайн с повторами
	Retries         int           `mapstructure:"retries"`
	Symbols         []string      `mapstructure:"symbols"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type AlertsConfig struct {
	EvaluationInterval time.Duration `mapstructure:"evaluation_interval"`
	Cooldown           time.Duration `mapstructure:"cooldown"`
	HistorySize        int           `mapstructure:"history_size"`
}

type LogConfig struct {
	File        string `mapstructure:"file"`
	MaxSize     int    `mapstructure:"max_size"`
	MaxAge      int    `mapstructure:"max_age"`
	MaxBackups  int    `mapstructure:"max_backups"`
	Compress    bool   `mapstructure:"compress"`
	Development bool   `mapstructure:"development"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type StrategyConfig struct {
	TemplatesFile string `mapstructure:"templates_file"`
}

type EventBusConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

const (
	DefaultHost              = "127.0.0.1"
	DefaultPort              = 8080
	DefaultJWTExpiration     = 86400
	DefaultSolanaRPC         = "https://api.mainnet-beta.solana.com"
	DefaultMarketProviderURL = "https://api.coingecko.com/api/v3"
	DefaultMarketCacheTTL    = 30 * time.Second
	DefaultMongoDatabase     = "solana_market_nexus"
	DefaultRetries           = 3
	DefaultEnvPrefix         = "NEXUS"
)

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.host":                DefaultHost,
		"server.port":                DefaultPort,
		"server.read_timeout":        "15s",
		"server.write_timeout":       "15s",
		"server.shutdown_timeout":    "30s",
		"server.cors_origins":        []string{"*"},
		"storage.driver":             "mongo",
		"mongo.uri":                  "mongodb://localhost:27017",
		"mongo.database":             DefaultMongoDatabase,
		"mongo.timeout":              "10s",
		"auth.jwt_secret":            "",
		"auth.jwt_expiration":        DefaultJWTExpiration,
		"auth.bcrypt_cost":           10,
		"solana.rpc_list":            []string{DefaultSolanaRPC},
		"solana.commitment":          "confirmed",
		"solana.request_timeout":     "10s",
		"solana.retries":             DefaultRetries,
		"market.provider_url":        DefaultMarketProviderURL,
		"market.cache_ttl":           DefaultMarketCacheTTL.String(),
		"market.refresh_interval":    "30s",
		"market.request_timeout":     "10s",
		"market.fetch_timeout":       "5s",
		"market.retries":             DefaultRetries,
		"market.symbols":             []string{"SOL/USD", "SOL/USDC", "SOL/USDT", "BTC/SOL"},
		"redis.enabled":              false,
		"redis.addr":                 "localhost:6379",
		"redis.password":             "",
		"redis.db":                   0,
		"redis.ttl":                  "60s",
		"nats.enabled":               false,
		"nats.url":                   "nats://localhost:4222",
		"nats.subject_prefix":        "nexus",
		"alerts.evaluation_interval": "15s",
		"alerts.cooldown":            "5m",
		"alerts.history_size":        1000,
		"log.file":                   "nexus.log",
		"log.max_size":               100,
		"log.max_age":                7,
		"log.max_backups":            3,
		"log.compress":               true,
		"log.development":            false,
		"metrics.enabled":            true,
		"metrics.path":               "/metrics",
		"strategy.templates_file":    "configs/strategy_templates.yaml",
		"event_bus.buffer_size":      256,
	}
}

// LoadConfig читает конфигурацию из файла (если путь задан), .env и переменных окружения.
// Переменные окружения имеют приоритет: NEXUS_SERVER_PORT, NEXUS_AUTH_JWT_SECRET и т.д.
func LoadConfig(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(DefaultEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func loadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// loadEnvironmentVariables разбирает списки и алиасы, которые viper не раскладывает сам.
func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	if list := splitList(v.GetString("SOLANA_RPC_LIST")); len(list) > 0 {
		cfg.Solana.RPCList = list
	}
	if list := splitList(v.GetString("MARKET_SYMBOLS")); len(list) > 0 {
		cfg.Market.Symbols = list
	}
	if list := splitList(v.GetString("SERVER_CORS_ORIGINS")); len(list) > 0 {
		cfg.Server.CORSOrigins = list
	}

	// Совместимость с переменными без префикса из docker-compose.
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" && cfg.Mongo.URI == "mongodb://localhost:27017" {
		cfg.Mongo.URI = dbURL
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" && cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = secret
	}
	if rpcURL := os.Getenv("SOLANA_RPC_URL"); rpcURL != "" {
		cfg.Solana.RPCList = append([]string{rpcURL}, cfg.Solana.RPCList...)
	}
	return nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if clean := strings.TrimSpace(item); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}

func validateConfig(cfg *Config) error {
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret must be set")
	}
	switch cfg.Storage.Driver {
	case "mongo":
		if err := validateURLWithCache(cfg.Mongo.URI, "mongodb"); err != nil {
			return fmt.Errorf("invalid mongo uri: %w", err)
		}
		if cfg.Mongo.Database == "" {
			return errors.New("mongo.database is empty")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported storage driver: %q", cfg.Storage.Driver)
	}
	if len(cfg.Solana.RPCList) == 0 {
		return errors.New("solana.rpc_list is empty")
	}
	for _, rpcURL := range cfg.Solana.RPCList {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return errors.New("invalid RPC URL protocol")
		}
	}
	if err := validateURLWithCache(cfg.Market.ProviderURL, "http"); err != nil {
		return errors.New("invalid market provider URL")
	}
	if cfg.NATS.Enabled {
		if err := validateURLWithCache(cfg.NATS.URL, "nats"); err != nil {
			return errors.New("invalid NATS URL")
		}
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New("invalid server.port")
	}
	if cfg.Auth.JWTExpiration <= 0 {
		return errors.New("invalid auth.jwt_expiration")
	}
	if cfg.Auth.BcryptCost < 4 || cfg.Auth.BcryptCost > 31 {
		return errors.New("invalid auth.bcrypt_cost")
	}
	if cfg.Market.CacheTTL <= 0 {
		return errors.New("invalid market.cache_ttl")
	}
	if cfg.Market.RefreshInterval <= 0 {
		return errors.New("invalid market.refresh_interval")
	}
	if cfg.Market.FetchTimeout <= 0 || cfg.Market.FetchTimeout >= cfg.Server.WriteTimeout {
		return errors.New("market.fetch_timeout must be positive and below server.write_timeout")
	}
	if cfg.Market.Retries < 0 || cfg.Solana.Retries < 0 {
		return errors.New("invalid retries count")
	}
	if cfg.Alerts.EvaluationInterval <= 0 {
		return errors.New("invalid alerts.evaluation_interval")
	}
	if cfg.Alerts.Cooldown < 0 {
		return errors.New("invalid alerts.cooldown")
	}
	if cfg.EventBus.BufferSize <= 0 {
		return errors.New("invalid event_bus.buffer_size")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	key := protocol + "|" + rawURL
	if _, ok := urlCache.Load(key); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(key, parsed)
	return nil
}
