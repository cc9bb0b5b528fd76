// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validConfigYAML = `
server:
  host: 0.0.0.0
  port: 9090
storage:
  driver: memory
auth:
  jwt_secret: file-secret
  jwt_expiration: 3600
solana:
  rpc_list:
    - https://api.devnet.solana.com
    - https://rpc.example.org
market:
  cache_ttl: 45s
  symbols: [SOL/USD, BTC/SOL]
nats:
  enabled: true
  url: nats://broker:4222
`

func setupTestConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))
	return configPath
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("NEXUS_AUTH_JWT_SECRET", "env-secret")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, DefaultHost, cfg.Server.Host)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, int64(DefaultJWTExpiration), cfg.Auth.JWTExpiration)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL())
	assert.Equal(t, DefaultMarketCacheTTL, cfg.Market.CacheTTL)
	assert.Less(t, cfg.Market.FetchTimeout, cfg.Server.WriteTimeout)
	assert.Equal(t, DefaultMongoDatabase, cfg.Mongo.Database)
	assert.Contains(t, cfg.Solana.RPCList, DefaultSolanaRPC)
	assert.Len(t, cfg.Market.Symbols, 4)
}

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(setupTestConfig(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "file-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL())
	assert.Equal(t, 45*time.Second, cfg.Market.CacheTTL)
	assert.Equal(t, []string{"SOL/USD", "BTC/SOL"}, cfg.Market.Symbols)
	assert.True(t, cfg.NATS.Enabled)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("NEXUS_SERVER_PORT", "7070")
	t.Setenv("NEXUS_SOLANA_RPC_LIST", "https://a.example.com, https://b.example.com")

	cfg, err := LoadConfig(setupTestConfig(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Solana.RPCList)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "Missing JWT secret", content: "storage:\n  driver: memory\n"},
		{name: "Unknown storage driver", content: "auth:\n  jwt_secret: x\nstorage:\n  driver: sqlite\n"},
		{name: "Invalid YAML syntax", content: "server: [unclosed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(setupTestConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Host: DefaultHost, Port: DefaultPort, WriteTimeout: 15 * time.Second},
		Storage:  StorageConfig{Driver: "mongo"},
		Mongo:    MongoConfig{URI: "mongodb://localhost:27017", Database: "test"},
		Auth:     AuthConfig{JWTSecret: "secret", JWTExpiration: 60, BcryptCost: 10},
		Solana:   SolanaConfig{RPCList: []string{"https://rpc.example.com"}},
		Market: MarketConfig{ProviderURL: "https://api.example.com", CacheTTL: time.Second,
			RefreshInterval: time.Second, FetchTimeout: 5 * time.Second},
		Alerts:   AlertsConfig{EvaluationInterval: time.Second},
		EventBus: EventBusConfig{BufferSize: 16},
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "Valid configuration", mutate: func(*Config) {}},
		{name: "Memory driver ignores mongo", mutate: func(c *Config) {
			c.Storage.Driver = "memory"
			c.Mongo.URI = ""
		}},
		{name: "Bad mongo scheme", mutate: func(c *Config) { c.Mongo.URI = "postgres://db" }, wantErr: true},
		{name: "Empty RPC list", mutate: func(c *Config) { c.Solana.RPCList = nil }, wantErr: true},
		{name: "Websocket RPC", mutate: func(c *Config) { c.Solana.RPCList = []string{"ws://rpc"} }, wantErr: true},
		{name: "Bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
		{name: "Zero expiration", mutate: func(c *Config) { c.Auth.JWTExpiration = 0 }, wantErr: true},
		{name: "Bcrypt cost too low", mutate: func(c *Config) { c.Auth.BcryptCost = 2 }, wantErr: true},
		{name: "Zero cache ttl", mutate: func(c *Config) { c.Market.CacheTTL = 0 }, wantErr: true},
		{name: "Fetch timeout outlives write timeout", mutate: func(c *Config) { c.Market.FetchTimeout = 20 * time.Second }, wantErr: true},
		{name: "Zero fetch timeout", mutate: func(c *Config) { c.Market.FetchTimeout = 0 }, wantErr: true},
		{name: "Negative retries", mutate: func(c *Config) { c.Market.Retries = -1 }, wantErr: true},
		{name: "NATS with http url", mutate: func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.URL = "http://broker"
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
