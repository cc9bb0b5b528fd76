// =============================================
// File: internal/strategy/templates.go
// =============================================
package strategy

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Template - готовый набор параметров стратегии.
type Template struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	Params      Params `json:"params" yaml:"params"`
}

// TemplateConfig represents the structure of strategy templates YAML file
type TemplateConfig struct {
	Templates []Template `yaml:"templates"`
}

// Catalog хранит шаблоны в порядке файла.
type Catalog struct {
	templates []Template
	byID      map[string]int
}

// DefaultTemplates - шаблоны, используемые без файла.
func DefaultTemplates() []Template {
	return []Template{
		{
			ID:          "conservative-mm",
			Description: "Market making with small clips and risk alerts on",
			Params: Params{
				Name: "Conservative market making", StrategyType: string(TypeMarketMaking),
				TradingPair: "SOL/USDC", ExecutionPlatform: "Jupiter",
				MinTradeSize: 0.1, MaxTradeSize: 1, MaxDailyVolume: 50,
				StealthMode: true, RiskAlerts: true, TransactionDelay: 30, TradeFrequency: 10,
			},
		},
		{
			ID:          "volume-boost",
			Description: "Frequent medium trades to build volume",
			Params: Params{
				Name: "Volume boost", StrategyType: string(TypeVolume),
				TradingPair: "SOL/USDT", ExecutionPlatform: "Raydium",
				MinTradeSize: 0.5, MaxTradeSize: 5, MaxDailyVolume: 500,
				RiskAlerts: true, TransactionDelay: 5, TradeFrequency: 60,
			},
		},
		{
			ID:          "grid-sol-usd",
			Description: "Grid orders around the SOL/USD mid price",
			Params: Params{
				Name: "SOL/USD grid", StrategyType: string(TypeGrid),
				TradingPair: "SOL/USD", ExecutionPlatform: "Orca",
				MinTradeSize: 0.2, MaxTradeSize: 2, MaxDailyVolume: 100,
				RiskAlerts: true, TransactionDelay: 15, TradeFrequency: 20,
			},
		},
	}
}

// NewCatalog проверяет шаблоны и строит каталог.
func NewCatalog(templates []Template) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]int, len(templates))}
	for i, t := range templates {
		if t.ID == "" {
			return nil, fmt.Errorf("template #%d: id is required", i+1)
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("template %q: duplicate id", t.ID)
		}
		params, err := t.Params.Normalize()
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", t.ID, err)
		}
		t.Params = params
		c.byID[t.ID] = len(c.templates)
		c.templates = append(c.templates, t)
	}
	return c, nil
}

// LoadTemplatesYAML reads strategy templates from YAML file. Пустой путь
// возвращает встроенные шаблоны.
func LoadTemplatesYAML(path string, logger *zap.Logger) (*Catalog, error) {
	if path == "" {
		return NewCatalog(DefaultTemplates())
	}

	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("Strategy templates file not found, using defaults", zap.String("path", cleanPath))
			return NewCatalog(DefaultTemplates())
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config TemplateConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(config.Templates) == 0 {
		return nil, fmt.Errorf("no templates found in configuration")
	}

	catalog, err := NewCatalog(config.Templates)
	if err != nil {
		return nil, err
	}
	logger.Info("Strategy templates loaded", zap.String("path", cleanPath), zap.Int("count", len(catalog.templates)))
	return catalog, nil
}

// List возвращает копию шаблонов.
func (c *Catalog) List() []Template {
	out := make([]Template, len(c.templates))
	copy(out, c.templates)
	return out
}

// Get возвращает шаблон по идентификатору.
func (c *Catalog) Get(id string) (Template, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Template{}, false
	}
	return c.templates[i], true
}
