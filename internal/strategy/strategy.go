// =============================================
// File: internal/strategy/strategy.go
// =============================================
// Package strategy validates trading strategy configurations and loads presets.
package strategy

import (
	"fmt"
	"strings"

	"github.com/rovshanmuradov/solana-market-nexus/internal/apperr"
	"github.com/rovshanmuradov/solana-market-nexus/internal/market"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/models"
)

// Type - вид торговой стратегии.
type Type string

const (
	TypeMarketMaking Type = "market_making"
	TypeVolume       Type = "volume"
	TypeArbitrage    Type = "arbitrage"
	TypeGrid         Type = "grid"
)

func parseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TypeMarketMaking, TypeVolume, TypeArbitrage, TypeGrid:
		return t, nil
	default:
		return "", fmt.Errorf("unsupported strategy type: %q", s)
	}
}

// Params - изменяемые поля стратегии.
type Params struct {
	Name              string  `json:"name" yaml:"name"`
	StrategyType      string  `json:"strategy_type" yaml:"strategy_type"`
	TradingPair       string  `json:"trading_pair" yaml:"trading_pair"`
	ExecutionPlatform string  `json:"execution_platform" yaml:"execution_platform"`
	MinTradeSize      float64 `json:"min_trade_size" yaml:"min_trade_size"`
	MaxTradeSize      float64 `json:"max_trade_size" yaml:"max_trade_size"`
	MaxDailyVolume    float64 `json:"max_daily_volume" yaml:"max_daily_volume"`
	AutoTrading       bool    `json:"auto_trading" yaml:"auto_trading"`
	StealthMode       bool    `json:"stealth_mode" yaml:"stealth_mode"`
	RiskAlerts        bool    `json:"risk_alerts" yaml:"risk_alerts"`
	TransactionDelay  int     `json:"transaction_delay" yaml:"transaction_delay"`
	TradeFrequency    int     `json:"trade_frequency" yaml:"trade_frequency"`
}

// Normalize проверяет параметры и приводит тип и пару к канонической записи.
// Ошибки имеют вид apperr.KindBadRequest.
func (p Params) Normalize() (Params, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return p, apperr.BadRequest("Strategy name is required")
	}

	t, err := parseType(p.StrategyType)
	if err != nil {
		return p, apperr.BadRequest("Invalid strategy type")
	}
	p.StrategyType = string(t)

	pair, err := market.ParsePair(p.TradingPair)
	if err != nil {
		return p, apperr.BadRequest("Unsupported trading pair")
	}
	p.TradingPair = pair.String()
	p.ExecutionPlatform = strings.TrimSpace(p.ExecutionPlatform)

	switch {
	case p.MinTradeSize <= 0:
		return p, apperr.BadRequest("Minimum trade size must be positive")
	case p.MaxTradeSize < p.MinTradeSize:
		return p, apperr.BadRequest("Maximum trade size must be greater than minimum trade size")
	case p.MaxDailyVolume <= 0:
		return p, apperr.BadRequest("Maximum daily volume must be positive")
	case p.TransactionDelay < 0:
		return p, apperr.BadRequest("Transaction delay cannot be negative")
	case p.TradeFrequency <= 0:
		return p, apperr.BadRequest("Trade frequency must be positive")
	}
	return p, nil
}

// ApplyTo переносит параметры в модель.
func (p Params) ApplyTo(s *models.Strategy) {
	s.Name = p.Name
	s.StrategyType = p.StrategyType
	s.TradingPair = p.TradingPair
	s.ExecutionPlatform = p.ExecutionPlatform
	s.MinTradeSize = p.MinTradeSize
	s.MaxTradeSize = p.MaxTradeSize
	s.MaxDailyVolume = p.MaxDailyVolume
	s.AutoTrading = p.AutoTrading
	s.StealthMode = p.StealthMode
	s.RiskAlerts = p.RiskAlerts
	s.TransactionDelay = p.TransactionDelay
	s.TradeFrequency = p.TradeFrequency
}
