// internal/storage/models/strategy.go
package models

import "time"

// Strategy - пользовательская конфигурация торговой стратегии.
type Strategy struct {
	ID                string    `bson:"_id" json:"id"`
	UserID            string    `bson:"user_id" json:"user_id"`
	Name              string    `bson:"name" json:"name"`
	StrategyType      string    `bson:"strategy_type" json:"strategy_type"`
	TradingPair       string    `bson:"trading_pair" json:"trading_pair"`
	ExecutionPlatform string    `bson:"execution_platform" json:"execution_platform"`
	MinTradeSize      float64   `bson:"min_trade_size" json:"min_trade_size"`
	MaxTradeSize      float64   `bson:"max_trade_size" json:"max_trade_size"`
	MaxDailyVolume    float64   `bson:"max_daily_volume" json:"max_daily_volume"`
	AutoTrading       bool      `bson:"auto_trading" json:"auto_trading"`
	StealthMode       bool      `bson:"stealth_mode" json:"stealth_mode"`
	RiskAlerts        bool      `bson:"risk_alerts" json:"risk_alerts"`
	TransactionDelay  int       `bson:"transaction_delay" json:"transaction_delay"`
	TradeFrequency    int       `bson:"trade_frequency" json:"trade_frequency"`
	CreatedAt         time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at" json:"updated_at"`
}
