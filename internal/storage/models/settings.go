// internal/storage/models/settings.go
package models

import "time"

// Значения по умолчанию для первой записи настроек.
const (
	DefaultMinWalletBalance     = 0.1
	DefaultAllocationPercentage = 10.0
	DefaultRiskLevel            = "medium"
)

type Settings struct {
	ID                          string    `bson:"_id" json:"id"`
	UserID                      string    `bson:"user_id" json:"user_id"`
	MinWalletBalance            float64   `bson:"min_wallet_balance" json:"min_wallet_balance"`
	DefaultAllocationPercentage float64   `bson:"default_allocation_percentage" json:"default_allocation_percentage"`
	RiskLevel                   string    `bson:"risk_level" json:"risk_level"`
	NotificationEmail           *string   `bson:"notification_email,omitempty" json:"notification_email,omitempty"`
	AutoRebalance               bool      `bson:"auto_rebalance" json:"auto_rebalance"`
	CreatedAt                   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt                   time.Time `bson:"updated_at" json:"updated_at"`
}

// SettingsPatch - частичное обновление; nil-поля не меняются.
type SettingsPatch struct {
	MinWalletBalance            *float64 `json:"min_wallet_balance,omitempty"`
	DefaultAllocationPercentage *float64 `json:"default_allocation_percentage,omitempty"`
	RiskLevel                   *string  `json:"risk_level,omitempty"`
	NotificationEmail           *string  `json:"notification_email,omitempty"`
	AutoRebalance               *bool    `json:"auto_rebalance,omitempty"`
}

// Apply применяет изменения к настройкам.
func (p SettingsPatch) Apply(s *Settings) {
	if p.MinWalletBalance != nil {
		s.MinWalletBalance = *p.MinWalletBalance
	}
	if p.DefaultAllocationPercentage != nil {
		s.DefaultAllocationPercentage = *p.DefaultAllocationPercentage
	}
	if p.RiskLevel != nil {
		s.RiskLevel = *p.RiskLevel
	}
	if p.NotificationEmail != nil {
		email := *p.NotificationEmail
		s.NotificationEmail = &email
	}
	if p.AutoRebalance != nil {
		s.AutoRebalance = *p.AutoRebalance
	}
}
