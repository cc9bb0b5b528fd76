// internal/storage/models/alert.go
package models

import "time"

const (
	AlertTypePrice      = "price"
	AlertTypePercentage = "percentage"
)

type Alert struct {
	ID               string     `bson:"_id" json:"id"`
	UserID           string     `bson:"user_id" json:"user_id"`
	AlertType        string     `bson:"alert_type" json:"alert_type"`
	MarketPair       string     `bson:"market_pair" json:"market_pair"`
	PriceThreshold   *float64   `bson:"price_threshold,omitempty" json:"price_threshold,omitempty"`
	PercentageChange *float64   `bson:"percentage_change,omitempty" json:"percentage_change,omitempty"`
	IsAbove          *bool      `bson:"is_above,omitempty" json:"is_above,omitempty"`
	Enabled          bool       `bson:"enabled" json:"enabled"`
	LastTriggeredAt  *time.Time `bson:"last_triggered_at,omitempty" json:"last_triggered_at,omitempty"`
	CreatedAt        time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `bson:"updated_at" json:"updated_at"`
}
