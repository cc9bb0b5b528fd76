// internal/storage/models/wallet.go
package models

import "time"

const WalletStatusActive = "Active"

type Wallet struct {
	ID                   string    `bson:"_id" json:"id"`
	UserID               string    `bson:"user_id" json:"user_id"`
	Address              string    `bson:"address" json:"address"`
	Label                *string   `bson:"label,omitempty" json:"label,omitempty"`
	AllocationPercentage float64   `bson:"allocation_percentage" json:"allocation_percentage"`
	Status               string    `bson:"status" json:"status"`
	CreatedAt            time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt            time.Time `bson:"updated_at" json:"updated_at"`
}
