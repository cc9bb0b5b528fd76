// internal/storage/models/transaction.go
package models

import "time"

// Статусы транзакций
const (
	TxStatusSuccess = "success"
	TxStatusFailed  = "failed"
	TxStatusPending = "pending"
)

// Действия
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
)

type Transaction struct {
	ID              string    `bson:"_id" json:"id"`
	UserID          string    `bson:"user_id" json:"user_id"`
	WalletID        string    `bson:"wallet_id" json:"wallet_id"`
	WalletAddress   string    `bson:"wallet_address" json:"wallet_address"`
	Action          string    `bson:"action" json:"action"`
	Amount          float64   `bson:"amount" json:"amount"`
	Token           string    `bson:"token" json:"token"`
	Price           float64   `bson:"price" json:"price"`
	Status          string    `bson:"status" json:"status"`
	Slippage        *float64  `bson:"slippage,omitempty" json:"slippage,omitempty"`
	TransactionHash *string   `bson:"transaction_hash,omitempty" json:"transaction_hash,omitempty"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
}

// Notional возвращает объём сделки в валюте котировки.
func (t *Transaction) Notional() float64 {
	return t.Amount * t.Price
}
