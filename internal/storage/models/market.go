// internal/storage/models/market.go
package models

import "time"

// OrderBookEntry - уровень стакана.
type OrderBookEntry struct {
	Price float64 `bson:"price" json:"price"`
	Size  float64 `bson:"size" json:"size"`
	Total float64 `bson:"total" json:"total"`
	IsBot bool    `bson:"is_bot" json:"is_bot"`
}

type OrderBook struct {
	MarketPair string           `bson:"market_pair" json:"market_pair"`
	Bids       []OrderBookEntry `bson:"bids" json:"bids"`
	Asks       []OrderBookEntry `bson:"asks" json:"asks"`
	LastPrice  float64          `bson:"last_price" json:"last_price"`
	Spread     float64          `bson:"spread" json:"spread"`
	Timestamp  time.Time        `bson:"timestamp" json:"timestamp"`
}

type MarketPrice struct {
	MarketPair string    `bson:"market_pair" json:"market_pair"`
	Price      float64   `bson:"price" json:"price"`
	Change24h  float64   `bson:"change_24h" json:"change_24h"`
	High24h    float64   `bson:"high_24h" json:"high_24h"`
	Low24h     float64   `bson:"low_24h" json:"low_24h"`
	Volume24h  float64   `bson:"volume_24h" json:"volume_24h"`
	Source     string    `bson:"source" json:"source"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`
}

// MarketDataRecord хранится в коллекции market_data, ключ - symbol.
type MarketDataRecord struct {
	Symbol    string     `bson:"symbol" json:"symbol"`
	Price     float64    `bson:"price" json:"price"`
	Volume24h float64    `bson:"volume_24h" json:"volume_24h"`
	Change24h float64    `bson:"change_24h" json:"change_24h"`
	High24h   float64    `bson:"high_24h" json:"high_24h"`
	Low24h    float64    `bson:"low_24h" json:"low_24h"`
	Source    string     `bson:"source" json:"source"`
	Timestamp time.Time  `bson:"timestamp" json:"timestamp"`
	OrderBook *OrderBook `bson:"order_book,omitempty" json:"order_book,omitempty"`
}

// ToMarketPrice сворачивает запись в котировку.
func (r *MarketDataRecord) ToMarketPrice() MarketPrice {
	return MarketPrice{
		MarketPair: r.Symbol,
		Price:      r.Price,
		Change24h:  r.Change24h,
		High24h:    r.High24h,
		Low24h:     r.Low24h,
		Volume24h:  r.Volume24h,
		Source:     r.Source,
		Timestamp:  r.Timestamp,
	}
}
