// internal/events/types.go
package events

import (
	"encoding/json"
	"time"

	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/models"
)

// EventType represents the type of event.
type EventType string

const (
	TradeExecuted  EventType = "trade.executed"
	AlertTriggered EventType = "alert.triggered"
	MarketUpdated  EventType = "market.updated"

	// AllEvents subscribes a handler to every event type.
	AllEvents EventType = "*"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
	// UserID returns the owner of the event, empty for market-wide events.
	UserID() string
}

// Publisher is the write side of the bus.
type Publisher interface {
	Publish(event Event) error
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType `json:"-"`
	EventTime time.Time `json:"-"`
	Owner     string    `json:"-"`
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.EventTime }
func (e BaseEvent) UserID() string       { return e.Owner }

// TradeExecutedEvent is emitted after a trade has been recorded.
type TradeExecutedEvent struct {
	BaseEvent
	Transaction models.Transaction `json:"transaction"`
}

// NewTradeExecuted builds a TradeExecutedEvent.
func NewTradeExecuted(tx models.Transaction) *TradeExecutedEvent {
	return &TradeExecutedEvent{
		BaseEvent:   BaseEvent{EventType: TradeExecuted, EventTime: tx.CreatedAt, Owner: tx.UserID},
		Transaction: tx,
	}
}

// AlertTriggeredEvent is emitted when a user alert condition is met.
type AlertTriggeredEvent struct {
	BaseEvent
	AlertID    string  `json:"alert_id"`
	AlertType  string  `json:"alert_type"`
	MarketPair string  `json:"market_pair"`
	Observed   float64 `json:"observed"`
	Threshold  float64 `json:"threshold"`
	IsAbove    bool    `json:"is_above"`
	Message    string  `json:"message"`
}

// MarketUpdatedEvent is emitted after market data for a pair is refreshed.
type MarketUpdatedEvent struct {
	BaseEvent
	Price models.MarketPrice `json:"price"`
}

// NewMarketUpdated builds a MarketUpdatedEvent.
func NewMarketUpdated(price models.MarketPrice) *MarketUpdatedEvent {
	return &MarketUpdatedEvent{
		BaseEvent: BaseEvent{EventType: MarketUpdated, EventTime: price.Timestamp},
		Price:     price,
	}
}

// Envelope is the wire form used by the websocket feed and the NATS bridge.
type Envelope struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	UserID    string      `json:"user_id,omitempty"`
	Data      interface{} `json:"data"`
}

// Marshal encodes an event into its envelope.
func Marshal(event Event) ([]byte, error) {
	return json.Marshal(Envelope{
		Type:      event.Type(),
		Timestamp: event.Timestamp(),
		UserID:    event.UserID(),
		Data:      event,
	})
}
