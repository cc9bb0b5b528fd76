// internal/events/nats.go
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubjectPublisher is the subset of *nats.Conn used by the bridge.
type SubjectPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSBridge forwards every bus event to NATS as "<prefix>.<event type>".
type NATSBridge struct {
	conn   SubjectPublisher
	prefix string
	logger *zap.Logger
	sub    Subscription
}

// ConnectNATS dials the NATS server with reconnect handlers.
func ConnectNATS(url string, logger *zap.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("solana-market-nexus"),
		nats.Timeout(5 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

// NewNATSBridge subscribes the bridge to all events on the bus.
func NewNATSBridge(bus *Bus, conn SubjectPublisher, prefix string, logger *zap.Logger) *NATSBridge {
	b := &NATSBridge{
		conn:   conn,
		prefix: prefix,
		logger: logger.Named("nats_bridge"),
	}
	b.sub = bus.Subscribe(AllEvents, b)
	return b
}

// Subject returns the NATS subject for an event type.
func (b *NATSBridge) Subject(eventType EventType) string {
	return fmt.Sprintf("%s.%s", b.prefix, eventType)
}

func (b *NATSBridge) Handle(_ context.Context, event Event) error {
	data, err := Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.conn.Publish(b.Subject(event.Type()), data); err != nil {
		b.logger.Warn("Failed to publish event to NATS",
			zap.String("event_type", string(event.Type())),
			zap.Error(err))
		return err
	}
	return nil
}

// Close detaches the bridge from the bus.
func (b *NATSBridge) Close() error {
	b.sub.Unsubscribe()
	return nil
}
