// internal/storage/mongo/indexes.go
package mongo

import (
	"context"
	"fmt"

	"github.com/rovshanmuradov/solana-market-nexus/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// IndexSpec описывает один индекс коллекции.
type IndexSpec struct {
	Collection string
	Keys       bson.D
	Unique     bool
}

// Indexes - раскладка индексов базы данных.
func Indexes() []IndexSpec {
	return []IndexSpec{
		{Collection: storage.CollectionUsers, Keys: bson.D{{Key: "email", Value: 1}}, Unique: true},
		// Один адрес на пользователя; префикс user_id обслуживает выборку кошельков.
		{Collection: storage.CollectionWallets, Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "address", Value: 1}}, Unique: true},
		{Collection: storage.CollectionWallets, Keys: bson.D{{Key: "address", Value: 1}}},
		{Collection: storage.CollectionStrategies, Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Collection: storage.CollectionTransactions, Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Collection: storage.CollectionTransactions, Keys: bson.D{{Key: "wallet_id", Value: 1}}},
		{Collection: storage.CollectionTransactions, Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Collection: storage.CollectionAlerts, Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Collection: storage.CollectionAlerts, Keys: bson.D{{Key: "market_pair", Value: 1}}},
		{Collection: storage.CollectionSettings, Keys: bson.D{{Key: "user_id", Value: 1}}, Unique: true},
		{Collection: storage.CollectionMarketData, Keys: bson.D{{Key: "symbol", Value: 1}}, Unique: true},
	}
}

// EnsureIndexes создаёт индексы; CreateMany идемпотентен для одинаковых спецификаций.
func (m *mongoStorage) EnsureIndexes(ctx context.Context) error {
	grouped := make(map[string][]mongo.IndexModel)
	order := make([]string, 0)
	for _, spec := range Indexes() {
		if _, ok := grouped[spec.Collection]; !ok {
			order = append(order, spec.Collection)
		}
		model := mongo.IndexModel{Keys: spec.Keys}
		if spec.Unique {
			model.Options = options.Index().SetUnique(true)
		}
		grouped[spec.Collection] = append(grouped[spec.Collection], model)
	}

	for _, name := range order {
		created, err := m.col(name).Indexes().CreateMany(ctx, grouped[name])
		if err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
		m.logger.Info("Indexes ensured",
			zap.String("collection", name),
			zap.Strings("indexes", created))
	}
	return nil
}
