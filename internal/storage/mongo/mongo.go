// internal/storage/mongo/mongo.go
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rovshanmuradov/solana-market-nexus/internal/storage"
	"github.com/rovshanmuradov/solana-market-nexus/internal/storage/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// mongoStorage реализует интерфейс Storage поверх MongoDB
type mongoStorage struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// NewStorage подключается к MongoDB и проверяет соединение.
func NewStorage(ctx context.Context, uri, database string, timeout time.Duration, logger *zap.Logger) (storage.Storage, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout).
		SetMaxPoolSize(100)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	logger.Info("Connected to MongoDB", zap.String("database", database))

	return &mongoStorage{
		client: client,
		db:     client.Database(database),
		logger: logger.Named("mongo"),
	}, nil
}

func (m *mongoStorage) col(name string) *mongo.Collection {
	return m.db.Collection(name)
}

// translate приводит ошибки драйвера к ошибкам пакета storage.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return storage.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", storage.ErrDuplicate, err)
	default:
		return err
	}
}

func findOne[T any](ctx context.Context, c *mongo.Collection, filter bson.M) (*T, error) {
	var out T
	if err := c.FindOne(ctx, filter).Decode(&out); err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, c *mongo.Collection, filter bson.M, opts ...*options.FindOptions) ([]*T, error) {
	cursor, err := c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, translate(err)
	}
	defer cursor.Close(ctx)

	out := make([]*T, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}
	return out, nil
}

func deleteOwned(ctx context.Context, c *mongo.Collection, userID, id string) error {
	res, err := c.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return translate(err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func insert(ctx context.Context, c *mongo.Collection, doc interface{}) error {
	_, err := c.InsertOne(ctx, doc)
	return translate(err)
}

// Пользователи

func (m *mongoStorage) CreateUser(ctx context.Context, user *models.User) error {
	return insert(ctx, m.col(storage.CollectionUsers), user)
}

func (m *mongoStorage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return findOne[models.User](ctx, m.col(storage.CollectionUsers), bson.M{"_id": id})
}

func (m *mongoStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOne[models.User](ctx, m.col(storage.CollectionUsers), bson.M{"email": email})
}

// Кошельки

func (m *mongoStorage) ListWallets(ctx context.Context, userID string) ([]*models.Wallet, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return findAll[models.Wallet](ctx, m.col(storage.CollectionWallets), bson.M{"user_id": userID}, opts)
}

func (m *mongoStorage) GetWallet(ctx context.Context, userID, id string) (*models.Wallet, error) {
	return findOne[models.Wallet](ctx, m.col(storage.CollectionWallets), bson.M{"_id": id, "user_id": userID})
}

func (m *mongoStorage) GetWalletByAddress(ctx context.Context, userID, address string) (*models.Wallet, error) {
	return findOne[models.Wallet](ctx, m.col(storage.CollectionWallets), bson.M{"address": address, "user_id": userID})
}

func (m *mongoStorage) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	return insert(ctx, m.col(storage.CollectionWallets), wallet)
}

func (m *mongoStorage) DeleteWallet(ctx context.Context, userID, id string) error {
	return deleteOwned(ctx, m.col(storage.CollectionWallets), userID, id)
}

// Стратегии

func (m *mongoStorage) ListStrategies(ctx context.Context, userID string) ([]*models.Strategy, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return findAll[models.Strategy](ctx, m.col(storage.CollectionStrategies), bson.M{"user_id": userID}, opts)
}

func (m *mongoStorage) GetStrategy(ctx context.Context, userID, id string) (*models.Strategy, error) {
	return findOne[models.Strategy](ctx, m.col(storage.CollectionStrategies), bson.M{"_id": id, "user_id": userID})
}

func (m *mongoStorage) CreateStrategy(ctx context.Context, strategy *models.Strategy) error {
	return insert(ctx, m.col(storage.CollectionStrategies), strategy)
}

func (m *mongoStorage) UpdateStrategy(ctx context.Context, strategy *models.Strategy) error {
	res, err := m.col(storage.CollectionStrategies).ReplaceOne(ctx,
		bson.M{"_id": strategy.ID, "user_id": strategy.UserID}, strategy)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Транзакции

func (m *mongoStorage) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	return insert(ctx, m.col(storage.CollectionTransactions), tx)
}

func (m *mongoStorage) ListTransactions(ctx context.Context, filter storage.TransactionFilter) ([]*models.Transaction, error) {
	query := bson.M{}
	if filter.UserID != "" {
		query["user_id"] = filter.UserID
	}
	if filter.WalletID != "" {
		query["wallet_id"] = filter.WalletID
	}
	if !filter.Since.IsZero() {
		query["created_at"] = bson.M{"$gte": filter.Since}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	return findAll[models.Transaction](ctx, m.col(storage.CollectionTransactions), query, opts)
}

// Алерты

func (m *mongoStorage) ListAlerts(ctx context.Context, userID string) ([]*models.Alert, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return findAll[models.Alert](ctx, m.col(storage.CollectionAlerts), bson.M{"user_id": userID}, opts)
}

func (m *mongoStorage) ListEnabledAlerts(ctx context.Context) ([]*models.Alert, error) {
	return findAll[models.Alert](ctx, m.col(storage.CollectionAlerts), bson.M{"enabled": true})
}

func (m *mongoStorage) CreateAlert(ctx context.Context, alert *models.Alert) error {
	return insert(ctx, m.col(storage.CollectionAlerts), alert)
}

func (m *mongoStorage) DeleteAlert(ctx context.Context, userID, id string) error {
	return deleteOwned(ctx, m.col(storage.CollectionAlerts), userID, id)
}

func (m *mongoStorage) MarkAlertTriggered(ctx context.Context, id string, at time.Time) error {
	res, err := m.col(storage.CollectionAlerts).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"last_triggered_at": at, "updated_at": at}})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Настройки

func (m *mongoStorage) GetSettings(ctx context.Context, userID string) (*models.Settings, error) {
	return findOne[models.Settings](ctx, m.col(storage.CollectionSettings), bson.M{"user_id": userID})
}

// PatchSettings выполняет upsert одним FindOneAndUpdate: поля patch идут в $set,
// остальные значения по умолчанию в $setOnInsert.
func (m *mongoStorage) PatchSettings(ctx context.Context, defaults *models.Settings, patch models.SettingsPatch) (*models.Settings, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	filter := bson.M{"user_id": defaults.UserID}
	update := settingsUpdate(defaults, patch)

	var out models.Settings
	err := m.col(storage.CollectionSettings).FindOneAndUpdate(ctx, filter, update, opts).Decode(&out)
	if mongo.IsDuplicateKeyError(err) {
		// Параллельный upsert успел вставить документ; повтор обновит его.
		err = m.col(storage.CollectionSettings).FindOneAndUpdate(ctx, filter, update, opts).Decode(&out)
	}
	if err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func settingsUpdate(defaults *models.Settings, patch models.SettingsPatch) bson.M {
	set := bson.M{"updated_at": defaults.UpdatedAt}
	onInsert := bson.M{"_id": defaults.ID, "created_at": defaults.CreatedAt}

	patchField(set, onInsert, "min_wallet_balance", patch.MinWalletBalance, defaults.MinWalletBalance)
	patchField(set, onInsert, "default_allocation_percentage", patch.DefaultAllocationPercentage, defaults.DefaultAllocationPercentage)
	patchField(set, onInsert, "risk_level", patch.RiskLevel, defaults.RiskLevel)
	patchField(set, onInsert, "auto_rebalance", patch.AutoRebalance, defaults.AutoRebalance)
	if patch.NotificationEmail != nil {
		set["notification_email"] = *patch.NotificationEmail
	} else if defaults.NotificationEmail != nil {
		onInsert["notification_email"] = *defaults.NotificationEmail
	}

	return bson.M{"$set": set, "$setOnInsert": onInsert}
}

// patchField кладёт поле в $set, если оно есть в patch, иначе в $setOnInsert.
// Одно поле в обоих операторах MongoDB отвергает.
func patchField[T any](set, onInsert bson.M, key string, value *T, fallback T) {
	if value != nil {
		set[key] = *value
		return
	}
	onInsert[key] = fallback
}

// Рыночные данные

func (m *mongoStorage) UpsertMarketData(ctx context.Context, record *models.MarketDataRecord) error {
	_, err := m.col(storage.CollectionMarketData).ReplaceOne(ctx,
		bson.M{"symbol": record.Symbol}, record, options.Replace().SetUpsert(true))
	return translate(err)
}

func (m *mongoStorage) GetMarketData(ctx context.Context, symbol string) (*models.MarketDataRecord, error) {
	return findOne[models.MarketDataRecord](ctx, m.col(storage.CollectionMarketData), bson.M{"symbol": symbol})
}

func (m *mongoStorage) ListMarketData(ctx context.Context) ([]*models.MarketDataRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "symbol", Value: 1}})
	return findAll[models.MarketDataRecord](ctx, m.col(storage.CollectionMarketData), bson.M{}, opts)
}

func (m *mongoStorage) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *mongoStorage) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
