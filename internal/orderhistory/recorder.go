package orderhistory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/campusmart/campusmart-backend/pkg/config"
	"github.com/campusmart/campusmart-backend/pkg/logger"
)

// Transition is one status change of an order.
type Transition struct {
	OrderID    string    `bson:"order_id" json:"order_id"`
	ItemID     string    `bson:"item_id" json:"item_id"`
	BuyerID    string    `bson:"buyer_id" json:"buyer_id"`
	SellerID   string    `bson:"seller_id" json:"seller_id"`
	From       string    `bson:"from,omitempty" json:"from,omitempty"`
	To         string    `bson:"to" json:"to"`
	ActorID    string    `bson:"actor_id,omitempty" json:"actor_id,omitempty"`
	Reason     string    `bson:"reason,omitempty" json:"reason,omitempty"`
	OccurredAt time.Time `bson:"occurred_at" json:"occurred_at"`
}

// Store persists and reads order status history.
type Store interface {
	Record(ctx context.Context, entry Transition) error
	History(ctx context.Context, orderID uuid.UUID) ([]Transition, error)
}

type documentStore interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
}

// MongoStore writes one document per transition.
type MongoStore struct {
	collection documentStore
	timeout    time.Duration
}

// Connect opens a MongoDB client and verifies the primary is reachable.
func Connect(ctx context.Context, cfg config.MongoConfig, logg *logger.Logger) (*mongo.Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("mongo uri is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetTimeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	if logg != nil {
		logg.Info(ctx, "mongo connection established")
	}
	return client, nil
}

// NewMongoStore binds the store to the configured database and collection.
func NewMongoStore(client *mongo.Client, cfg config.MongoConfig) (*MongoStore, error) {
	if client == nil {
		return nil, fmt.Errorf("mongo client required")
	}
	return newMongoStore(client.Database(cfg.Database).Collection(cfg.Collection), cfg.Timeout), nil
}

func newMongoStore(collection documentStore, timeout time.Duration) *MongoStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MongoStore{collection: collection, timeout: timeout}
}

func (s *MongoStore) Record(ctx context.Context, entry Transition) error {
	if entry.OrderID == "" {
		return fmt.Errorf("order id required")
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("insert order history: %w", err)
	}
	return nil
}

func (s *MongoStore) History(ctx context.Context, orderID uuid.UUID) ([]Transition, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	cursor, err := s.collection.Find(ctx,
		bson.M{"order_id": orderID.String()},
		options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find order history: %w", err)
	}
	entries := []Transition{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decode order history: %w", err)
	}
	return entries, nil
}

// Noop is used when no document store is configured.
type Noop struct{}

func (Noop) Record(context.Context, Transition) error { return nil }

func (Noop) History(context.Context, uuid.UUID) ([]Transition, error) {
	return []Transition{}, nil
}
