package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

// Collection names.
const (
	usersCollection         = "users"
	productsCollection      = "products"
	cartsCollection         = "carts"
	ordersCollection        = "orders"
	messagesCollection      = "messages"
	ratingsCollection       = "ratings"
	disputesCollection      = "disputes"
	complaintsCollection    = "complaints"
	notificationsCollection = "notifications"
	outboxCollection        = "outbox_events"
)

type indexer interface {
	CreateIndexes(ctx context.Context) error
}

// CreateIndexes creates the indexes of every collection in db.
func CreateIndexes(ctx context.Context, db *mongo.Database) error {
	repos := []indexer{
		&userRepository{collection: db.Collection(usersCollection)},
		&productRepository{collection: db.Collection(productsCollection)},
		&cartRepository{collection: db.Collection(cartsCollection)},
		&orderRepository{collection: db.Collection(ordersCollection)},
		&messageRepository{collection: db.Collection(messagesCollection)},
		&ratingRepository{collection: db.Collection(ratingsCollection)},
		&notificationRepository{collection: db.Collection(notificationsCollection)},
		&outboxRepository{collection: db.Collection(outboxCollection)},
		&disputeRepository{collection: db.Collection(disputesCollection)},
		&complaintRepository{collection: db.Collection(complaintsCollection)},
	}
	for _, r := range repos {
		if err := r.CreateIndexes(ctx); err != nil {
			return err
		}
	}
	return nil
}
