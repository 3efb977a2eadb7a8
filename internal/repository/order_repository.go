package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/ecofinds/marketplace/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const orderIdempotencyIndex = "buyer_idempotency_key"

type orderRepository struct {
	collection *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) OrderRepository {
	return &orderRepository{collection: db.Collection(ordersCollection)}
}

func (r *orderRepository) CreateMany(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	now := time.Now()
	docs := make([]interface{}, 0, len(orders))
	for _, o := range orders {
		if o.ID.IsZero() {
			o.ID = primitive.NewObjectID()
		}
		o.CreatedAt = now
		o.UpdatedAt = now
		if o.PurchasedAt.IsZero() {
			o.PurchasedAt = now
		}
		docs = append(docs, o)
	}

	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert orders: %w", err)
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Order, error) {
	var order domain.Order
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

func (r *orderRepository) ListByBuyer(ctx context.Context, buyerID primitive.ObjectID) ([]*domain.Order, error) {
	return r.find(ctx, bson.M{"buyer_id": buyerID})
}

func (r *orderRepository) ListBySeller(ctx context.Context, sellerID primitive.ObjectID) ([]*domain.Order, error) {
	return r.find(ctx, bson.M{"seller_id": sellerID})
}

func (r *orderRepository) ListByIdempotencyKey(ctx context.Context, buyerID primitive.ObjectID, key string) ([]*domain.Order, error) {
	pattern := "^" + regexp.QuoteMeta(key+":")
	return r.find(ctx, bson.M{"buyer_id": buyerID, "idempotency_key": bson.M{"$regex": pattern}})
}

// DeleteByIDs removes orders of a checkout that failed part way through.
func (r *orderRepository) DeleteByIDs(ctx context.Context, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("failed to delete orders: %w", err)
	}
	return nil
}

func (r *orderRepository) find(ctx context.Context, filter bson.M) ([]*domain.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := make([]*domain.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus moves the order from one status to another only if it is still in from.
func (r *orderRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to domain.OrderStatus, tracking string) (*domain.Order, error) {
	now := time.Now()
	set := bson.M{"status": to, "updated_at": now}
	if tracking != "" {
		set["tracking_number"] = tracking
	}
	switch to {
	case domain.OrderDelivered:
		set["delivered_at"] = now
	case domain.OrderCancelled:
		set["payment_details.payment_status"] = domain.PaymentRefunded
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var order domain.Order
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": from}, bson.M{"$set": set}, opts).Decode(&order)
	if err == nil {
		return &order, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrStatusChanged
}

func (r *orderRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "buyer_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "seller_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			// Keys are chosen by clients, so they are only unique per buyer.
			Keys: bson.D{{Key: "buyer_id", Value: 1}, {Key: "idempotency_key", Value: 1}},
			Options: options.Index().
				SetName(orderIdempotencyIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"idempotency_key": bson.M{"$exists": true}}),
		},
	}

	// Older deployments carry a globally unique index on the key alone.
	if _, err := r.collection.Indexes().DropOne(ctx, "idempotency_key_1"); err != nil && !isIndexNotFound(err) {
		return fmt.Errorf("failed to drop legacy order index: %w", err)
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create order indexes: %w", err)
	}
	return nil
}

// OrderIdempotencyKey derives the per-order key stored on each order of one checkout.
// A checkout with one key can produce several orders, one per seller.
func OrderIdempotencyKey(key string, sellerID primitive.ObjectID) string {
	return key + ":" + sellerID.Hex()
}
