package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecofinds/marketplace/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type messageRepository struct {
	collection *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) MessageRepository {
	return &messageRepository{collection: db.Collection(messagesCollection)}
}

func (r *messageRepository) Create(ctx context.Context, message *domain.Message) error {
	now := time.Now()
	message.CreatedAt = now
	message.UpdatedAt = now

	res, err := r.collection.InsertOne(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	message.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Message, error) {
	var msg domain.Message
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&msg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}

// Conversations groups the user's messages by product and counterpart, newest first.
func (r *messageRepository) Conversations(ctx context.Context, userID primitive.ObjectID) ([]domain.Conversation, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"sender_id": userID},
			bson.M{"receiver_id": userID},
		}}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		{{Key: "$addFields", Value: bson.M{
			"other_user_id": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$sender_id", userID}}, "$receiver_id", "$sender_id",
			}},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"product_id":    "$product_id",
				"other_user_id": "$other_user_id",
			},
			"last_message": bson.M{"$first": "$$ROOT"},
			"unread_count": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$receiver_id", userID}},
					bson.M{"$eq": bson.A{"$is_read", false}},
				}},
				1, 0,
			}}},
		}}},
		{{Key: "$project", Value: bson.M{
			"_id":           0,
			"product_id":    "$_id.product_id",
			"other_user_id": "$_id.other_user_id",
			"last_message":  1,
			"unread_count":  1,
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last_message.created_at", Value: -1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate conversations: %w", err)
	}
	defer cursor.Close(ctx)

	conversations := make([]domain.Conversation, 0)
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}
	return conversations, nil
}

func (r *messageRepository) Thread(ctx context.Context, userID, otherID, productID primitive.ObjectID) ([]*domain.Message, error) {
	filter := bson.M{
		"product_id": productID,
		"$or": bson.A{
			bson.M{"sender_id": userID, "receiver_id": otherID},
			bson.M{"sender_id": otherID, "receiver_id": userID},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find thread: %w", err)
	}
	defer cursor.Close(ctx)

	messages := make([]*domain.Message, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode thread: %w", err)
	}
	return messages, nil
}

func (r *messageRepository) MarkThreadRead(ctx context.Context, receiverID, senderID, productID primitive.ObjectID) (int64, error) {
	filter := bson.M{
		"product_id":  productID,
		"sender_id":   senderID,
		"receiver_id": receiverID,
		"is_read":     false,
	}
	update := bson.M{"$set": bson.M{"is_read": true, "updated_at": time.Now()}}

	res, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to mark thread read: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, id primitive.ObjectID) error {
	update := bson.M{"$set": bson.M{"is_read": true, "updated_at": time.Now()}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (r *messageRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "product_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "is_read", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}
	return nil
}
