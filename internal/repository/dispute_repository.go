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

type disputeRepository struct {
	collection *mongo.Collection
}

func NewDisputeRepository(db *mongo.Database) DisputeRepository {
	return &disputeRepository{collection: db.Collection(disputesCollection)}
}

func (r *disputeRepository) Create(ctx context.Context, dispute *domain.Dispute) error {
	now := time.Now()
	dispute.CreatedAt = now
	dispute.UpdatedAt = now
	if dispute.Status == "" {
		dispute.Status = domain.DisputeOpen
	}
	if dispute.Evidence == nil {
		dispute.Evidence = []domain.Evidence{}
	}
	if dispute.Messages == nil {
		dispute.Messages = []domain.DisputeMessage{}
	}

	res, err := r.collection.InsertOne(ctx, dispute)
	if err != nil {
		return fmt.Errorf("failed to insert dispute: %w", err)
	}
	dispute.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *disputeRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Dispute, error) {
	var dispute domain.Dispute
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&dispute); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("failed to get dispute: %w", err)
	}
	return &dispute, nil
}

func (r *disputeRepository) List(ctx context.Context, userID *primitive.ObjectID) ([]*domain.Dispute, error) {
	filter := bson.M{}
	if userID != nil {
		filter["$or"] = bson.A{
			bson.M{"raised_by": *userID},
			bson.M{"against_user": *userID},
		}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find disputes: %w", err)
	}
	defer cursor.Close(ctx)

	disputes := make([]*domain.Dispute, 0)
	if err := cursor.All(ctx, &disputes); err != nil {
		return nil, fmt.Errorf("failed to decode disputes: %w", err)
	}
	return disputes, nil
}

func (r *disputeRepository) apply(ctx context.Context, id primitive.ObjectID, update bson.M) (*domain.Dispute, error) {
	if set, ok := update["$set"].(bson.M); ok {
		set["updated_at"] = time.Now()
	} else {
		update["$set"] = bson.M{"updated_at": time.Now()}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var dispute domain.Dispute
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&dispute); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("failed to update dispute: %w", err)
	}
	return &dispute, nil
}

func (r *disputeRepository) AddMessage(ctx context.Context, id primitive.ObjectID, msg domain.DisputeMessage) (*domain.Dispute, error) {
	return r.apply(ctx, id, bson.M{"$push": bson.M{"messages": msg}})
}

func (r *disputeRepository) AddEvidence(ctx context.Context, id primitive.ObjectID, evidence domain.Evidence) (*domain.Dispute, error) {
	return r.apply(ctx, id, bson.M{"$push": bson.M{"evidence": evidence}})
}

func (r *disputeRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status domain.DisputeStatus) (*domain.Dispute, error) {
	return r.apply(ctx, id, bson.M{"$set": bson.M{"status": status}})
}

func (r *disputeRepository) Resolve(ctx context.Context, id primitive.ObjectID, resolution domain.Resolution) (*domain.Dispute, error) {
	return r.apply(ctx, id, bson.M{"$set": bson.M{
		"status":     domain.DisputeResolved,
		"resolution": resolution,
	}})
}

func (r *disputeRepository) Assign(ctx context.Context, id, adminID primitive.ObjectID) (*domain.Dispute, error) {
	return r.apply(ctx, id, bson.M{"$set": bson.M{
		"assigned_to": adminID,
		"status":      domain.DisputeUnderReview,
	}})
}

func (r *disputeRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "raised_by", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "against_user", Value: 1}}},
		{Keys: bson.D{{Key: "order_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create dispute indexes: %w", err)
	}
	return nil
}
