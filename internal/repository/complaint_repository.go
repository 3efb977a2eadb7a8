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

type complaintRepository struct {
	collection *mongo.Collection
}

func NewComplaintRepository(db *mongo.Database) ComplaintRepository {
	return &complaintRepository{collection: db.Collection(complaintsCollection)}
}

func (r *complaintRepository) Create(ctx context.Context, complaint *domain.Complaint) error {
	now := time.Now()
	complaint.CreatedAt = now
	complaint.UpdatedAt = now
	if complaint.Status == "" {
		complaint.Status = domain.ComplaintPendingReview
	}

	res, err := r.collection.InsertOne(ctx, complaint)
	if err != nil {
		return fmt.Errorf("failed to insert complaint: %w", err)
	}
	complaint.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *complaintRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Complaint, error) {
	var complaint domain.Complaint
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&complaint); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrComplaintNotFound
		}
		return nil, fmt.Errorf("failed to get complaint: %w", err)
	}
	return &complaint, nil
}

func (r *complaintRepository) ListByComplainant(ctx context.Context, userID primitive.ObjectID) ([]*domain.Complaint, error) {
	return r.find(ctx, bson.M{"complainant_id": userID})
}

func (r *complaintRepository) List(ctx context.Context, status domain.ComplaintStatus) ([]*domain.Complaint, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return r.find(ctx, filter)
}

func (r *complaintRepository) find(ctx context.Context, filter bson.M) ([]*domain.Complaint, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find complaints: %w", err)
	}
	defer cursor.Close(ctx)

	complaints := make([]*domain.Complaint, 0)
	if err := cursor.All(ctx, &complaints); err != nil {
		return nil, fmt.Errorf("failed to decode complaints: %w", err)
	}
	return complaints, nil
}

func (r *complaintRepository) Update(ctx context.Context, id primitive.ObjectID, u ComplaintUpdate) (*domain.Complaint, error) {
	set := bson.M{"updated_at": time.Now()}
	if u.Status != "" {
		set["status"] = u.Status
	}
	if u.AdminNotes != "" {
		set["admin_notes"] = u.AdminNotes
	}
	if u.ResolutionDetails != "" {
		set["resolution_details"] = u.ResolutionDetails
	}
	if u.AssignedTo != nil {
		set["assigned_to"] = *u.AssignedTo
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var complaint domain.Complaint
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&complaint); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrComplaintNotFound
		}
		return nil, fmt.Errorf("failed to update complaint: %w", err)
	}
	return &complaint, nil
}

func (r *complaintRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "complainant_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "target_type", Value: 1}, {Key: "target_id", Value: 1}}},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create complaint indexes: %w", err)
	}
	return nil
}
