package repository

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ecofinds/marketplace/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ratingRepository struct {
	collection *mongo.Collection
}

func NewRatingRepository(db *mongo.Database) RatingRepository {
	return &ratingRepository{collection: db.Collection(ratingsCollection)}
}

func (r *ratingRepository) Create(ctx context.Context, rating *domain.Rating) error {
	now := time.Now()
	rating.CreatedAt = now
	rating.UpdatedAt = now

	res, err := r.collection.InsertOne(ctx, rating)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert rating: %w", err)
	}
	rating.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *ratingRepository) ListByReviewee(ctx context.Context, revieweeID primitive.ObjectID) ([]*domain.Rating, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"reviewee_id": revieweeID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find ratings: %w", err)
	}
	defer cursor.Close(ctx)

	ratings := make([]*domain.Rating, 0)
	if err := cursor.All(ctx, &ratings); err != nil {
		return nil, fmt.Errorf("failed to decode ratings: %w", err)
	}
	return ratings, nil
}

// Stats computes the average and count of the reviewee's ratings. The average is rounded to one decimal.
func (r *ratingRepository) Stats(ctx context.Context, revieweeID primitive.ObjectID) (domain.RatingStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"reviewee_id": revieweeID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"avg":   bson.M{"$avg": "$rating"},
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return domain.RatingStats{}, fmt.Errorf("failed to aggregate ratings: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Avg   float64 `bson:"avg"`
		Count int     `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return domain.RatingStats{}, fmt.Errorf("failed to decode rating stats: %w", err)
	}
	if len(rows) == 0 {
		return domain.RatingStats{}, nil
	}
	return domain.RatingStats{
		Average: math.Round(rows[0].Avg*10) / 10,
		Count:   rows[0].Count,
	}, nil
}

func (r *ratingRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "reviewer_id", Value: 1}, {Key: "reviewee_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "reviewee_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create rating indexes: %w", err)
	}
	return nil
}
