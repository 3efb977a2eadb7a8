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

type userRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{collection: db.Collection(usersCollection)}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	if user.SavedProducts == nil {
		user.SavedProducts = []primitive.ObjectID{}
	}

	res, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	user.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *userRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var user domain.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *userRepository) ExistsByEmailOrPhone(ctx context.Context, email, phone string) (bool, error) {
	filter := bson.M{"$or": bson.A{bson.M{"email": email}, bson.M{"phone": phone}}}
	n, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to count users: %w", err)
	}
	return n > 0, nil
}

// MarkPhoneVerified consumes otp and sets the phone flag. is_verified is
// derived from the stored email flag in the same write, so a concurrent email
// verification is never lost.
func (r *userRepository) MarkPhoneVerified(ctx context.Context, id primitive.ObjectID, otp string) error {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "phone_verified", Value: bson.M{"$literal": true}},
			{Key: "is_verified", Value: bson.M{"$eq": bson.A{"$email_verified", true}}},
			{Key: "updated_at", Value: time.Now()},
		}}},
		{{Key: "$unset", Value: bson.A{"otp", "otp_expires_at"}}},
	}
	return r.updateOne(ctx, bson.M{"_id": id, "otp": otp}, update, "verify phone")
}

// MarkEmailVerified sets the email flag and derives is_verified from the stored phone flag.
func (r *userRepository) MarkEmailVerified(ctx context.Context, id primitive.ObjectID) error {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "email_verified", Value: bson.M{"$literal": true}},
			{Key: "is_verified", Value: bson.M{"$eq": bson.A{"$phone_verified", true}}},
			{Key: "updated_at", Value: time.Now()},
		}}},
	}
	return r.updateOne(ctx, bson.M{"_id": id}, update, "verify email")
}

// SetPassword consumes otp and stores the new hash. No other field is written.
func (r *userRepository) SetPassword(ctx context.Context, id primitive.ObjectID, otp, passwordHash string) error {
	update := bson.M{
		"$set":   bson.M{"password": passwordHash, "updated_at": time.Now()},
		"$unset": bson.M{"otp": "", "otp_expires_at": ""},
	}
	return r.updateOne(ctx, bson.M{"_id": id, "otp": otp}, update, "set password")
}

// updateOne applies update to the user matched by filter. When the filter
// carries more than the id, a miss on an existing user means ErrStatusChanged.
func (r *userRepository) updateOne(ctx context.Context, filter bson.M, update interface{}, op string) error {
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": filter["_id"]})
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return ErrStatusChanged
}

func (r *userRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, update domain.ProfileUpdate) (*domain.User, error) {
	set := bson.M{"updated_at": time.Now()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Bio != nil {
		set["bio"] = *update.Bio
	}
	if update.AvatarURL != nil {
		set["avatar_url"] = *update.AvatarURL
	}
	if update.Location != nil {
		set["location"] = *update.Location
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user domain.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return &user, nil
}

func (r *userRepository) SetOTP(ctx context.Context, id primitive.ObjectID, otp string, expiresAt time.Time) error {
	update := bson.M{"$set": bson.M{
		"otp":            otp,
		"otp_expires_at": expiresAt,
		"updated_at":     time.Now(),
	}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to set otp: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ToggleSavedProduct adds productID to the saved list when absent and removes it otherwise.
// It reports whether the product is saved afterwards.
func (r *userRepository) ToggleSavedProduct(ctx context.Context, userID, productID primitive.ObjectID) (bool, error) {
	now := time.Now()
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID, "saved_products": bson.M{"$ne": productID}},
		bson.M{"$addToSet": bson.M{"saved_products": productID}, "$set": bson.M{"updated_at": now}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to save product: %w", err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}

	res, err = r.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"saved_products": productID}, "$set": bson.M{"updated_at": now}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to unsave product: %w", err)
	}
	if res.MatchedCount == 0 {
		return false, ErrUserNotFound
	}
	return false, nil
}

func (r *userRepository) SetRating(ctx context.Context, id primitive.ObjectID, stats domain.RatingStats) error {
	update := bson.M{"$set": bson.M{
		"rating_avg":   stats.Average,
		"rating_count": stats.Count,
		"updated_at":   time.Now(),
	}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to set rating: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "phone", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}
