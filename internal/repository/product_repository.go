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

const earthRadiusKm = 6378.1

type productRepository struct {
	collection *mongo.Collection
}

func NewProductRepository(db *mongo.Database) ProductRepository {
	return &productRepository{collection: db.Collection(productsCollection)}
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	now := time.Now().Truncate(time.Millisecond)
	product.CreatedAt = now
	product.UpdatedAt = now
	if product.Status == "" {
		product.Status = domain.ProductActive
	}

	res, err := r.collection.InsertOne(ctx, product)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	product.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Product, error) {
	var product domain.Product
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&product); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &product, nil
}

func (r *productRepository) GetMany(ctx context.Context, ids []primitive.ObjectID) ([]*domain.Product, error) {
	if len(ids) == 0 {
		return []*domain.Product{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
}

// Update replaces the listing only if nobody wrote it since it was read, using
// updated_at as the version. A bid that landed in between yields ErrStatusChanged.
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	readAt := product.UpdatedAt
	product.UpdatedAt = time.Now().Truncate(time.Millisecond)
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": product.ID, "updated_at": readAt}, product)
	if err != nil {
		product.UpdatedAt = readAt
		return fmt.Errorf("failed to update product: %w", err)
	}
	if res.MatchedCount == 0 {
		product.UpdatedAt = readAt
		n, err := r.collection.CountDocuments(ctx, bson.M{"_id": product.ID})
		if err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}
		if n == 0 {
			return ErrProductNotFound
		}
		return ErrStatusChanged
	}
	return nil
}

func (r *productRepository) SetStatus(ctx context.Context, id primitive.ObjectID, status domain.ProductStatus) error {
	update := bson.M{"$set": bson.M{"status": status, "updated_at": time.Now()}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to set product status: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *productRepository) IncrementViews(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"view_count": 1}})
	if err != nil {
		return fmt.Errorf("failed to increment views: %w", err)
	}
	return nil
}

func (r *productRepository) List(ctx context.Context, f ProductFilter) ([]*domain.Product, int64, error) {
	filter := buildProductFilter(f)

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	opts := options.Find().
		SetSort(productSort(f.Sort)).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	products, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func buildProductFilter(f ProductFilter) bson.M {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	} else if f.NotStatus != "" {
		filter["status"] = bson.M{"$ne": f.NotStatus}
	}
	if f.SellerID != nil {
		filter["seller_id"] = *f.SellerID
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.Condition != "" {
		filter["condition"] = f.Condition
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		price := bson.M{}
		if f.MinPrice != nil {
			price["$gte"] = *f.MinPrice
		}
		if f.MaxPrice != nil {
			price["$lte"] = *f.MaxPrice
		}
		filter["price"] = price
	}
	if f.Search != "" {
		filter["$text"] = bson.M{"$search": f.Search}
	}
	if len(f.Near) == 2 && f.RadiusKm > 0 {
		filter["location.coordinates"] = bson.M{
			"$geoWithin": bson.M{
				"$centerSphere": bson.A{bson.A{f.Near[0], f.Near[1]}, f.RadiusKm / earthRadiusKm},
			},
		}
	}
	return filter
}

func productSort(sort string) bson.D {
	switch sort {
	case "price_asc":
		return bson.D{{Key: "price", Value: 1}, {Key: "created_at", Value: -1}}
	case "price_desc":
		return bson.D{{Key: "price", Value: -1}, {Key: "created_at", Value: -1}}
	default:
		return bson.D{{Key: "created_at", Value: -1}}
	}
}

func (r *productRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.Product, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find products: %w", err)
	}
	defer cursor.Close(ctx)

	products := make([]*domain.Product, 0)
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	return products, nil
}

// PlaceBid records bid only if the auction is still open and the amount beats the
// current floor at write time. It returns the product as it was before the bid.
func (r *productRepository) PlaceBid(ctx context.Context, id primitive.ObjectID, bid domain.Bid) (*domain.Product, error) {
	filter := bson.M{
		"_id":                      id,
		"is_auction":               true,
		"status":                   domain.ProductActive,
		"seller_id":                bson.M{"$ne": bid.BidderID},
		"auction_details.end_time": bson.M{"$gt": bid.BidTime},
		"$or": bson.A{
			bson.M{"auction_details.current_bid": bson.M{"$gt": 0, "$lt": bid.Amount}},
			bson.M{
				"auction_details.current_bid": bson.M{"$lte": 0},
				"auction_details.minimum_bid": bson.M{"$lt": bid.Amount},
			},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"auction_details.current_bid":    bid.Amount,
			"auction_details.current_bidder": bid.BidderID,
			"updated_at":                     bid.BidTime,
		},
		"$inc":  bson.M{"auction_details.bid_count": 1},
		"$push": bson.M{"auction_details.bids": bid},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
	var before domain.Product
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&before); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrBidRejected
		}
		return nil, fmt.Errorf("failed to place bid: %w", err)
	}
	return &before, nil
}

// DecrementStock takes quantity units off an active listing. A listing whose stock
// reaches zero is marked sold.
func (r *productRepository) DecrementStock(ctx context.Context, id primitive.ObjectID, quantity int) (*domain.Product, error) {
	now := time.Now()
	filter := bson.M{
		"_id":      id,
		"status":   domain.ProductActive,
		"quantity": bson.M{"$gte": quantity},
	}
	update := bson.M{
		"$inc": bson.M{"quantity": -quantity},
		"$set": bson.M{"updated_at": now},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var after domain.Product
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&after); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInsufficientStock
		}
		return nil, fmt.Errorf("failed to decrement stock: %w", err)
	}

	if after.Quantity == 0 {
		_, err := r.collection.UpdateOne(ctx,
			bson.M{"_id": id, "quantity": 0, "status": domain.ProductActive},
			bson.M{"$set": bson.M{"status": domain.ProductSold, "updated_at": now}},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to mark product sold: %w", err)
		}
		after.Status = domain.ProductSold
	}
	return &after, nil
}

func (r *productRepository) RestoreStock(ctx context.Context, id primitive.ObjectID, quantity int) error {
	now := time.Now()
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"quantity": quantity},
		"$set": bson.M{"updated_at": now},
	})
	if err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrProductNotFound
	}

	_, err = r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": domain.ProductSold, "is_auction": false, "quantity": bson.M{"$gt": 0}},
		bson.M{"$set": bson.M{"status": domain.ProductActive, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("failed to reactivate product: %w", err)
	}
	return nil
}

func (r *productRepository) ListExpiredAuctions(ctx context.Context, now time.Time, limit int) ([]*domain.Product, error) {
	filter := bson.M{
		"is_auction":               true,
		"status":                   domain.ProductActive,
		"auction_details.end_time": bson.M{"$lte": now},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "auction_details.end_time", Value: 1}}).
		SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

// CloseAuction moves an active auction to its final status. ErrStatusChanged means
// another writer already closed it.
func (r *productRepository) CloseAuction(ctx context.Context, id primitive.ObjectID, status domain.ProductStatus) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": domain.ProductActive},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to close auction: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrStatusChanged
	}
	return nil
}

func (r *productRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "title", Value: "text"}, {Key: "description", Value: "text"}},
		},
		{
			Keys: bson.D{{Key: "location.coordinates", Value: "2dsphere"}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "seller_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "is_auction", Value: 1}, {Key: "status", Value: 1}, {Key: "auction_details.end_time", Value: 1}},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create product indexes: %w", err)
	}
	return nil
}
