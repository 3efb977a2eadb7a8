package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/ecofinds/marketplace/internal/audit"
	"github.com/ecofinds/marketplace/internal/cache"
	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/singleflight"
)

var (
	ErrProductChanged      = conflict("Product was modified, reload and try again")
	ErrAuctionHasBids      = conflict("Auction already has bids and must stay an auction")
	ErrAuctionFloorLocked  = invalid("Minimum bid must stay below the current bid")
	ErrAuctionWindowLocked = invalid("Auction window must cover existing bids and end in the future")
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// ProductInput is the client-writable part of a listing.
type ProductInput struct {
	Title       string           `json:"title" validate:"required,max=100"`
	Description string           `json:"description" validate:"required,max=1000"`
	Category    string           `json:"category" validate:"required"`
	Subcategory string           `json:"subcategory"`
	Images      []string         `json:"images" validate:"required,min=1,dive,required"`
	Price       *float64         `json:"price" validate:"omitempty,gte=0"`
	IsAuction   bool             `json:"is_auction"`
	Auction     *AuctionInput    `json:"auction_details"`
	Condition   string           `json:"condition" validate:"required"`
	Brand       string           `json:"brand"`
	Color       string           `json:"color"`
	Year        int              `json:"year" validate:"omitempty,gte=1800"`
	Tags        []string         `json:"tags"`
	Location    *domain.Location `json:"location"`
	Quantity    int              `json:"quantity" validate:"omitempty,gte=1"`
}

type AuctionInput struct {
	MinimumBid   float64   `json:"minimum_bid"`
	ReservePrice float64   `json:"reserve_price"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
}

// ProductPage is one page of a product listing.
type ProductPage struct {
	Products    []*domain.Product `json:"products"`
	TotalPages  int               `json:"totalPages"`
	CurrentPage int               `json:"currentPage"`
	Total       int64             `json:"total"`
}

type ProductService struct {
	repo  repository.ProductRepository
	users repository.UserRepository
	cache cache.ProductCache
	sfg   singleflight.Group
	trail adminTrail
	emit  *Emitter
	log   *slog.Logger
	now   func() time.Time
}

func NewProductService(
	repo repository.ProductRepository,
	users repository.UserRepository,
	productCache cache.ProductCache,
	ledger audit.Recorder,
	emit *Emitter,
	log *slog.Logger,
) *ProductService {
	return &ProductService{
		repo:  repo,
		users: users,
		cache: productCache,
		trail: adminTrail{ledger: ledger, log: log},
		emit:  emit,
		log:   log,
		now:   time.Now,
	}
}

// List returns active listings matching filter. Status is forced to active.
func (s *ProductService) List(ctx context.Context, filter repository.ProductFilter) (*ProductPage, error) {
	filter.Status = domain.ProductActive
	filter.NotStatus = ""
	filter.SellerID = nil
	return s.list(ctx, filter)
}

// ListBySeller returns a seller's public active listings.
func (s *ProductService) ListBySeller(ctx context.Context, sellerID primitive.ObjectID, page, limit int) (*ProductPage, error) {
	return s.list(ctx, repository.ProductFilter{
		Status:   domain.ProductActive,
		SellerID: &sellerID,
		Page:     page,
		Limit:    limit,
	})
}

// ListMine returns every listing of the caller that has not been deleted.
func (s *ProductService) ListMine(ctx context.Context, actor Actor, page, limit int) (*ProductPage, error) {
	return s.list(ctx, repository.ProductFilter{
		NotStatus: domain.ProductDeleted,
		SellerID:  &actor.ID,
		Page:      page,
		Limit:     limit,
	})
}

func (s *ProductService) list(ctx context.Context, filter repository.ProductFilter) (*ProductPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}

	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []*domain.Product{}
	}
	return &ProductPage{
		Products:    products,
		TotalPages:  int(math.Ceil(float64(total) / float64(filter.Limit))),
		CurrentPage: filter.Page,
		Total:       total,
	}, nil
}

// Get returns a visible product and counts the view.
func (s *ProductService) Get(ctx context.Context, id primitive.ObjectID) (*domain.Product, error) {
	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.Status == domain.ProductDeleted {
		return nil, ErrProductNotFound
	}
	if err := s.repo.IncrementViews(ctx, id); err != nil {
		s.log.WarnContext(ctx, "failed to increment view count", "product_id", id.Hex(), "error", err)
	} else {
		copied := *product
		copied.ViewCount++
		product = &copied
	}
	return product, nil
}

// load reads a product through the cache. Concurrent misses for one id share a single database read.
func (s *ProductService) load(ctx context.Context, id primitive.ObjectID) (*domain.Product, error) {
	key := id.Hex()
	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		product, err := s.cache.Get(ctx, key)
		if err == nil {
			return product, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.WarnContext(ctx, "cache get error", "product_id", key, "error", err)
		}

		product, err = s.repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				return nil, ErrProductNotFound
			}
			return nil, err
		}

		go func() {
			setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := s.cache.Set(setCtx, key, product); err != nil {
				s.log.Warn("cache set error", "product_id", key, "error", err)
			}
		}()
		return product, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Product), nil
}

func (s *ProductService) Create(ctx context.Context, actor Actor, in ProductInput) (*domain.Product, error) {
	product := &domain.Product{SellerID: actor.ID}
	in.apply(product)
	if err := product.Normalize(); err != nil {
		return nil, invalid(err.Error())
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *ProductService) Update(ctx context.Context, actor Actor, id primitive.ObjectID, in ProductInput) (*domain.Product, error) {
	product, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if err := in.checkBids(product, s.now()); err != nil {
		return nil, err
	}

	// apply leaves seller, status, view count and bidding state alone.
	in.apply(product)
	if err := product.Normalize(); err != nil {
		return nil, invalid(err.Error())
	}
	if err := s.repo.Update(ctx, product); err != nil {
		switch {
		case errors.Is(err, repository.ErrProductNotFound):
			return nil, ErrProductNotFound
		case errors.Is(err, repository.ErrStatusChanged):
			return nil, ErrProductChanged
		}
		return nil, err
	}
	s.invalidate(ctx, id)
	if overrides(actor, product.SellerID) {
		s.trail.record(ctx, actor, "product.update", "product", id, "", map[string]any{
			"seller_id": product.SellerID.Hex(),
			"title":     product.Title,
		})
	}
	return product, nil
}

// Delete hides the listing; orders and messages keep their references.
func (s *ProductService) Delete(ctx context.Context, actor Actor, id primitive.ObjectID) error {
	product, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.SetStatus(ctx, id, domain.ProductDeleted); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return ErrProductNotFound
		}
		return err
	}
	s.invalidate(ctx, id)
	if overrides(actor, product.SellerID) {
		s.trail.record(ctx, actor, "product.delete", "product", id, "", map[string]any{
			"seller_id": product.SellerID.Hex(),
			"status":    string(product.Status),
		})
	}
	return nil
}

// ToggleSave adds the product to the user's saved list, or removes it when it is already there.
func (s *ProductService) ToggleSave(ctx context.Context, actor Actor, id primitive.ObjectID) (bool, error) {
	if _, err := s.visible(ctx, id); err != nil {
		return false, err
	}
	saved, err := s.users.ToggleSavedProduct(ctx, actor.ID, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return false, ErrUserNotFound
		}
		return false, err
	}
	return saved, nil
}

// SetStatus is the moderation path used by admins.
func (s *ProductService) SetStatus(ctx context.Context, id primitive.ObjectID, status domain.ProductStatus) (*domain.Product, error) {
	if !status.Valid() {
		return nil, invalid("Invalid status")
	}
	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	s.invalidate(ctx, id)
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *ProductService) visible(ctx context.Context, id primitive.ObjectID) (*domain.Product, error) {
	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.Status == domain.ProductDeleted {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// owned reads the product from the database, bypassing the cache, and checks the caller may edit it.
func (s *ProductService) owned(ctx context.Context, actor Actor, id primitive.ObjectID) (*domain.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	if product.Status == domain.ProductDeleted {
		return nil, ErrProductNotFound
	}
	if product.SellerID != actor.ID && !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	return product, nil
}

func (s *ProductService) invalidate(ctx context.Context, id primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, id.Hex()); err != nil {
		s.log.WarnContext(ctx, "cache invalidate error", "product_id", id.Hex(), "error", err)
	}
}

// checkBids rejects edits that would invalidate bids already placed on an auction.
func (in ProductInput) checkBids(p *domain.Product, now time.Time) error {
	a := p.Auction
	if a == nil || !a.HasBids() {
		return nil
	}
	if !in.IsAuction || in.Auction == nil {
		return ErrAuctionHasBids
	}
	if in.Auction.MinimumBid >= a.CurrentBid {
		return ErrAuctionFloorLocked
	}
	first, last := a.BidSpan()
	end := in.Auction.EndTime
	if !end.After(now) || (!last.IsZero() && !end.After(last)) {
		return ErrAuctionWindowLocked
	}
	if !first.IsZero() && in.Auction.StartTime.After(first) {
		return ErrAuctionWindowLocked
	}
	return nil
}

func (in ProductInput) apply(p *domain.Product) {
	p.Title = in.Title
	p.Description = in.Description
	p.Category = in.Category
	p.Subcategory = in.Subcategory
	p.Images = in.Images
	p.Price = in.Price
	p.IsAuction = in.IsAuction
	p.Condition = in.Condition
	p.Brand = in.Brand
	p.Color = in.Color
	p.Year = in.Year
	p.Tags = in.Tags
	p.Location = in.Location
	p.Quantity = in.Quantity
	if in.Auction == nil {
		p.Auction = nil
		return
	}
	if p.Auction == nil {
		p.Auction = &domain.AuctionDetails{}
	}
	p.Auction.MinimumBid = in.Auction.MinimumBid
	p.Auction.ReservePrice = in.Auction.ReservePrice
	p.Auction.StartTime = in.Auction.StartTime
	p.Auction.EndTime = in.Auction.EndTime
}
