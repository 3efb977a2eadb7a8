package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrProductRequired  = invalid("Product id is required")
	ErrInvalidQuantity  = invalid("Quantity must be at least 1")
	ErrNotPurchasable   = invalid("This product cannot be added to the cart")
	ErrOwnProductInCart = invalid("You cannot add your own product to the cart")
	ErrCartNotFound     = notFound("Cart not found")
)

type CartItemInput struct {
	ProductID primitive.ObjectID `json:"productId"`
	Quantity  int                `json:"quantity"`
}

type CartService struct {
	repo     repository.CartRepository
	products repository.ProductRepository
	log      *slog.Logger
	now      func() time.Time
}

func NewCartService(repo repository.CartRepository, products repository.ProductRepository, log *slog.Logger) *CartService {
	return &CartService{repo: repo, products: products, log: log, now: time.Now}
}

// GetCart returns the caller's cart, an empty one when none exists yet.
func (s *CartService) GetCart(ctx context.Context, actor Actor) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, actor.ID)
	if errors.Is(err, repository.ErrCartNotFound) {
		now := s.now()
		return &domain.Cart{UserID: actor.ID, Items: []domain.CartItem{}, CreatedAt: now, UpdatedAt: now}, nil
	}
	if err != nil {
		return nil, err
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return cart, nil
}

// AddItem puts quantity units of a product in the cart, on top of any already there.
func (s *CartService) AddItem(ctx context.Context, actor Actor, in CartItemInput) (*domain.Cart, error) {
	if in.ProductID.IsZero() {
		return nil, ErrProductRequired
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.purchasable(ctx, actor, in.ProductID)
	if err != nil {
		return nil, err
	}
	cart, err := s.GetCart(ctx, actor)
	if err != nil {
		return nil, err
	}

	quantity := in.Quantity
	addedAt := s.now()
	if i, ok := cart.Find(in.ProductID); ok {
		quantity += cart.Items[i].Quantity
		addedAt = cart.Items[i].AddedAt
	}
	if quantity > product.Quantity {
		return nil, ErrNotEnoughStock
	}

	item := domain.CartItem{
		ProductID:     product.ID,
		Quantity:      quantity,
		AddedAt:       addedAt,
		PriceSnapshot: *product.Price,
		TitleSnapshot: product.Title,
		ImageSnapshot: product.FirstImage(),
	}
	if err := s.repo.AddItem(ctx, actor.ID, item); err != nil {
		s.log.ErrorContext(ctx, "repo add item error", "user_id", actor.ID.Hex(), "error", err)
		return nil, err
	}
	return s.GetCart(ctx, actor)
}

// UpdateItem sets the quantity of a line. Zero removes it.
func (s *CartService) UpdateItem(ctx context.Context, actor Actor, in CartItemInput) (*domain.Cart, error) {
	if in.ProductID.IsZero() {
		return nil, ErrProductRequired
	}
	if in.Quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if in.Quantity == 0 {
		return s.RemoveItem(ctx, actor, in.ProductID)
	}

	product, err := s.products.GetByID(ctx, in.ProductID)
	if err != nil && !errors.Is(err, repository.ErrProductNotFound) {
		return nil, err
	}
	if product != nil && in.Quantity > product.Quantity {
		return nil, ErrNotEnoughStock
	}

	if err := s.repo.UpdateItemQuantity(ctx, actor.ID, in.ProductID, in.Quantity); err != nil {
		return nil, cartError(err)
	}
	return s.GetCart(ctx, actor)
}

func (s *CartService) RemoveItem(ctx context.Context, actor Actor, productID primitive.ObjectID) (*domain.Cart, error) {
	if productID.IsZero() {
		return nil, ErrProductRequired
	}
	if err := s.repo.RemoveItem(ctx, actor.ID, productID); err != nil {
		return nil, cartError(err)
	}
	return s.GetCart(ctx, actor)
}

func (s *CartService) ClearCart(ctx context.Context, actor Actor) error {
	err := s.repo.DeleteCart(ctx, actor.ID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		return err
	}
	return nil
}

func (s *CartService) purchasable(ctx context.Context, actor Actor, id primitive.ObjectID) (*domain.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	if product.Status == domain.ProductDeleted {
		return nil, ErrProductNotFound
	}
	if product.SellerID == actor.ID {
		return nil, ErrOwnProductInCart
	}
	if !product.Purchasable() {
		return nil, ErrNotPurchasable
	}
	return product, nil
}

func cartError(err error) error {
	switch {
	case errors.Is(err, repository.ErrItemNotFound):
		return ErrItemNotFound
	case errors.Is(err, repository.ErrCartNotFound):
		return ErrCartNotFound
	}
	return err
}
