package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ecofinds/marketplace/internal/audit"
	"github.com/ecofinds/marketplace/internal/cache"
	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/repository"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const checkoutGuardTTL = 24 * time.Hour

var (
	ErrCheckoutInProgress = conflict("Checkout already in progress")
	ErrOrderChanged       = conflict("Order status changed, reload and try again")
	ErrInvalidStatus      = invalid("Invalid status")
)

type CheckoutInput struct {
	IdempotencyKey  string
	ShippingAddress *domain.ShippingAddress `json:"shipping_address" validate:"omitempty"`
	ShippingMethod  string                  `json:"shipping_method" validate:"max=50"`
	PaymentMethod   string                  `json:"payment_method" validate:"max=50"`
}

// CheckoutResult carries the orders of one checkout. Replayed is set when
// they were created by an earlier request with the same idempotency key.
type CheckoutResult struct {
	Orders   []*domain.Order
	Replayed bool
}

type StatusInput struct {
	Status         domain.OrderStatus `json:"status" validate:"required"`
	TrackingNumber string             `json:"tracking_number" validate:"max=100"`
}

type OrderService struct {
	orders   repository.OrderRepository
	carts    repository.CartRepository
	products repository.ProductRepository
	cache    cache.ProductCache
	guard    cache.Guard
	trail    adminTrail
	emit     *Emitter
	log      *slog.Logger
}

func NewOrderService(
	orders repository.OrderRepository,
	carts repository.CartRepository,
	products repository.ProductRepository,
	productCache cache.ProductCache,
	guard cache.Guard,
	ledger audit.Recorder,
	emit *Emitter,
	log *slog.Logger,
) *OrderService {
	return &OrderService{
		orders:   orders,
		carts:    carts,
		products: products,
		cache:    productCache,
		guard:    guard,
		trail:    adminTrail{ledger: ledger, log: log},
		emit:     emit,
		log:      log,
	}
}

type reservedLine struct {
	item    domain.CartItem
	product *domain.Product
}

// Checkout turns the caller's cart into one order per seller.
func (s *OrderService) Checkout(ctx context.Context, actor Actor, in CheckoutInput) (*CheckoutResult, error) {
	key := in.IdempotencyKey
	if key != "" {
		existing, err := s.orders.ListByIdempotencyKey(ctx, actor.ID, key)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
		if len(existing) > 0 {
			s.log.InfoContext(ctx, "duplicate checkout detected", "idempotency_key", key, "orders", len(existing))
			return &CheckoutResult{Orders: existing, Replayed: true}, nil
		}
	} else {
		key = uuid.NewString()
	}

	guardKey := "checkout:" + actor.ID.Hex() + ":" + key
	acquired, err := s.guard.Acquire(ctx, guardKey, checkoutGuardTTL)
	switch {
	case err != nil:
		// The unique (buyer_id, idempotency_key) index still stops duplicates.
		s.log.WarnContext(ctx, "checkout guard unavailable", "error", err)
	case !acquired:
		existing, err := s.orders.ListByIdempotencyKey(ctx, actor.ID, key)
		if err == nil && len(existing) > 0 {
			return &CheckoutResult{Orders: existing, Replayed: true}, nil
		}
		return nil, ErrCheckoutInProgress
	}

	result, err := s.checkout(ctx, actor, key, in)
	if err != nil && acquired {
		s.release(ctx, guardKey)
	}
	return result, err
}

func (s *OrderService) checkout(ctx context.Context, actor Actor, key string, in CheckoutInput) (*CheckoutResult, error) {
	cart, err := s.carts.GetCart(ctx, actor.ID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		return nil, err
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	lines := make([]reservedLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		product, err := s.products.DecrementStock(ctx, item.ProductID, item.Quantity)
		if err == nil && (product.IsAuction || product.Price == nil) {
			lines = append(lines, reservedLine{item: item, product: product})
			err = ErrNotPurchasable
		}
		if err != nil {
			s.compensate(ctx, lines)
			if errors.Is(err, repository.ErrInsufficientStock) {
				return nil, invalid(fmt.Sprintf("Not enough %s in stock", item.TitleSnapshot))
			}
			return nil, err
		}
		lines = append(lines, reservedLine{item: item, product: product})
	}

	orders := groupBySeller(actor.ID, key, lines, in)
	if err := s.orders.CreateMany(ctx, orders); err != nil {
		s.rollback(ctx, orders, lines)
		if errors.Is(err, repository.ErrDuplicate) {
			existing, listErr := s.orders.ListByIdempotencyKey(ctx, actor.ID, key)
			if listErr == nil && len(existing) > 0 {
				return &CheckoutResult{Orders: existing, Replayed: true}, nil
			}
			return nil, ErrCheckoutInProgress
		}
		return nil, err
	}

	for _, line := range lines {
		s.invalidate(ctx, line.product.ID)
	}
	if err := s.carts.DeleteCart(ctx, actor.ID); err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		s.log.ErrorContext(ctx, "failed to clear cart after checkout", "user_id", actor.ID.Hex(), "error", err)
	}

	events := make([]domain.EventPayload, 0, len(orders))
	for _, o := range orders {
		events = append(events, domain.EventPayload{
			EventType:  domain.EventOrderPlaced,
			EntityType: "order",
			EntityID:   o.ID.Hex(),
			ActorID:    actor.ID.Hex(),
			Recipients: hexes(o.SellerID),
			Title:      "New order",
			Text:       fmt.Sprintf("You received an order of %d item(s) totalling %.2f", len(o.Items), o.TotalAmount),
			Link:       "/orders/" + o.ID.Hex(),
			Amount:     o.TotalAmount,
		})
	}
	s.emit.Emit(ctx, events...)

	return &CheckoutResult{Orders: orders}, nil
}

func groupBySeller(buyer primitive.ObjectID, key string, lines []reservedLine, in CheckoutInput) []*domain.Order {
	var orders []*domain.Order
	bySeller := make(map[primitive.ObjectID]*domain.Order)
	for _, line := range lines {
		p := line.product
		o, ok := bySeller[p.SellerID]
		if !ok {
			o = &domain.Order{
				BuyerID:         buyer,
				SellerID:        p.SellerID,
				ShippingAddress: in.ShippingAddress,
				ShippingMethod:  in.ShippingMethod,
				Status:          domain.OrderPending,
				Payment:         domain.PaymentDetails{Method: in.PaymentMethod, Status: domain.PaymentPending},
				IdempotencyKey:  repository.OrderIdempotencyKey(key, p.SellerID),
			}
			bySeller[p.SellerID] = o
			orders = append(orders, o)
		}
		o.Items = append(o.Items, domain.OrderItem{
			ProductID:     p.ID,
			Quantity:      line.item.Quantity,
			PurchasePrice: *p.Price,
			TitleSnapshot: p.Title,
			ImageSnapshot: p.FirstImage(),
		})
		o.TotalAmount += *p.Price * float64(line.item.Quantity)
	}
	for _, o := range orders {
		o.TotalAmount += o.ShippingCost
	}
	return orders
}

// rollback undoes a CreateMany that failed after some orders may have been
// written. Stock goes back only for sellers whose order is known to be gone,
// so a failed cleanup can leave stock reserved but never oversells.
func (s *OrderService) rollback(ctx context.Context, orders []*domain.Order, lines []reservedLine) {
	ctx = context.WithoutCancel(ctx)
	ids := make([]primitive.ObjectID, 0, len(orders))
	for _, o := range orders {
		if !o.ID.IsZero() {
			ids = append(ids, o.ID)
		}
	}
	err := s.orders.DeleteByIDs(ctx, ids)
	if err == nil {
		s.compensate(ctx, lines)
		return
	}
	s.log.ErrorContext(ctx, "failed to roll back checkout orders", "orders", len(ids), "error", err)

	gone := make(map[primitive.ObjectID]bool, len(orders))
	for _, o := range orders {
		if o.ID.IsZero() {
			gone[o.SellerID] = true
			continue
		}
		if _, err := s.orders.GetByID(ctx, o.ID); errors.Is(err, repository.ErrOrderNotFound) {
			gone[o.SellerID] = true
			continue
		}
		s.log.ErrorContext(ctx, "stock left reserved for unconfirmed order", "order_id", o.ID.Hex(), "seller_id", o.SellerID.Hex())
	}
	release := make([]reservedLine, 0, len(lines))
	for _, line := range lines {
		if gone[line.product.SellerID] {
			release = append(release, line)
		}
	}
	s.compensate(ctx, release)
}

// compensate gives back the stock taken for lines of a failed checkout.
func (s *OrderService) compensate(ctx context.Context, lines []reservedLine) {
	ctx = context.WithoutCancel(ctx)
	for _, line := range lines {
		if err := s.products.RestoreStock(ctx, line.product.ID, line.item.Quantity); err != nil {
			s.log.ErrorContext(ctx, "failed to restore stock", "product_id", line.product.ID.Hex(), "quantity", line.item.Quantity, "error", err)
		}
	}
}

func (s *OrderService) List(ctx context.Context, actor Actor) ([]*domain.Order, error) {
	return s.orders.ListByBuyer(ctx, actor.ID)
}

func (s *OrderService) ListSales(ctx context.Context, actor Actor) ([]*domain.Order, error) {
	return s.orders.ListBySeller(ctx, actor.ID)
}

func (s *OrderService) Get(ctx context.Context, actor Actor, id primitive.ObjectID) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if !order.Involves(actor.ID) && !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	return order, nil
}

// UpdateStatus lets the seller or an admin move the order forward and the buyer cancel a pending order.
func (s *OrderService) UpdateStatus(ctx context.Context, actor Actor, id primitive.ObjectID, in StatusInput) (*domain.Order, error) {
	if !in.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	order, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	managing := order.SellerID == actor.ID || actor.IsAdmin()
	if !managing {
		if in.Status != domain.OrderCancelled {
			return nil, ErrNotAuthorized
		}
		if order.Status != domain.OrderPending {
			return nil, conflict("Order can only be cancelled while pending")
		}
	}
	if !domain.CanTransitionTo(order.Status, in.Status) {
		return nil, conflict(fmt.Sprintf("Cannot change order status from %s to %s", order.Status, in.Status))
	}

	updated, err := s.orders.UpdateStatus(ctx, id, order.Status, in.Status, in.TrackingNumber)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrStatusChanged):
			return nil, ErrOrderChanged
		case errors.Is(err, repository.ErrOrderNotFound):
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if overrides(actor, order.BuyerID, order.SellerID) {
		s.trail.record(ctx, actor, "order.status", "order", id, "", map[string]any{
			"from":            string(order.Status),
			"to":              string(updated.Status),
			"tracking_number": in.TrackingNumber,
		})
	}

	if in.Status == domain.OrderCancelled {
		for _, item := range updated.Items {
			if err := s.products.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
				s.log.ErrorContext(ctx, "failed to restore stock on cancel", "order_id", id.Hex(), "product_id", item.ProductID.Hex(), "error", err)
				continue
			}
			s.invalidate(ctx, item.ProductID)
		}
	}

	var recipients []primitive.ObjectID
	if updated.BuyerID != actor.ID {
		recipients = append(recipients, updated.BuyerID)
	}
	if updated.SellerID != actor.ID {
		recipients = append(recipients, updated.SellerID)
	}
	s.emit.Emit(ctx, domain.EventPayload{
		EventType:  domain.EventOrderStatusChanged,
		EntityType: "order",
		EntityID:   updated.ID.Hex(),
		ActorID:    actor.ID.Hex(),
		Recipients: hexes(recipients...),
		Title:      "Order " + string(updated.Status),
		Text:       fmt.Sprintf("Order %s is now %s", updated.ID.Hex(), updated.Status),
		Link:       "/orders/" + updated.ID.Hex(),
	})
	return updated, nil
}

func (s *OrderService) invalidate(ctx context.Context, id primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, id.Hex()); err != nil {
		s.log.WarnContext(ctx, "cache invalidate error", "product_id", id.Hex(), "error", err)
	}
}

func (s *OrderService) release(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.guard.Release(ctx, key); err != nil {
		s.log.WarnContext(ctx, "failed to release checkout guard", "key", key, "error", err)
	}
}
