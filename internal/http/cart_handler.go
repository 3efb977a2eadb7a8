package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CartService interface {
	GetCart(ctx context.Context, actor service.Actor) (*domain.Cart, error)
	AddItem(ctx context.Context, actor service.Actor, in service.CartItemInput) (*domain.Cart, error)
	UpdateItem(ctx context.Context, actor service.Actor, in service.CartItemInput) (*domain.Cart, error)
	RemoveItem(ctx context.Context, actor service.Actor, productID primitive.ObjectID) (*domain.Cart, error)
	ClearCart(ctx context.Context, actor service.Actor) error
}

type CartHandler struct {
	carts CartService
	log   *slog.Logger
}

func NewCartHandler(carts CartService, log *slog.Logger) *CartHandler {
	return &CartHandler{carts: carts, log: log}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.GetCart(r.Context(), actor)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req service.CartItemInput
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	cart, err := h.carts.AddItem(r.Context(), actor, req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, cart)
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req service.CartItemInput
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	cart, err := h.carts.UpdateItem(r.Context(), actor, req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// RemoveItem drops the line named by ?productId=, or empties the cart when no id is given.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}

	raw := r.URL.Query().Get("productId")
	if raw == "" {
		if err := h.carts.ClearCart(r.Context(), actor); err != nil {
			handleServiceError(w, r, h.log, err)
			return
		}
		respondMessage(w, http.StatusOK, "Cart cleared")
		return
	}

	productID, err := service.ParseID(raw)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	cart, err := h.carts.RemoveItem(r.Context(), actor, productID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}
