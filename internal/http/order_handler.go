package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const idempotencyHeader = "Idempotency-Key"

type OrderService interface {
	Checkout(ctx context.Context, actor service.Actor, in service.CheckoutInput) (*service.CheckoutResult, error)
	List(ctx context.Context, actor service.Actor) ([]*domain.Order, error)
	ListSales(ctx context.Context, actor service.Actor) ([]*domain.Order, error)
	Get(ctx context.Context, actor service.Actor, id primitive.ObjectID) (*domain.Order, error)
	UpdateStatus(ctx context.Context, actor service.Actor, id primitive.ObjectID, in service.StatusInput) (*domain.Order, error)
}

type OrderHandler struct {
	orders OrderService
	log    *slog.Logger
}

func NewOrderHandler(orders OrderService, log *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, log: log}
}

type CheckoutResponse struct {
	Message string          `json:"message"`
	Orders  []*domain.Order `json:"orders"`
}

func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req service.CheckoutInput
	// An empty body is allowed; shipping details are optional.
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, err)
			return
		}
	}
	req.IdempotencyKey = r.Header.Get(idempotencyHeader)

	res, err := h.orders.Checkout(r.Context(), actor, req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	respondJSON(w, status, CheckoutResponse{Message: "Order placed successfully", Orders: res.Orders})
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.orders.List)
}

func (h *OrderHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.orders.ListSales)
}

func (h *OrderHandler) list(w http.ResponseWriter, r *http.Request, fetch func(context.Context, service.Actor) ([]*domain.Order, error)) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}

	orders, err := fetch(r.Context(), actor)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, ok := pathObjectID(w, r, h.log, "id")
	if !ok {
		return
	}

	order, err := h.orders.Get(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, ok := pathObjectID(w, r, h.log, "id")
	if !ok {
		return
	}
	var req service.StatusInput
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), actor, id, req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
