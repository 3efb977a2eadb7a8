package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/repository"
	"github.com/ecofinds/marketplace/internal/service"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ProductService interface {
	List(ctx context.Context, filter repository.ProductFilter) (*service.ProductPage, error)
	ListBySeller(ctx context.Context, sellerID primitive.ObjectID, page, limit int) (*service.ProductPage, error)
	ListMine(ctx context.Context, actor service.Actor, page, limit int) (*service.ProductPage, error)
	Get(ctx context.Context, id primitive.ObjectID) (*domain.Product, error)
	Create(ctx context.Context, actor service.Actor, in service.ProductInput) (*domain.Product, error)
	Update(ctx context.Context, actor service.Actor, id primitive.ObjectID, in service.ProductInput) (*domain.Product, error)
	Delete(ctx context.Context, actor service.Actor, id primitive.ObjectID) error
	PlaceBid(ctx context.Context, actor service.Actor, id primitive.ObjectID, amount float64) (*domain.Product, error)
	ToggleSave(ctx context.Context, actor service.Actor, id primitive.ObjectID) (bool, error)
}

type ProductHandler struct {
	products ProductService
	log      *slog.Logger
}

func NewProductHandler(products ProductService, log *slog.Logger) *ProductHandler {
	return &ProductHandler{products: products, log: log}
}

type BidRequest struct {
	Amount float64 `json:"amount" validate:"gt=0"`
}

type SaveResponse struct {
	Saved bool `json:"saved"`
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProductFilter(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	page, err := h.products.List(r.Context(), filter)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	product, err := h.products.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req service.ProductInput
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	product, err := h.products.Create(r.Context(), actor, req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req service.ProductInput
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	product, err := h.products.Update(r.Context(), actor, id, req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.products.Delete(r.Context(), actor, id); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondMessage(w, http.StatusOK, "Product deleted")
}

func (h *ProductHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req BidRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	product, err := h.products.PlaceBid(r.Context(), actor, id, req.Amount)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) ToggleSave(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	saved, err := h.products.ToggleSave(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, SaveResponse{Saved: saved})
}

// ListBySeller serves GET /api/users/{userId}/products.
func (h *ProductHandler) ListBySeller(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := h.pathID(w, r, "userId")
	if !ok {
		return
	}
	page, limit := pagination(r)

	res, err := h.products.ListBySeller(r.Context(), sellerID, page, limit)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// ListMine serves GET /api/users/listings.
func (h *ProductHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	page, limit := pagination(r)

	res, err := h.products.ListMine(r.Context(), actor, page, limit)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *ProductHandler) pathID(w http.ResponseWriter, r *http.Request, param string) (primitive.ObjectID, bool) {
	return pathObjectID(w, r, h.log, param)
}

func pathObjectID(w http.ResponseWriter, r *http.Request, log *slog.Logger, param string) (primitive.ObjectID, bool) {
	id, err := service.ParseID(chi.URLParam(r, param))
	if err != nil {
		handleServiceError(w, r, log, err)
		return primitive.NilObjectID, false
	}
	return id, true
}

func pagination(r *http.Request) (int, int) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return page, limit
}

type queryError string

func (e queryError) Error() string { return string(e) }

func parseProductFilter(r *http.Request) (repository.ProductFilter, error) {
	q := r.URL.Query()
	page, limit := pagination(r)
	filter := repository.ProductFilter{
		Category:  q.Get("category"),
		Condition: q.Get("condition"),
		Search:    strings.TrimSpace(q.Get("search")),
		Sort:      q.Get("sort"),
		Page:      page,
		Limit:     limit,
	}

	if v := q.Get("minPrice"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filter, queryError("minPrice must be a number")
		}
		filter.MinPrice = &f
	}
	if v := q.Get("maxPrice"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filter, queryError("maxPrice must be a number")
		}
		filter.MaxPrice = &f
	}

	// Geo filtering needs both the point and the radius.
	loc, radius := q.Get("location"), q.Get("radius")
	if loc != "" && radius != "" {
		lngStr, latStr, found := strings.Cut(loc, ",")
		if !found {
			return filter, queryError("location must be lng,lat")
		}
		lng, err1 := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
		lat, err2 := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
		if err1 != nil || err2 != nil {
			return filter, queryError("location must be lng,lat")
		}
		km, err := strconv.ParseFloat(radius, 64)
		if err != nil || km <= 0 {
			return filter, queryError("radius must be a positive number")
		}
		filter.Near = []float64{lng, lat}
		filter.RadiusKm = km
	}
	return filter, nil
}
