package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ecofinds/marketplace/internal/audit"
	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AdminService interface {
	ListComplaints(ctx context.Context, actor service.Actor, status domain.ComplaintStatus) ([]*domain.Complaint, error)
	GetComplaint(ctx context.Context, actor service.Actor, id primitive.ObjectID) (*domain.Complaint, error)
	UpdateComplaint(ctx context.Context, actor service.Actor, id primitive.ObjectID, in service.ComplaintStatusInput) (*domain.Complaint, error)
	ResolveDispute(ctx context.Context, actor service.Actor, id primitive.ObjectID, in service.ResolveInput) (*domain.Dispute, error)
	AssignDispute(ctx context.Context, actor service.Actor, id primitive.ObjectID, in service.AssignInput) (*domain.Dispute, error)
	SetProductStatus(ctx context.Context, actor service.Actor, id primitive.ObjectID, in service.ProductStatusInput) (*domain.Product, error)
	ListAudit(ctx context.Context, actor service.Actor, f audit.Filter) ([]domain.AuditEntry, error)
	ListActions(ctx context.Context, actor service.Actor, adminID string, limit int) ([]domain.AdminAction, error)
}

type AdminHandler struct {
	admin AdminService
	log   *slog.Logger
}

func NewAdminHandler(admin AdminService, log *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, log: log}
}

func (h *AdminHandler) ListComplaints(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	status := domain.ComplaintStatus(r.URL.Query().Get("status"))

	list, err := h.admin.ListComplaints(r.Context(), actor, status)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	if list == nil {
		list = []*domain.Complaint{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *AdminHandler) GetComplaint(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, ok := pathObjectID(w, r, h.log, "id")
	if !ok {
		return
	}

	c, err := h.admin.GetComplaint(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *AdminHandler) UpdateComplaint(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, ok := pathObjectID(w, r, h.log, "id")
	if !ok {
		return
	}
	var req service.ComplaintStatusInput
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	c, err := h.admin.UpdateComplaint(r.Context(), actor, id, req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *AdminHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, ok := pathObjectID(w, r, h.log, "id")
	if !ok {
		return
	}
	var req service.ResolveInput
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	d, err := h.admin.ResolveDispute(r.Context(), actor, id, req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *AdminHandler) AssignDispute(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, ok := pathObjectID(w, r, h.log, "id")
	if !ok {
		return
	}
	var req service.AssignInput
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, err)
			return
		}
	}

	d, err := h.admin.AssignDispute(r.Context(), actor, id, req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *AdminHandler) SetProductStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, ok := pathObjectID(w, r, h.log, "id")
	if !ok {
		return
	}
	var req service.ProductStatusInput
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	p, err := h.admin.SetProductStatus(r.Context(), actor, id, req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	entries, err := h.admin.ListAudit(r.Context(), actor, audit.Filter{
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *AdminHandler) ListActions(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	actions, err := h.admin.ListActions(r.Context(), actor, q.Get("admin_id"), limit)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, actions)
}
