package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DisputeService interface {
	Open(ctx context.Context, actor service.Actor, in service.OpenDisputeInput) (*domain.Dispute, error)
	List(ctx context.Context, actor service.Actor) ([]*domain.Dispute, error)
	Get(ctx context.Context, actor service.Actor, id primitive.ObjectID) (*domain.Dispute, error)
	AddMessage(ctx context.Context, actor service.Actor, id primitive.ObjectID, message string) (*domain.Dispute, error)
	AddEvidence(ctx context.Context, actor service.Actor, id primitive.ObjectID, in service.EvidenceInput) (*domain.Dispute, error)
	UpdateStatus(ctx context.Context, actor service.Actor, id primitive.ObjectID, status domain.DisputeStatus) (*domain.Dispute, error)
}

type ComplaintService interface {
	File(ctx context.Context, actor service.Actor, in service.ComplaintInput) (*domain.Complaint, error)
	ListMine(ctx context.Context, actor service.Actor) ([]*domain.Complaint, error)
}

type DisputeHandler struct {
	disputes   DisputeService
	complaints ComplaintService
	log        *slog.Logger
}

func NewDisputeHandler(disputes DisputeService, complaints ComplaintService, log *slog.Logger) *DisputeHandler {
	return &DisputeHandler{disputes: disputes, complaints: complaints, log: log}
}

type DisputeMessageRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

type DisputeStatusRequest struct {
	Status domain.DisputeStatus `json:"status" validate:"required"`
}

func (h *DisputeHandler) Open(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req service.OpenDisputeInput
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	d, err := h.disputes.Open(r.Context(), actor, req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

func (h *DisputeHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}

	disputes, err := h.disputes.List(r.Context(), actor)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	if disputes == nil {
		disputes = []*domain.Dispute{}
	}
	respondJSON(w, http.StatusOK, disputes)
}

func (h *DisputeHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, ok := pathObjectID(w, r, h.log, "id")
	if !ok {
		return
	}

	d, err := h.disputes.Get(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *DisputeHandler) AddMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, ok := pathObjectID(w, r, h.log, "id")
	if !ok {
		return
	}
	var req DisputeMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	d, err := h.disputes.AddMessage(r.Context(), actor, id, req.Message)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

func (h *DisputeHandler) AddEvidence(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, ok := pathObjectID(w, r, h.log, "id")
	if !ok {
		return
	}
	var req service.EvidenceInput
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	d, err := h.disputes.AddEvidence(r.Context(), actor, id, req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

func (h *DisputeHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, ok := pathObjectID(w, r, h.log, "id")
	if !ok {
		return
	}
	var req DisputeStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	d, err := h.disputes.UpdateStatus(r.Context(), actor, id, req.Status)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *DisputeHandler) FileComplaint(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req service.ComplaintInput
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	c, err := h.complaints.File(r.Context(), actor, req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (h *DisputeHandler) ListComplaints(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}

	complaints, err := h.complaints.ListMine(r.Context(), actor)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	if complaints == nil {
		complaints = []*domain.Complaint{}
	}
	respondJSON(w, http.StatusOK, complaints)
}
