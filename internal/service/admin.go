package service

import (
	"context"
	"log/slog"

	"github.com/ecofinds/marketplace/internal/audit"
	"github.com/ecofinds/marketplace/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxAuditPage = 200

type ProductStatusInput struct {
	Status domain.ProductStatus `json:"status" validate:"required"`
	Reason string               `json:"reason" validate:"max=500"`
}

type AssignInput struct {
	AdminID primitive.ObjectID `json:"admin_id"`
}

// AdminService runs moderation actions and writes an admin action row for each.
type AdminService struct {
	products   *ProductService
	complaints *ComplaintService
	disputes   *DisputeService
	ledger     audit.Ledger
	log        *slog.Logger
}

func NewAdminService(
	products *ProductService,
	complaints *ComplaintService,
	disputes *DisputeService,
	ledger audit.Ledger,
	log *slog.Logger,
) *AdminService {
	return &AdminService{products: products, complaints: complaints, disputes: disputes, ledger: ledger, log: log}
}

func (s *AdminService) ListComplaints(ctx context.Context, actor Actor, status domain.ComplaintStatus) ([]*domain.Complaint, error) {
	return s.complaints.List(ctx, actor, status)
}

func (s *AdminService) GetComplaint(ctx context.Context, actor Actor, id primitive.ObjectID) (*domain.Complaint, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminOnly
	}
	return s.complaints.Get(ctx, actor, id)
}

func (s *AdminService) UpdateComplaint(ctx context.Context, actor Actor, id primitive.ObjectID, in ComplaintStatusInput) (*domain.Complaint, error) {
	c, err := s.complaints.UpdateStatus(ctx, actor, id, in)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "complaint.status", "complaint", id, in.ResolutionDetails, map[string]any{
		"status":      string(in.Status),
		"admin_notes": in.AdminNotes,
	})
	return c, nil
}

func (s *AdminService) ResolveDispute(ctx context.Context, actor Actor, id primitive.ObjectID, in ResolveInput) (*domain.Dispute, error) {
	d, err := s.disputes.Resolve(ctx, actor, id, in)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "dispute.resolve", "dispute", id, in.Notes, map[string]any{"action_taken": in.ActionTaken})
	return d, nil
}

// AssignDispute assigns the dispute to the given admin, or to the caller when none is named.
func (s *AdminService) AssignDispute(ctx context.Context, actor Actor, id primitive.ObjectID, in AssignInput) (*domain.Dispute, error) {
	adminID := in.AdminID
	if adminID.IsZero() {
		adminID = actor.ID
	}
	d, err := s.disputes.Assign(ctx, actor, id, adminID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "dispute.assign", "dispute", id, "", map[string]any{"assigned_to": adminID.Hex()})
	return d, nil
}

func (s *AdminService) SetProductStatus(ctx context.Context, actor Actor, id primitive.ObjectID, in ProductStatusInput) (*domain.Product, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminOnly
	}
	p, err := s.products.SetStatus(ctx, id, in.Status)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "product.status", "product", id, in.Reason, map[string]any{"status": string(in.Status)})
	return p, nil
}

func (s *AdminService) ListAudit(ctx context.Context, actor Actor, f audit.Filter) ([]domain.AuditEntry, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminOnly
	}
	if f.Limit < 1 || f.Limit > maxAuditPage {
		f.Limit = maxAuditPage
	}
	entries, err := s.ledger.ListAudit(ctx, f)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	return entries, nil
}

func (s *AdminService) ListActions(ctx context.Context, actor Actor, adminID string, limit int) ([]domain.AdminAction, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminOnly
	}
	if limit < 1 || limit > maxAuditPage {
		limit = maxAuditPage
	}
	actions, err := s.ledger.ListAdminActions(ctx, adminID, limit)
	if err != nil {
		return nil, err
	}
	if actions == nil {
		actions = []domain.AdminAction{}
	}
	return actions, nil
}

func (s *AdminService) record(ctx context.Context, actor Actor, action, targetType string, targetID primitive.ObjectID, reason string, details map[string]any) {
	adminTrail{ledger: s.ledger, log: s.log}.record(ctx, actor, action, targetType, targetID, reason, details)
}
