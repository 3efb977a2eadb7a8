package service

import (
	"context"
	"errors"

	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ComplaintInput struct {
	TargetType  string             `json:"target_type" validate:"required,oneof=user listing system comment review"`
	TargetID    primitive.ObjectID `json:"target_id"`
	Reason      string             `json:"reason" validate:"required,max=255"`
	Description string             `json:"description" validate:"max=2000"`
}

type ComplaintStatusInput struct {
	Status            domain.ComplaintStatus `json:"status" validate:"required"`
	AdminNotes        string                 `json:"admin_notes" validate:"max=2000"`
	ResolutionDetails string                 `json:"resolution_details" validate:"max=2000"`
}

type ComplaintService struct {
	complaints repository.ComplaintRepository
}

func NewComplaintService(complaints repository.ComplaintRepository) *ComplaintService {
	return &ComplaintService{complaints: complaints}
}

func (s *ComplaintService) File(ctx context.Context, actor Actor, in ComplaintInput) (*domain.Complaint, error) {
	if in.TargetType != "system" && in.TargetID.IsZero() {
		return nil, invalid("Target id is required")
	}
	c := &domain.Complaint{
		ComplainantID: actor.ID,
		TargetType:    in.TargetType,
		TargetID:      in.TargetID,
		Reason:        in.Reason,
		Description:   in.Description,
		Status:        domain.ComplaintPendingReview,
	}
	if err := s.complaints.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ComplaintService) ListMine(ctx context.Context, actor Actor) ([]*domain.Complaint, error) {
	return s.complaints.ListByComplainant(ctx, actor.ID)
}

func (s *ComplaintService) List(ctx context.Context, actor Actor, status domain.ComplaintStatus) ([]*domain.Complaint, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminOnly
	}
	if status != "" && !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.complaints.List(ctx, status)
}

func (s *ComplaintService) Get(ctx context.Context, actor Actor, id primitive.ObjectID) (*domain.Complaint, error) {
	c, err := s.complaints.GetByID(ctx, id)
	if err != nil {
		return nil, complaintError(err)
	}
	if c.ComplainantID != actor.ID && !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	return c, nil
}

// UpdateStatus records an admin decision and assigns the complaint to that admin.
func (s *ComplaintService) UpdateStatus(ctx context.Context, actor Actor, id primitive.ObjectID, in ComplaintStatusInput) (*domain.Complaint, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminOnly
	}
	if !in.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	c, err := s.complaints.Update(ctx, id, repository.ComplaintUpdate{
		Status:            in.Status,
		AdminNotes:        in.AdminNotes,
		ResolutionDetails: in.ResolutionDetails,
		AssignedTo:        &actor.ID,
	})
	if err != nil {
		return nil, complaintError(err)
	}
	return c, nil
}

func complaintError(err error) error {
	if errors.Is(err, repository.ErrComplaintNotFound) {
		return ErrComplaintNotFound
	}
	return err
}
