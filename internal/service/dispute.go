package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ecofinds/marketplace/internal/audit"
	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrDisputeClosed  = invalid("Dispute is already closed")
	ErrDisputeMessage = invalid("Message is required")
	ErrEvidenceURL    = invalid("Evidence url is required")
)

type OpenDisputeInput struct {
	OrderID     *primitive.ObjectID `json:"order_id"`
	ProductID   *primitive.ObjectID `json:"product_id"`
	Subject     string              `json:"subject" validate:"required,max=200"`
	Description string              `json:"description" validate:"required,max=2000"`
}

type EvidenceInput struct {
	URL  string `json:"url" validate:"required,url"`
	Type string `json:"type" validate:"max=50"`
}

type ResolveInput struct {
	ActionTaken string `json:"action_taken" validate:"required,max=500"`
	Notes       string `json:"notes" validate:"max=2000"`
}

type DisputeService struct {
	disputes repository.DisputeRepository
	orders   repository.OrderRepository
	products repository.ProductRepository
	trail    adminTrail
	emit     *Emitter
	log      *slog.Logger
	now      func() time.Time
}

func NewDisputeService(
	disputes repository.DisputeRepository,
	orders repository.OrderRepository,
	products repository.ProductRepository,
	ledger audit.Recorder,
	emit *Emitter,
	log *slog.Logger,
) *DisputeService {
	return &DisputeService{
		disputes: disputes,
		orders:   orders,
		products: products,
		trail:    adminTrail{ledger: ledger, log: log},
		emit:     emit,
		log:      log,
		now:      time.Now,
	}
}

// Open raises a dispute about an order the caller took part in, or a listing.
// The other party is derived from the order or the listing's seller.
func (s *DisputeService) Open(ctx context.Context, actor Actor, in OpenDisputeInput) (*domain.Dispute, error) {
	d := &domain.Dispute{
		OrderID:     in.OrderID,
		ProductID:   in.ProductID,
		RaisedBy:    actor.ID,
		Subject:     in.Subject,
		Description: in.Description,
		Status:      domain.DisputeOpen,
		Evidence:    []domain.Evidence{},
		Messages:    []domain.DisputeMessage{},
	}
	if err := d.Validate(); err != nil {
		return nil, invalid(err.Error())
	}

	switch {
	case in.OrderID != nil:
		order, err := s.orders.GetByID(ctx, *in.OrderID)
		if err != nil {
			if errors.Is(err, repository.ErrOrderNotFound) {
				return nil, ErrOrderNotFound
			}
			return nil, err
		}
		if !order.Involves(actor.ID) {
			return nil, ErrNotAuthorized
		}
		against := order.SellerID
		if order.SellerID == actor.ID {
			against = order.BuyerID
		}
		d.AgainstUser = &against
	case in.ProductID != nil:
		product, err := s.products.GetByID(ctx, *in.ProductID)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				return nil, ErrProductNotFound
			}
			return nil, err
		}
		if product.SellerID != actor.ID {
			seller := product.SellerID
			d.AgainstUser = &seller
		}
	}

	if err := s.disputes.Create(ctx, d); err != nil {
		return nil, err
	}
	s.notify(ctx, domain.EventDisputeOpened, actor, d, "Dispute opened", d.Subject)
	return d, nil
}

func (s *DisputeService) List(ctx context.Context, actor Actor) ([]*domain.Dispute, error) {
	var filter *primitive.ObjectID
	if !actor.IsAdmin() {
		filter = &actor.ID
	}
	return s.disputes.List(ctx, filter)
}

func (s *DisputeService) Get(ctx context.Context, actor Actor, id primitive.ObjectID) (*domain.Dispute, error) {
	d, err := s.disputes.GetByID(ctx, id)
	if err != nil {
		return nil, disputeError(err)
	}
	if !d.Participant(actor.ID) && !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	return d, nil
}

func (s *DisputeService) AddMessage(ctx context.Context, actor Actor, id primitive.ObjectID, message string) (*domain.Dispute, error) {
	if message == "" {
		return nil, ErrDisputeMessage
	}
	d, err := s.open(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.disputes.AddMessage(ctx, d.ID, domain.DisputeMessage{SenderID: actor.ID, Message: message, SentAt: s.now()})
	if err != nil {
		return nil, disputeError(err)
	}
	s.notify(ctx, domain.EventDisputeUpdated, actor, updated, "New dispute message", preview(message))
	return updated, nil
}

func (s *DisputeService) AddEvidence(ctx context.Context, actor Actor, id primitive.ObjectID, in EvidenceInput) (*domain.Dispute, error) {
	if in.URL == "" {
		return nil, ErrEvidenceURL
	}
	d, err := s.open(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.disputes.AddEvidence(ctx, d.ID, domain.Evidence{URL: in.URL, Type: in.Type, UploadedAt: s.now()})
	if err != nil {
		return nil, disputeError(err)
	}
	s.notify(ctx, domain.EventDisputeUpdated, actor, updated, "Dispute evidence added", updated.Subject)
	return updated, nil
}

// UpdateStatus lets admins set any status. Participants may only close the dispute.
func (s *DisputeService) UpdateStatus(ctx context.Context, actor Actor, id primitive.ObjectID, status domain.DisputeStatus) (*domain.Dispute, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	d, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && status != domain.DisputeClosed {
		return nil, ErrNotAuthorized
	}
	if d.Status.IsTerminal() && !actor.IsAdmin() {
		return nil, ErrDisputeClosed
	}
	updated, err := s.disputes.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, disputeError(err)
	}
	if actor.IsAdmin() && !d.Participant(actor.ID) {
		s.trail.record(ctx, actor, "dispute.status", "dispute", id, "", map[string]any{
			"from": string(d.Status),
			"to":   string(updated.Status),
		})
	}
	s.notify(ctx, domain.EventDisputeUpdated, actor, updated, "Dispute "+string(status), updated.Subject)
	return updated, nil
}

func (s *DisputeService) Resolve(ctx context.Context, actor Actor, id primitive.ObjectID, in ResolveInput) (*domain.Dispute, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminOnly
	}
	updated, err := s.disputes.Resolve(ctx, id, domain.Resolution{
		ResolvedBy:  actor.ID,
		ActionTaken: in.ActionTaken,
		Notes:       in.Notes,
		ResolvedAt:  s.now(),
	})
	if err != nil {
		return nil, disputeError(err)
	}
	s.notify(ctx, domain.EventDisputeUpdated, actor, updated, "Dispute resolved", in.ActionTaken)
	return updated, nil
}

func (s *DisputeService) Assign(ctx context.Context, actor Actor, id, adminID primitive.ObjectID) (*domain.Dispute, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminOnly
	}
	updated, err := s.disputes.Assign(ctx, id, adminID)
	if err != nil {
		return nil, disputeError(err)
	}
	return updated, nil
}

// open returns a dispute the caller may still add to.
func (s *DisputeService) open(ctx context.Context, actor Actor, id primitive.ObjectID) (*domain.Dispute, error) {
	d, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if d.Status.IsTerminal() {
		return nil, ErrDisputeClosed
	}
	return d, nil
}

func (s *DisputeService) notify(ctx context.Context, typ domain.EventType, actor Actor, d *domain.Dispute, title, text string) {
	var recipients []primitive.ObjectID
	for _, id := range []*primitive.ObjectID{&d.RaisedBy, d.AgainstUser, d.AssignedTo} {
		if id != nil && *id != actor.ID {
			recipients = append(recipients, *id)
		}
	}
	if len(recipients) == 0 {
		return
	}
	s.emit.Emit(ctx, domain.EventPayload{
		EventType:  typ,
		EntityType: "dispute",
		EntityID:   d.ID.Hex(),
		ActorID:    actor.ID.Hex(),
		Recipients: hexes(recipients...),
		Title:      title,
		Text:       text,
		Link:       "/disputes/" + d.ID.Hex(),
	})
}

func disputeError(err error) error {
	if errors.Is(err, repository.ErrDisputeNotFound) {
		return ErrDisputeNotFound
	}
	return err
}
