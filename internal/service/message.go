package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const messagePreview = 80

var (
	ErrProductUnavailable = invalid("Product not available")
	ErrMessageSelf        = invalid("You cannot message yourself")
	ErrMessageEmpty       = invalid("Message content is required")
)

type SendMessageInput struct {
	ReceiverID primitive.ObjectID `json:"receiver_id" validate:"required"`
	ProductID  primitive.ObjectID `json:"product_id" validate:"required"`
	Content    string             `json:"content" validate:"required,max=2000"`
}

type MessageService struct {
	messages repository.MessageRepository
	products repository.ProductRepository
	users    repository.UserRepository
	emit     *Emitter
	log      *slog.Logger
}

func NewMessageService(
	messages repository.MessageRepository,
	products repository.ProductRepository,
	users repository.UserRepository,
	emit *Emitter,
	log *slog.Logger,
) *MessageService {
	return &MessageService{messages: messages, products: products, users: users, emit: emit, log: log}
}

func (s *MessageService) Send(ctx context.Context, actor Actor, in SendMessageInput) (*domain.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, ErrMessageEmpty
	}
	if in.ReceiverID == actor.ID {
		return nil, ErrMessageSelf
	}
	product, err := s.products.GetByID(ctx, in.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductUnavailable
		}
		return nil, err
	}
	if product.Status != domain.ProductActive {
		return nil, ErrProductUnavailable
	}
	if _, err := s.users.GetByID(ctx, in.ReceiverID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	msg := &domain.Message{
		SenderID:   actor.ID,
		ReceiverID: in.ReceiverID,
		ProductID:  in.ProductID,
		Content:    content,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	s.emit.Emit(ctx, domain.EventPayload{
		EventType:  domain.EventMessageSent,
		EntityType: "message",
		EntityID:   msg.ID.Hex(),
		ActorID:    actor.ID.Hex(),
		Recipients: hexes(in.ReceiverID),
		Title:      "New message about " + product.Title,
		Text:       preview(content),
		Link:       "/messages/" + product.ID.Hex() + "/" + actor.ID.Hex(),
	})
	return msg, nil
}

func (s *MessageService) Conversations(ctx context.Context, actor Actor) ([]domain.Conversation, error) {
	convs, err := s.messages.Conversations(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if convs == nil {
		convs = []domain.Conversation{}
	}
	return convs, nil
}

// Thread returns the conversation oldest first and marks what the caller received as read.
func (s *MessageService) Thread(ctx context.Context, actor Actor, productID, otherID primitive.ObjectID) ([]*domain.Message, error) {
	msgs, err := s.messages.Thread(ctx, actor.ID, otherID, productID)
	if err != nil {
		return nil, err
	}
	if _, err := s.messages.MarkThreadRead(ctx, actor.ID, otherID, productID); err != nil {
		s.log.WarnContext(ctx, "failed to mark thread read", "product_id", productID.Hex(), "error", err)
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	return msgs, nil
}

func (s *MessageService) MarkRead(ctx context.Context, actor Actor, id primitive.ObjectID) (*domain.Message, error) {
	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if msg.ReceiverID != actor.ID {
		return nil, ErrNotAuthorized
	}
	if msg.IsRead {
		return msg, nil
	}
	if err := s.messages.MarkRead(ctx, id); err != nil {
		return nil, err
	}
	msg.IsRead = true
	return msg, nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= messagePreview {
		return s
	}
	return string(r[:messagePreview]) + "..."
}
