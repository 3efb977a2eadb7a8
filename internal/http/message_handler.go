package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MessageService interface {
	Send(ctx context.Context, actor service.Actor, in service.SendMessageInput) (*domain.Message, error)
	Conversations(ctx context.Context, actor service.Actor) ([]domain.Conversation, error)
	Thread(ctx context.Context, actor service.Actor, productID, otherID primitive.ObjectID) ([]*domain.Message, error)
	MarkRead(ctx context.Context, actor service.Actor, id primitive.ObjectID) (*domain.Message, error)
}

type MessageHandler struct {
	messages MessageService
	log      *slog.Logger
}

func NewMessageHandler(messages MessageService, log *slog.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, log: log}
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req service.SendMessageInput
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	msg, err := h.messages.Send(r.Context(), actor, req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}

	convs, err := h.messages.Conversations(r.Context(), actor)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, convs)
}

func (h *MessageHandler) Thread(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	productID, ok := pathObjectID(w, r, h.log, "productId")
	if !ok {
		return
	}
	otherID, ok := pathObjectID(w, r, h.log, "userId")
	if !ok {
		return
	}

	msgs, err := h.messages.Thread(r.Context(), actor, productID, otherID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, msgs)
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, ok := pathObjectID(w, r, h.log, "messageId")
	if !ok {
		return
	}

	msg, err := h.messages.MarkRead(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, msg)
}
