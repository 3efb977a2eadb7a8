package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/imagekit"
	"github.com/ecofinds/marketplace/internal/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationService interface {
	List(ctx context.Context, actor service.Actor) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, actor service.Actor, id primitive.ObjectID) error
	MarkAllRead(ctx context.Context, actor service.Actor) (int64, error)
	Delete(ctx context.Context, actor service.Actor, id primitive.ObjectID) error
}

type NotificationHandler struct {
	notifications NotificationService
	log           *slog.Logger
}

func NewNotificationHandler(notifications NotificationService, log *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, log: log}
}

type MarkAllReadResponse struct {
	Message string `json:"message"`
	Updated int64  `json:"updated"`
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}

	list, err := h.notifications.List(r.Context(), actor)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	if list == nil {
		list = []*domain.Notification{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, ok := pathObjectID(w, r, h.log, "id")
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(r.Context(), actor, id); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondMessage(w, http.StatusOK, "Notification marked as read")
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}

	n, err := h.notifications.MarkAllRead(r.Context(), actor)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, MarkAllReadResponse{Message: "All notifications marked as read", Updated: n})
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, ok := pathObjectID(w, r, h.log, "id")
	if !ok {
		return
	}

	if err := h.notifications.Delete(r.Context(), actor, id); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondMessage(w, http.StatusOK, "Notification deleted")
}

// UploadSigner issues client-side upload credentials.
type UploadSigner interface {
	AuthParams() (*imagekit.AuthParams, error)
}

type UploadHandler struct {
	signer UploadSigner
	log    *slog.Logger
}

func NewUploadHandler(signer UploadSigner, log *slog.Logger) *UploadHandler {
	return &UploadHandler{signer: signer, log: log}
}

func (h *UploadHandler) ImageKitAuth(w http.ResponseWriter, r *http.Request) {
	params, err := h.signer.AuthParams()
	if err != nil {
		h.log.ErrorContext(r.Context(), "imagekit auth failed", "error", err)
		respondError(w, http.StatusInternalServerError, service.KindInternal.String(), "Image upload is not configured")
		return
	}
	respondJSON(w, http.StatusOK, params)
}
