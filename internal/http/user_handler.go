package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserService interface {
	GetProfile(ctx context.Context, actor service.Actor) (*service.Profile, error)
	UpdateProfile(ctx context.Context, actor service.Actor, update domain.ProfileUpdate) (*domain.User, error)
	Reviews(ctx context.Context, userID primitive.ObjectID) ([]*domain.Rating, error)
	AddReview(ctx context.Context, actor service.Actor, revieweeID primitive.ObjectID, in service.ReviewInput) ([]*domain.Rating, error)
}

type UserHandler struct {
	users UserService
	log   *slog.Logger
}

func NewUserHandler(users UserService, log *slog.Logger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

type ProfileUpdateResponse struct {
	Message string       `json:"message"`
	User    *domain.User `json:"user"`
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}

	profile, err := h.users.GetProfile(r.Context(), actor)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req domain.ProfileUpdate
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), actor, req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, ProfileUpdateResponse{Message: "Profile updated successfully", User: user})
}

func (h *UserHandler) Reviews(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathObjectID(w, r, h.log, "userId")
	if !ok {
		return
	}

	reviews, err := h.users.Reviews(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, reviews)
}

func (h *UserHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	userID, ok := pathObjectID(w, r, h.log, "userId")
	if !ok {
		return
	}
	var req service.ReviewInput
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	reviews, err := h.users.AddReview(r.Context(), actor, userID, req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, reviews)
}
