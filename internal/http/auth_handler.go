package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ecofinds/marketplace/internal/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (primitive.ObjectID, error)
	VerifyPhone(ctx context.Context, userID, otp string) error
	VerifyEmail(ctx context.Context, userID string) error
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	ResendOTP(ctx context.Context, userID primitive.ObjectID) error
	ResendEmail(ctx context.Context, userID primitive.ObjectID) error
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, email, otp, newPassword string) error
}

type AuthHandler struct {
	auth AuthService
	log  *slog.Logger
}

func NewAuthHandler(auth AuthService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, log: log}
}

type RegisterResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyPhoneRequest struct {
	UserID string `json:"userId"`
	OTP    string `json:"otp"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	id, err := h.auth.Register(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, RegisterResponse{
		Message: "User registered. Please verify your phone and email.",
		UserID:  id.Hex(),
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) VerifyPhone(w http.ResponseWriter, r *http.Request) {
	var req VerifyPhoneRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	if err := h.auth.VerifyPhone(r.Context(), req.UserID, req.OTP); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondMessage(w, http.StatusOK, "Phone verified successfully.")
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.VerifyEmail(r.Context(), r.URL.Query().Get("userId")); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondMessage(w, http.StatusOK, "Email verified successfully.")
}

func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	if err := h.auth.ResendOTP(r.Context(), actor.ID); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondMessage(w, http.StatusOK, "OTP resent.")
}

func (h *AuthHandler) ResendEmail(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	if err := h.auth.ResendEmail(r.Context(), actor.ID); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondMessage(w, http.StatusOK, "Verification email resent.")
}

func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	msg, err := h.auth.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondMessage(w, http.StatusOK, msg)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	if err := h.auth.ResetPassword(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondMessage(w, http.StatusOK, "Password reset successful.")
}
