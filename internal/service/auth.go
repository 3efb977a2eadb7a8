package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ecofinds/marketplace/internal/audit"
	"github.com/ecofinds/marketplace/internal/cache"
	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/notify"
	"github.com/ecofinds/marketplace/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

const (
	otpTTL          = 10 * time.Minute
	resendCooldown  = 60 * time.Second
	loginAttempts   = 5
	loginWindow     = 15 * time.Minute
	resetMessage    = "If an account exists for this email, an OTP has been sent."
	bcryptCost      = 10
	minPasswordSize = 8
)

var (
	ErrAllFieldsRequired  = invalid("All fields are required.")
	ErrUserExists         = conflict("User already exists.")
	ErrInvalidRequest     = invalid("Invalid request.")
	ErrInvalidOTP         = invalid("Invalid or expired OTP.")
	ErrInvalidLink        = invalid("Invalid link.")
	ErrInvalidCredentials = unauthorized("Invalid credentials.")
	ErrNotVerified        = forbidden("Please verify your phone and email.")
	ErrPhoneVerified      = invalid("Phone already verified.")
	ErrEmailVerified      = invalid("Email already verified.")
	ErrEmailRequired      = invalid("Email is required.")
	ErrResendCooldown     = newError(KindTooManyRequests, "Please wait before requesting another code.")
	ErrTooManyAttempts    = newError(KindTooManyRequests, "Too many login attempts. Try again later.")
	ErrPasswordTooShort   = invalid(fmt.Sprintf("Password must be at least %d characters.", minPasswordSize))
)

type RegisterInput struct {
	Name     string `json:"name" validate:"omitempty,max=100"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token string             `json:"token"`
	User  domain.UserSummary `json:"user"`
}

type AuthConfig struct {
	FrontendURL string
}

type AuthService struct {
	users    repository.UserRepository
	guard    cache.Guard
	limiter  cache.Limiter
	mailer   notify.Mailer
	texter   notify.Texter
	recorder audit.Recorder
	tokens   *TokenIssuer
	cfg      AuthConfig
	log      *slog.Logger
	now      func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	guard cache.Guard,
	limiter cache.Limiter,
	mailer notify.Mailer,
	texter notify.Texter,
	recorder audit.Recorder,
	tokens *TokenIssuer,
	cfg AuthConfig,
	log *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		guard:    guard,
		limiter:  limiter,
		mailer:   mailer,
		texter:   texter,
		recorder: recorder,
		tokens:   tokens,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (primitive.ObjectID, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Name == "" || in.Email == "" || in.Phone == "" || in.Password == "" {
		return primitive.NilObjectID, ErrAllFieldsRequired
	}
	if len(in.Password) < minPasswordSize {
		return primitive.NilObjectID, ErrPasswordTooShort
	}

	exists, err := s.users.ExistsByEmailOrPhone(ctx, in.Email, in.Phone)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if exists {
		return primitive.NilObjectID, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("failed to hash password: %w", err)
	}
	otp, err := generateOTP()
	if err != nil {
		return primitive.NilObjectID, err
	}
	expires := s.now().Add(otpTTL)

	user := &domain.User{
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		OTP:          otp,
		OTPExpiresAt: &expires,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return primitive.NilObjectID, ErrUserExists
		}
		return primitive.NilObjectID, err
	}

	s.sendOTP(ctx, user.Phone, otp)
	s.sendVerificationEmail(ctx, user)
	s.audit(ctx, "auth.register", user.ID.Hex(), nil)
	return user.ID, nil
}

func (s *AuthService) VerifyPhone(ctx context.Context, userID, otp string) error {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil || otp == "" {
		return ErrInvalidRequest
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidRequest
		}
		return err
	}
	if user.OTP == "" || user.OTPExpiresAt == nil {
		return ErrInvalidRequest
	}
	if !user.OTPValid(otp, s.now()) {
		return ErrInvalidOTP
	}

	if err := s.users.MarkPhoneVerified(ctx, user.ID, otp); err != nil {
		return otpWriteError(err)
	}
	s.audit(ctx, "auth.phone_verified", user.ID.Hex(), nil)
	return nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, userID string) error {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return ErrInvalidLink
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidLink
		}
		return err
	}

	if err := s.users.MarkEmailVerified(ctx, user.ID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidLink
		}
		return err
	}
	s.audit(ctx, "auth.email_verified", user.ID.Hex(), nil)
	return nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	allowed, err := s.limiter.Hit(ctx, "login:"+email, loginAttempts, loginWindow)
	if err != nil {
		// The limiter is best effort; Redis being down must not block logins.
		s.log.WarnContext(ctx, "login limiter unavailable", "error", err)
		allowed = true
	}
	if !allowed {
		return nil, ErrTooManyAttempts
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.audit(ctx, "auth.login_failed", "", map[string]any{"email": email})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.audit(ctx, "auth.login_failed", user.ID.Hex(), nil)
		return nil, ErrInvalidCredentials
	}
	if !user.IsVerified {
		return nil, ErrNotVerified
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Reset(ctx, "login:"+email); err != nil {
		s.log.WarnContext(ctx, "failed to reset login limiter", "error", err)
	}
	s.audit(ctx, "auth.login", user.ID.Hex(), nil)
	return &LoginResult{Token: token, User: user.Summary()}, nil
}

func (s *AuthService) ResendOTP(ctx context.Context, userID primitive.ObjectID) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.PhoneVerified {
		return ErrPhoneVerified
	}
	if err := s.cooldown(ctx, "resend:sms:"+userID.Hex()); err != nil {
		return err
	}

	otp, err := generateOTP()
	if err != nil {
		return err
	}
	if err := s.users.SetOTP(ctx, user.ID, otp, s.now().Add(otpTTL)); err != nil {
		return err
	}
	s.sendOTP(ctx, user.Phone, otp)
	return nil
}

func (s *AuthService) ResendEmail(ctx context.Context, userID primitive.ObjectID) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return ErrEmailVerified
	}
	if err := s.cooldown(ctx, "resend:email:"+userID.Hex()); err != nil {
		return err
	}
	s.sendVerificationEmail(ctx, user)
	return nil
}

// RequestPasswordReset always reports the same message so callers cannot tell which accounts exist.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrEmailRequired
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return resetMessage, nil
		}
		return "", err
	}

	otp, err := generateOTP()
	if err != nil {
		return "", err
	}
	if err := s.users.SetOTP(ctx, user.ID, otp, s.now().Add(otpTTL)); err != nil {
		return "", err
	}

	s.deliverEmail(ctx, notify.Email{
		To:      user.Email,
		Subject: "EcoFinds Password Reset OTP",
		Text:    fmt.Sprintf("Your OTP for password reset is: %s", otp),
		HTML:    fmt.Sprintf("<p>Your OTP for password reset is: <b>%s</b></p>", otp),
	})
	if user.Phone != "" {
		s.deliverSMS(ctx, user.Phone, fmt.Sprintf("Your EcoFinds password reset OTP is: %s", otp))
	}
	s.audit(ctx, "auth.password_reset_requested", user.ID.Hex(), nil)
	return resetMessage, nil
}

func (s *AuthService) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || otp == "" || newPassword == "" {
		return ErrAllFieldsRequired
	}
	if len(newPassword) < minPasswordSize {
		return ErrPasswordTooShort
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidRequest
		}
		return err
	}
	if user.OTP == "" || user.OTPExpiresAt == nil {
		return ErrInvalidRequest
	}
	if !user.OTPValid(otp, s.now()) {
		return ErrInvalidOTP
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.SetPassword(ctx, user.ID, otp, string(hash)); err != nil {
		return otpWriteError(err)
	}
	s.audit(ctx, "auth.password_reset", user.ID.Hex(), nil)
	return nil
}

// otpWriteError maps a failed OTP-consuming write. ErrStatusChanged means the
// code was used or replaced after it was checked.
func otpWriteError(err error) error {
	switch {
	case errors.Is(err, repository.ErrStatusChanged):
		return ErrInvalidOTP
	case errors.Is(err, repository.ErrUserNotFound):
		return ErrInvalidRequest
	}
	return err
}

func (s *AuthService) getUser(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) cooldown(ctx context.Context, key string) error {
	ok, err := s.guard.Acquire(ctx, key, resendCooldown)
	if err != nil {
		s.log.WarnContext(ctx, "resend cooldown unavailable", "key", key, "error", err)
		return nil
	}
	if !ok {
		return ErrResendCooldown
	}
	return nil
}

func (s *AuthService) verificationLink(userID primitive.ObjectID) string {
	return fmt.Sprintf("%s/verify-email?userId=%s", s.cfg.FrontendURL, userID.Hex())
}

func (s *AuthService) sendOTP(ctx context.Context, phone, otp string) {
	s.deliverSMS(ctx, phone, fmt.Sprintf("Your EcoFinds OTP is: %s", otp))
}

func (s *AuthService) sendVerificationEmail(ctx context.Context, user *domain.User) {
	link := s.verificationLink(user.ID)
	s.deliverEmail(ctx, notify.Email{
		To:      user.Email,
		Subject: "EcoFinds Email Verification",
		Text:    fmt.Sprintf("Hi %s, open %s to verify your email for EcoFinds.", user.Name, link),
		HTML:    fmt.Sprintf(`<p>Hi %s,</p><p>Click <a href="%s">here</a> to verify your email for EcoFinds.</p>`, user.Name, link),
	})
}

// Delivery failures never fail the request that triggered them.
func (s *AuthService) deliverEmail(ctx context.Context, email notify.Email) {
	if err := s.mailer.SendEmail(ctx, email); err != nil {
		s.log.ErrorContext(ctx, "failed to send email", "to", email.To, "subject", email.Subject, "error", err)
	}
}

func (s *AuthService) deliverSMS(ctx context.Context, to, body string) {
	if err := s.texter.SendSMS(ctx, to, body); err != nil {
		s.log.ErrorContext(ctx, "failed to send sms", "to", to, "error", err)
	}
}

func (s *AuthService) audit(ctx context.Context, action, userID string, details map[string]any) {
	entry := domain.AuditEntry{
		EntityType:    "user",
		EntityID:      userID,
		Action:        action,
		ChangedBy:     userID,
		ChangedByType: domain.ActorUser,
		Details:       details,
	}
	if err := s.recorder.RecordAudit(ctx, entry); err != nil {
		s.log.ErrorContext(ctx, "failed to record audit entry", "action", action, "error", err)
	}
}

// generateOTP returns a uniformly random six digit code.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
