package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID            primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Name          string               `json:"name" bson:"name"`
	Email         string               `json:"email" bson:"email"`
	Phone         string               `json:"phone" bson:"phone"`
	PasswordHash  string               `json:"-" bson:"password"`
	Role          Role                 `json:"role" bson:"role"`
	IsVerified    bool                 `json:"is_verified" bson:"is_verified"`
	EmailVerified bool                 `json:"email_verified" bson:"email_verified"`
	PhoneVerified bool                 `json:"phone_verified" bson:"phone_verified"`
	OTP           string               `json:"-" bson:"otp,omitempty"`
	OTPExpiresAt  *time.Time           `json:"-" bson:"otp_expires_at,omitempty"`
	Bio           string               `json:"bio,omitempty" bson:"bio,omitempty"`
	AvatarURL     string               `json:"avatar_url,omitempty" bson:"avatar_url,omitempty"`
	Location      string               `json:"location,omitempty" bson:"location,omitempty"`
	RatingAvg     float64              `json:"rating_avg" bson:"rating_avg"`
	RatingCount   int                  `json:"rating_count" bson:"rating_count"`
	SavedProducts []primitive.ObjectID `json:"saved_products" bson:"saved_products"`
	CreatedAt     time.Time            `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at" bson:"updated_at"`
}

// RefreshVerified keeps IsVerified in step with the two channel flags.
func (u *User) RefreshVerified() {
	u.IsVerified = u.EmailVerified && u.PhoneVerified
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// OTPValid reports whether code matches the stored one-time password and it has not expired.
func (u *User) OTPValid(code string, now time.Time) bool {
	if u.OTP == "" || u.OTPExpiresAt == nil {
		return false
	}
	return u.OTP == code && !now.After(*u.OTPExpiresAt)
}

// UserSummary is the public projection of a user embedded in other responses.
type UserSummary struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name"`
	Email string             `json:"email"`
	Phone string             `json:"phone"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone}
}

// ProfileUpdate carries the user fields a profile edit may change. Nil fields are left untouched.
type ProfileUpdate struct {
	Name      *string `json:"name" validate:"omitempty,min=1,max=100"`
	Bio       *string `json:"bio" validate:"omitempty,max=500"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url"`
	Location  *string `json:"location" validate:"omitempty,max=200"`
}

func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Bio == nil && p.AvatarURL == nil && p.Location == nil
}
