package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalid
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindTooManyRequests
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid_argument"
	case KindUnauthorized:
		return "unauthenticated"
	case KindForbidden:
		return "permission_denied"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "already_exists"
	case KindTooManyRequests:
		return "rate_limit_exceeded"
	default:
		return "internal_error"
	}
}

// Error is an error whose Message is safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func invalid(message string) *Error      { return newError(KindInvalid, message) }
func notFound(message string) *Error     { return newError(KindNotFound, message) }
func forbidden(message string) *Error    { return newError(KindForbidden, message) }
func conflict(message string) *Error     { return newError(KindConflict, message) }
func unauthorized(message string) *Error { return newError(KindUnauthorized, message) }

// KindOf returns the kind of err, KindInternal for anything that is not an *Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

var (
	ErrNotAuthorized = forbidden("Not authorized")
	ErrAdminOnly     = forbidden("Admin access required")
	ErrInvalidID     = invalid("Invalid id")

	ErrUserNotFound         = notFound("User not found.")
	ErrProductNotFound      = notFound("Product not found")
	ErrOrderNotFound        = notFound("Order not found")
	ErrMessageNotFound      = notFound("Message not found")
	ErrDisputeNotFound      = notFound("Dispute not found")
	ErrComplaintNotFound    = notFound("Complaint not found")
	ErrNotificationNotFound = notFound("Notification not found")
	ErrItemNotFound         = notFound("Item not found in cart")

	ErrEmptyCart      = invalid("Cart is empty")
	ErrNotEnoughStock = invalid("Not enough items in stock")
)
