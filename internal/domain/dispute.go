package domain

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DisputeStatus string

const (
	DisputeOpen             DisputeStatus = "open"
	DisputeUnderReview      DisputeStatus = "under_review"
	DisputeAwaitingResponse DisputeStatus = "awaiting_response"
	DisputeResolved         DisputeStatus = "resolved"
	DisputeClosed           DisputeStatus = "closed"
	DisputeEscalated        DisputeStatus = "escalated"
)

func (s DisputeStatus) Valid() bool {
	switch s {
	case DisputeOpen, DisputeUnderReview, DisputeAwaitingResponse, DisputeResolved, DisputeClosed, DisputeEscalated:
		return true
	}
	return false
}

func (s DisputeStatus) IsTerminal() bool {
	return s == DisputeResolved || s == DisputeClosed
}

var ErrDisputeTarget = errors.New("Dispute must be associated with an order or a product.")

type Evidence struct {
	URL        string    `json:"url" bson:"url"`
	Type       string    `json:"type" bson:"type"`
	UploadedAt time.Time `json:"uploaded_at" bson:"uploaded_at"`
}

type DisputeMessage struct {
	SenderID primitive.ObjectID `json:"sender_id" bson:"sender_id"`
	Message  string             `json:"message" bson:"message"`
	SentAt   time.Time          `json:"sent_at" bson:"sent_at"`
}

type Resolution struct {
	ResolvedBy  primitive.ObjectID `json:"resolved_by" bson:"resolved_by"`
	ActionTaken string             `json:"action_taken,omitempty" bson:"action_taken,omitempty"`
	Notes       string             `json:"notes,omitempty" bson:"notes,omitempty"`
	ResolvedAt  time.Time          `json:"resolved_at" bson:"resolved_at"`
}

type Dispute struct {
	ID          primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	OrderID     *primitive.ObjectID `json:"order_id,omitempty" bson:"order_id,omitempty"`
	ProductID   *primitive.ObjectID `json:"product_id,omitempty" bson:"product_id,omitempty"`
	RaisedBy    primitive.ObjectID  `json:"raised_by" bson:"raised_by"`
	AgainstUser *primitive.ObjectID `json:"against_user,omitempty" bson:"against_user,omitempty"`
	Subject     string              `json:"subject" bson:"subject"`
	Description string              `json:"description" bson:"description"`
	Status      DisputeStatus       `json:"status" bson:"status"`
	Evidence    []Evidence          `json:"evidence" bson:"evidence"`
	Messages    []DisputeMessage    `json:"messages" bson:"messages"`
	Resolution  *Resolution         `json:"resolution,omitempty" bson:"resolution,omitempty"`
	AssignedTo  *primitive.ObjectID `json:"assigned_to,omitempty" bson:"assigned_to,omitempty"`
	CreatedAt   time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at" bson:"updated_at"`
}

func (d *Dispute) Validate() error {
	if d.OrderID == nil && d.ProductID == nil {
		return ErrDisputeTarget
	}
	return nil
}

// Participant reports whether the user raised the dispute or is the party it is against.
func (d *Dispute) Participant(userID primitive.ObjectID) bool {
	if d.RaisedBy == userID {
		return true
	}
	return d.AgainstUser != nil && *d.AgainstUser == userID
}

// Counterparty returns the other side of the dispute for the given user, if any.
func (d *Dispute) Counterparty(userID primitive.ObjectID) *primitive.ObjectID {
	if d.RaisedBy == userID {
		return d.AgainstUser
	}
	raised := d.RaisedBy
	return &raised
}
