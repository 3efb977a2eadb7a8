package domain

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EventType string

const (
	EventOrderPlaced        EventType = "order.placed"
	EventOrderStatusChanged EventType = "order.status_changed"
	EventBidPlaced          EventType = "bid.placed"
	EventBidOutbid          EventType = "bid.outbid"
	EventAuctionWon         EventType = "auction.won"
	EventMessageSent        EventType = "message.sent"
	EventReviewCreated      EventType = "review.created"
	EventDisputeOpened      EventType = "dispute.opened"
	EventDisputeUpdated     EventType = "dispute.updated"
)

// OutboxEvent is a domain event stored next to the state change that produced it.
type OutboxEvent struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	AggregateID string             `bson:"aggregate_id"`
	EventType   EventType          `bson:"event_type"`
	Payload     []byte             `bson:"payload"`
	Processed   bool               `bson:"processed"`
	CreatedAt   time.Time          `bson:"created_at"`
	ProcessedAt *time.Time         `bson:"processed_at,omitempty"`
}

// EventPayload is the JSON body published for every event type.
// Recipients lists the users a notification is addressed to.
type EventPayload struct {
	EventID    string    `json:"event_id"`
	EventType  EventType `json:"event_type"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	ActorID    string    `json:"actor_id,omitempty"`
	Recipients []string  `json:"recipients"`
	Title      string    `json:"title"`
	Text       string    `json:"text"`
	Link       string    `json:"link,omitempty"`
	Amount     float64   `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewOutboxEvent(p EventPayload) (*OutboxEvent, error) {
	if p.OccurredAt.IsZero() {
		p.OccurredAt = time.Now()
	}
	id := primitive.NewObjectID()
	p.EventID = id.Hex()
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		ID:          id,
		AggregateID: p.EntityID,
		EventType:   p.EventType,
		Payload:     body,
		CreatedAt:   p.OccurredAt,
	}, nil
}
