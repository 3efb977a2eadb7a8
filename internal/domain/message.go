package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Message struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SenderID   primitive.ObjectID `json:"sender_id" bson:"sender_id"`
	ReceiverID primitive.ObjectID `json:"receiver_id" bson:"receiver_id"`
	ProductID  primitive.ObjectID `json:"product_id" bson:"product_id"`
	Content    string             `json:"content" bson:"content"`
	IsRead     bool               `json:"is_read" bson:"is_read"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at" bson:"updated_at"`
}

// Conversation groups the messages exchanged about one product with one other user.
type Conversation struct {
	ProductID   primitive.ObjectID `json:"product_id" bson:"product_id"`
	OtherUserID primitive.ObjectID `json:"other_user_id" bson:"other_user_id"`
	LastMessage Message            `json:"last_message" bson:"last_message"`
	UnreadCount int                `json:"unread_count" bson:"unread_count"`
}
