package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EntityRef struct {
	Type string             `json:"type" bson:"type"`
	ID   primitive.ObjectID `json:"id" bson:"id"`
}

type Notification struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID        primitive.ObjectID `json:"user_id" bson:"user_id"`
	Type          string             `json:"type" bson:"type"`
	Title         string             `json:"title" bson:"title"`
	Text          string             `json:"text" bson:"text"`
	RelatedEntity *EntityRef         `json:"related_entity,omitempty" bson:"related_entity,omitempty"`
	IsRead        bool               `json:"is_read" bson:"is_read"`
	ReadAt        *time.Time         `json:"read_at,omitempty" bson:"read_at,omitempty"`
	Link          string             `json:"link,omitempty" bson:"link,omitempty"`
	SourceEvent   string             `json:"-" bson:"source_event,omitempty"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" bson:"updated_at"`
}
