package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Rating struct {
	ID         primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	ReviewerID primitive.ObjectID  `json:"reviewer_id" bson:"reviewer_id"`
	RevieweeID primitive.ObjectID  `json:"reviewee_id" bson:"reviewee_id"`
	OrderID    *primitive.ObjectID `json:"order_id,omitempty" bson:"order_id,omitempty"`
	ProductID  *primitive.ObjectID `json:"product_id,omitempty" bson:"product_id,omitempty"`
	Rating     int                 `json:"rating" bson:"rating"`
	Comment    string              `json:"comment,omitempty" bson:"comment,omitempty"`
	CreatedAt  time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at" bson:"updated_at"`
}

// RatingStats is the aggregate stored on the reviewee.
type RatingStats struct {
	Average float64
	Count   int
}
