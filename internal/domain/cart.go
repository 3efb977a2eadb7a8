package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Cart struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    primitive.ObjectID `json:"user_id" bson:"user_id"`
	Items     []CartItem         `json:"items" bson:"items"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

type CartItem struct {
	ProductID     primitive.ObjectID `json:"product_id" bson:"product_id"`
	Quantity      int                `json:"quantity" bson:"quantity"`
	AddedAt       time.Time          `json:"added_at" bson:"added_at"`
	PriceSnapshot float64            `json:"price_snapshot" bson:"price_snapshot"`
	TitleSnapshot string             `json:"title_snapshot" bson:"title_snapshot"`
	ImageSnapshot string             `json:"image_snapshot,omitempty" bson:"image_snapshot,omitempty"`
}

func (c *Cart) Find(productID primitive.ObjectID) (int, bool) {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i, true
		}
	}
	return -1, false
}

func (c *Cart) Total() float64 {
	var total float64
	for _, item := range c.Items {
		total += item.PriceSnapshot * float64(item.Quantity)
	}
	return total
}
