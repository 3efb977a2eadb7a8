package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderPending       OrderStatus = "pending"
	OrderProcessing    OrderStatus = "processing"
	OrderShipped       OrderStatus = "shipped"
	OrderDelivered     OrderStatus = "delivered"
	OrderCancelled     OrderStatus = "cancelled"
	OrderReturned      OrderStatus = "returned"
	OrderPaymentFailed OrderStatus = "payment_failed"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderCancelled, OrderPaymentFailed},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered, OrderReturned},
	OrderDelivered:  {OrderReturned},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled, OrderReturned, OrderPaymentFailed:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

func (s OrderStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether an order may move from one status to another.
func CanTransitionTo(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type OrderItem struct {
	ProductID     primitive.ObjectID `json:"product_id" bson:"product_id"`
	Quantity      int                `json:"quantity" bson:"quantity"`
	PurchasePrice float64            `json:"purchase_price" bson:"purchase_price"`
	TitleSnapshot string             `json:"title_snapshot" bson:"title_snapshot"`
	ImageSnapshot string             `json:"image_snapshot,omitempty" bson:"image_snapshot,omitempty"`
}

type ShippingAddress struct {
	Address    string `json:"address" bson:"address" validate:"required"`
	City       string `json:"city" bson:"city" validate:"required"`
	PostalCode string `json:"postal_code" bson:"postal_code" validate:"required"`
	Country    string `json:"country" bson:"country" validate:"required"`
}

type PaymentDetails struct {
	Method        string        `json:"method,omitempty" bson:"method,omitempty"`
	TransactionID string        `json:"transaction_id,omitempty" bson:"transaction_id,omitempty"`
	Status        PaymentStatus `json:"payment_status" bson:"payment_status"`
}

type Order struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	BuyerID           primitive.ObjectID `json:"buyer_id" bson:"buyer_id"`
	SellerID          primitive.ObjectID `json:"seller_id" bson:"seller_id"`
	Items             []OrderItem        `json:"items" bson:"items"`
	ShippingAddress   *ShippingAddress   `json:"shipping_address,omitempty" bson:"shipping_address,omitempty"`
	ShippingMethod    string             `json:"shipping_method,omitempty" bson:"shipping_method,omitempty"`
	ShippingCost      float64            `json:"shipping_cost" bson:"shipping_cost"`
	TotalAmount       float64            `json:"total_amount" bson:"total_amount"`
	Status            OrderStatus        `json:"status" bson:"status"`
	Payment           PaymentDetails     `json:"payment_details" bson:"payment_details"`
	TrackingNumber    string             `json:"tracking_number,omitempty" bson:"tracking_number,omitempty"`
	DeliveredAt       *time.Time         `json:"delivered_at,omitempty" bson:"delivered_at,omitempty"`
	IdempotencyKey    string             `json:"-" bson:"idempotency_key,omitempty"`
	BuyerRatingGiven  bool               `json:"buyer_rating_given" bson:"buyer_rating_given"`
	SellerRatingGiven bool               `json:"seller_rating_given" bson:"seller_rating_given"`
	PurchasedAt       time.Time          `json:"purchased_at" bson:"purchased_at"`
	CreatedAt         time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" bson:"updated_at"`
}

func (o *Order) Involves(userID primitive.ObjectID) bool {
	return o.BuyerID == userID || o.SellerID == userID
}
