package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ecofinds/marketplace/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrCartNotFound         = errors.New("cart not found")
	ErrItemNotFound         = errors.New("item not found in cart")
	ErrOrderNotFound        = errors.New("order not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrDisputeNotFound      = errors.New("dispute not found")
	ErrComplaintNotFound    = errors.New("complaint not found")
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrDuplicate is returned when a write violates a unique index.
	ErrDuplicate = errors.New("duplicate key")
	// ErrBidRejected is returned when the conditional bid update matched no document.
	ErrBidRejected = errors.New("bid rejected")
	// ErrInsufficientStock is returned when a stock decrement would go below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrStatusChanged is returned when a conditional status update lost a race.
	ErrStatusChanged = errors.New("status changed concurrently")
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmailOrPhone(ctx context.Context, email, phone string) (bool, error)
	MarkPhoneVerified(ctx context.Context, id primitive.ObjectID, otp string) error
	MarkEmailVerified(ctx context.Context, id primitive.ObjectID) error
	SetPassword(ctx context.Context, id primitive.ObjectID, otp, passwordHash string) error
	UpdateProfile(ctx context.Context, id primitive.ObjectID, update domain.ProfileUpdate) (*domain.User, error)
	SetOTP(ctx context.Context, id primitive.ObjectID, otp string, expiresAt time.Time) error
	ToggleSavedProduct(ctx context.Context, userID, productID primitive.ObjectID) (bool, error)
	SetRating(ctx context.Context, id primitive.ObjectID, stats domain.RatingStats) error
}

// ProductFilter selects products for listing pages.
type ProductFilter struct {
	Status    domain.ProductStatus
	NotStatus domain.ProductStatus
	SellerID  *primitive.ObjectID
	Category  string
	Condition string
	MinPrice  *float64
	MaxPrice  *float64
	Search    string
	// Near is [lng, lat]; RadiusKm applies when Near is set.
	Near     []float64
	RadiusKm float64
	Sort     string
	Page     int
	Limit    int
}

type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Product, error)
	GetMany(ctx context.Context, ids []primitive.ObjectID) ([]*domain.Product, error)
	Update(ctx context.Context, product *domain.Product) error
	SetStatus(ctx context.Context, id primitive.ObjectID, status domain.ProductStatus) error
	IncrementViews(ctx context.Context, id primitive.ObjectID) error
	List(ctx context.Context, filter ProductFilter) ([]*domain.Product, int64, error)
	PlaceBid(ctx context.Context, id primitive.ObjectID, bid domain.Bid) (*domain.Product, error)
	DecrementStock(ctx context.Context, id primitive.ObjectID, quantity int) (*domain.Product, error)
	RestoreStock(ctx context.Context, id primitive.ObjectID, quantity int) error
	ListExpiredAuctions(ctx context.Context, now time.Time, limit int) ([]*domain.Product, error)
	CloseAuction(ctx context.Context, id primitive.ObjectID, status domain.ProductStatus) error
}

type CartRepository interface {
	GetCart(ctx context.Context, userID primitive.ObjectID) (*domain.Cart, error)
	UpsertCart(ctx context.Context, cart *domain.Cart) error
	AddItem(ctx context.Context, userID primitive.ObjectID, item domain.CartItem) error
	UpdateItemQuantity(ctx context.Context, userID, productID primitive.ObjectID, quantity int) error
	RemoveItem(ctx context.Context, userID, productID primitive.ObjectID) error
	DeleteCart(ctx context.Context, userID primitive.ObjectID) error
}

type OrderRepository interface {
	CreateMany(ctx context.Context, orders []*domain.Order) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID primitive.ObjectID) ([]*domain.Order, error)
	ListBySeller(ctx context.Context, sellerID primitive.ObjectID) ([]*domain.Order, error)
	ListByIdempotencyKey(ctx context.Context, buyerID primitive.ObjectID, key string) ([]*domain.Order, error)
	DeleteByIDs(ctx context.Context, ids []primitive.ObjectID) error
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to domain.OrderStatus, tracking string) (*domain.Order, error)
}

type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Message, error)
	Conversations(ctx context.Context, userID primitive.ObjectID) ([]domain.Conversation, error)
	Thread(ctx context.Context, userID, otherID, productID primitive.ObjectID) ([]*domain.Message, error)
	MarkThreadRead(ctx context.Context, receiverID, senderID, productID primitive.ObjectID) (int64, error)
	MarkRead(ctx context.Context, id primitive.ObjectID) error
}

type RatingRepository interface {
	Create(ctx context.Context, rating *domain.Rating) error
	ListByReviewee(ctx context.Context, revieweeID primitive.ObjectID) ([]*domain.Rating, error)
	Stats(ctx context.Context, revieweeID primitive.ObjectID) (domain.RatingStats, error)
}

type DisputeRepository interface {
	Create(ctx context.Context, dispute *domain.Dispute) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Dispute, error)
	// List returns every dispute when userID is nil, otherwise those the user raised or is named in.
	List(ctx context.Context, userID *primitive.ObjectID) ([]*domain.Dispute, error)
	AddMessage(ctx context.Context, id primitive.ObjectID, msg domain.DisputeMessage) (*domain.Dispute, error)
	AddEvidence(ctx context.Context, id primitive.ObjectID, evidence domain.Evidence) (*domain.Dispute, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status domain.DisputeStatus) (*domain.Dispute, error)
	Resolve(ctx context.Context, id primitive.ObjectID, resolution domain.Resolution) (*domain.Dispute, error)
	Assign(ctx context.Context, id, adminID primitive.ObjectID) (*domain.Dispute, error)
}

// ComplaintUpdate carries the admin-editable complaint fields. Empty strings leave a field unchanged.
type ComplaintUpdate struct {
	Status            domain.ComplaintStatus
	AdminNotes        string
	ResolutionDetails string
	AssignedTo        *primitive.ObjectID
}

type ComplaintRepository interface {
	Create(ctx context.Context, complaint *domain.Complaint) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Complaint, error)
	ListByComplainant(ctx context.Context, userID primitive.ObjectID) ([]*domain.Complaint, error)
	List(ctx context.Context, status domain.ComplaintStatus) ([]*domain.Complaint, error)
	Update(ctx context.Context, id primitive.ObjectID, update ComplaintUpdate) (*domain.Complaint, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID, limit int) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, id primitive.ObjectID) error
	MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type OutboxRepository interface {
	SaveEvents(ctx context.Context, events ...*domain.OutboxEvent) error
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id primitive.ObjectID) error
}

func isDuplicate(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// isIndexNotFound matches the server errors for dropping an index or collection that does not exist.
func isIndexNotFound(err error) bool {
	var cmdErr mongo.CommandError
	return errors.As(err, &cmdErr) && (cmdErr.Code == 26 || cmdErr.Code == 27)
}
