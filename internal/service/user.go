package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrSelfReview      = invalid("You cannot review yourself")
	ErrAlreadyReviewed = invalid("You have already reviewed this user")
	ErrRatingRange     = invalid("Rating must be between 1 and 5")
	ErrNothingToUpdate = invalid("No updatable fields provided")
)

// Profile is the caller's own account with saved products expanded.
type Profile struct {
	*domain.User
	SavedProducts []*domain.Product `json:"saved_products"`
}

type ReviewInput struct {
	Rating    int                 `json:"rating" validate:"required,min=1,max=5"`
	Comment   string              `json:"comment" validate:"max=1000"`
	OrderID   *primitive.ObjectID `json:"order_id"`
	ProductID *primitive.ObjectID `json:"product_id"`
}

type UserService struct {
	users    repository.UserRepository
	products repository.ProductRepository
	ratings  repository.RatingRepository
	emit     *Emitter
	log      *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	products repository.ProductRepository,
	ratings repository.RatingRepository,
	emit *Emitter,
	log *slog.Logger,
) *UserService {
	return &UserService{users: users, products: products, ratings: ratings, emit: emit, log: log}
}

func (s *UserService) GetProfile(ctx context.Context, actor Actor) (*Profile, error) {
	user, err := s.user(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	saved, err := s.products.GetMany(ctx, user.SavedProducts)
	if err != nil {
		return nil, err
	}
	visible := make([]*domain.Product, 0, len(saved))
	for _, p := range saved {
		if p.Status != domain.ProductDeleted {
			visible = append(visible, p)
		}
	}
	return &Profile{User: user, SavedProducts: visible}, nil
}

// UpdateProfile changes the public profile fields. Credentials, role and
// verification state are not reachable from here.
func (s *UserService) UpdateProfile(ctx context.Context, actor Actor, update domain.ProfileUpdate) (*domain.User, error) {
	if update.Empty() {
		return nil, ErrNothingToUpdate
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, invalid("Name cannot be empty")
		}
		update.Name = &name
	}
	user, err := s.users.UpdateProfile(ctx, actor.ID, update)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) Reviews(ctx context.Context, userID primitive.ObjectID) ([]*domain.Rating, error) {
	if _, err := s.user(ctx, userID); err != nil {
		return nil, err
	}
	reviews, err := s.ratings.ListByReviewee(ctx, userID)
	if err != nil {
		return nil, err
	}
	if reviews == nil {
		reviews = []*domain.Rating{}
	}
	return reviews, nil
}

// AddReview stores one review per reviewer and reviewee and refreshes the reviewee's rating.
func (s *UserService) AddReview(ctx context.Context, actor Actor, revieweeID primitive.ObjectID, in ReviewInput) ([]*domain.Rating, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, ErrRatingRange
	}
	if revieweeID == actor.ID {
		return nil, ErrSelfReview
	}
	reviewee, err := s.user(ctx, revieweeID)
	if err != nil {
		return nil, err
	}

	rating := &domain.Rating{
		ReviewerID: actor.ID,
		RevieweeID: revieweeID,
		OrderID:    in.OrderID,
		ProductID:  in.ProductID,
		Rating:     in.Rating,
		Comment:    strings.TrimSpace(in.Comment),
	}
	if err := s.ratings.Create(ctx, rating); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyReviewed
		}
		return nil, err
	}

	stats, err := s.ratings.Stats(ctx, revieweeID)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetRating(ctx, revieweeID, stats); err != nil {
		return nil, err
	}

	s.emit.Emit(ctx, domain.EventPayload{
		EventType:  domain.EventReviewCreated,
		EntityType: "review",
		EntityID:   rating.ID.Hex(),
		ActorID:    actor.ID.Hex(),
		Recipients: hexes(reviewee.ID),
		Title:      "New review",
		Text:       fmt.Sprintf("You received a %d star review", in.Rating),
		Link:       "/users/" + reviewee.ID.Hex(),
	})

	return s.Reviews(ctx, revieweeID)
}

func (s *UserService) user(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
