package service

import (
	"context"
	"errors"

	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const notificationPage = 50

type NotificationService struct {
	notifications repository.NotificationRepository
}

func NewNotificationService(notifications repository.NotificationRepository) *NotificationService {
	return &NotificationService{notifications: notifications}
}

func (s *NotificationService) List(ctx context.Context, actor Actor) ([]*domain.Notification, error) {
	return s.notifications.ListByUser(ctx, actor.ID, notificationPage)
}

func (s *NotificationService) MarkRead(ctx context.Context, actor Actor, id primitive.ObjectID) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	return s.notifications.MarkRead(ctx, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actor Actor) (int64, error) {
	return s.notifications.MarkAllRead(ctx, actor.ID)
}

func (s *NotificationService) Delete(ctx context.Context, actor Actor, id primitive.ObjectID) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	if err := s.notifications.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return ErrNotificationNotFound
		}
		return err
	}
	return nil
}

func (s *NotificationService) owned(ctx context.Context, actor Actor, id primitive.ObjectID) (*domain.Notification, error) {
	n, err := s.notifications.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	if n.UserID != actor.ID {
		return nil, ErrNotAuthorized
	}
	return n, nil
}
