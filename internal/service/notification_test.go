package service

import (
	"context"
	"testing"

	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNotifications_OwnerOnly(t *testing.T) {
	repo := &mockNotificationRepo{}
	svc := NewNotificationService(repo)
	ctx := context.Background()
	owner := Actor{ID: primitive.NewObjectID()}
	stranger := Actor{ID: primitive.NewObjectID()}

	n := &domain.Notification{UserID: owner.ID, Type: string(domain.EventMessageSent), Title: "New message"}
	require.NoError(t, repo.Create(ctx, n))

	assert.ErrorIs(t, svc.MarkRead(ctx, stranger, n.ID), ErrNotAuthorized)
	assert.ErrorIs(t, svc.Delete(ctx, stranger, n.ID), ErrNotAuthorized)
	assert.ErrorIs(t, svc.MarkRead(ctx, owner, primitive.NewObjectID()), ErrNotificationNotFound)

	require.NoError(t, svc.MarkRead(ctx, owner, n.ID))
	list, err := svc.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsRead)

	require.NoError(t, svc.Delete(ctx, owner, n.ID))
	list, err = svc.List(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNotifications_MarkAllRead(t *testing.T) {
	repo := &mockNotificationRepo{}
	svc := NewNotificationService(repo)
	ctx := context.Background()
	owner := Actor{ID: primitive.NewObjectID()}

	for range 3 {
		require.NoError(t, repo.Create(ctx, &domain.Notification{UserID: owner.ID, Title: "Order placed"}))
	}
	require.NoError(t, repo.Create(ctx, &domain.Notification{UserID: primitive.NewObjectID(), Title: "Other"}))

	n, err := svc.MarkAllRead(ctx, owner)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = svc.MarkAllRead(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, n)
}
