package service

import (
	"coachshare/backend/internal/domain"
	"coachshare/backend/internal/repository/memory"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// MockPusher is a mock implementation of notify.Pusher
type MockPusher struct {
	mock.Mock
}

func (m *MockPusher) Push(ctx context.Context, n *domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func TestNotificationService_NotifyStoresAndPushes(t *testing.T) {
	store := memory.NewStore()
	pusher := new(MockPusher)
	user := primitive.NewObjectID()
	pusher.On("Push", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.User == user && !n.Read && !n.ID.IsZero()
	})).Return(nil).Once()

	svc := NewNotificationService(store.Notifications(), pusher, zap.NewNop())
	n, err := svc.Notify(context.Background(), NotificationInput{
		User:      user,
		Title:     "New regimen",
		Message:   "Base block was assigned to you",
		Type:      domain.NotificationRegimenAssigned,
		RelatedID: "r-1",
	})
	require.NoError(t, err)
	assert.False(t, n.Read)
	pusher.AssertExpectations(t)

	list, err := svc.List(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "r-1", list[0].RelatedID)
}

func TestNotificationService_PushFailureIsNotReturned(t *testing.T) {
	store := memory.NewStore()
	pusher := new(MockPusher)
	pusher.On("Push", mock.Anything, mock.Anything).Return(errors.New("redis down"))

	svc := NewNotificationService(store.Notifications(), pusher, zap.NewNop())
	_, err := svc.Notify(context.Background(), NotificationInput{User: primitive.NewObjectID(), Title: "x"})
	assert.NoError(t, err)
}

func TestNotificationService_MarkRead(t *testing.T) {
	ctx := context.Background()
	svc := NewNotificationService(memory.NewStore().Notifications(), nil, zap.NewNop())
	user := primitive.NewObjectID()
	other := primitive.NewObjectID()

	n1, err := svc.Notify(ctx, NotificationInput{User: user, Title: "one"})
	require.NoError(t, err)
	_, err = svc.Notify(ctx, NotificationInput{User: user, Title: "two"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.MarkRead(ctx, other, n1.ID), ErrNotificationNotFound)
	require.NoError(t, svc.MarkRead(ctx, user, n1.ID))

	count, err := svc.MarkAllRead(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	list, err := svc.List(ctx, user)
	require.NoError(t, err)
	for _, n := range list {
		assert.True(t, n.Read)
	}
}

func TestNotificationService_NotifyValidation(t *testing.T) {
	svc := NewNotificationService(memory.NewStore().Notifications(), nil, zap.NewNop())
	_, err := svc.Notify(context.Background(), NotificationInput{Title: "x"})
	assert.Equal(t, KindInvalidInput, KindOf(err))
}
