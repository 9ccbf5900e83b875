package service

import (
	"coachshare/backend/internal/domain"
	"coachshare/backend/internal/metrics"
	"coachshare/backend/internal/notify"
	"coachshare/backend/internal/repository"
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// NotificationInput describes a notification to store for one user.
type NotificationInput struct {
	User      primitive.ObjectID
	Title     string
	Message   string
	Type      domain.NotificationType
	RelatedID string
}

// --- Service Interface ---
type NotificationService interface {
	// Notify stores the notification and pushes it in real time. A failed push
	// is logged and does not fail the call.
	Notify(ctx context.Context, in NotificationInput) (*domain.Notification, error)
	List(ctx context.Context, userID primitive.ObjectID) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID primitive.ObjectID) error
	MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

// --- Service Implementation ---

type notificationService struct {
	repo   repository.NotificationRepository
	pusher notify.Pusher
	log    *zap.Logger
}

// NewNotificationService creates a new instance of notificationService. A nil
// pusher disables real-time delivery.
func NewNotificationService(repo repository.NotificationRepository, pusher notify.Pusher, log *zap.Logger) NotificationService {
	if pusher == nil {
		pusher = notify.NewNopPusher()
	}
	return &notificationService{repo: repo, pusher: pusher, log: log}
}

func (s *notificationService) Notify(ctx context.Context, in NotificationInput) (*domain.Notification, error) {
	if in.User.IsZero() || in.Title == "" {
		return nil, InvalidInput("notification user and title are required")
	}
	n := &domain.Notification{
		User:      in.User,
		Title:     in.Title,
		Message:   in.Message,
		Type:      in.Type,
		RelatedID: in.RelatedID,
	}
	if _, err := s.repo.Create(ctx, n); err != nil {
		return nil, Internal("store notification", err)
	}

	if err := s.pusher.Push(ctx, n); err != nil {
		metrics.PushFailures.Inc()
		s.log.Warn("push notification", zap.String("userId", in.User.Hex()), zap.Error(err))
	}
	return n, nil
}

func (s *notificationService) List(ctx context.Context, userID primitive.ObjectID) ([]domain.Notification, error) {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, Internal("list notifications", err)
	}
	return list, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID, notificationID primitive.ObjectID) error {
	err := s.repo.MarkRead(ctx, notificationID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotificationNotFound
	}
	if err != nil {
		return Internal("mark notification read", err)
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, Internal("mark notifications read", err)
	}
	return n, nil
}

// notifyQuietly sends a notification on behalf of another operation. Failures
// are logged only; the triggering operation has already been committed.
func notifyQuietly(ctx context.Context, svc NotificationService, log *zap.Logger, in NotificationInput) {
	if svc == nil {
		return
	}
	if _, err := svc.Notify(ctx, in); err != nil {
		log.Warn("notification not stored",
			zap.String("userId", in.User.Hex()),
			zap.String("type", string(in.Type)),
			zap.Error(err))
	}
}
