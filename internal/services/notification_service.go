package services

import (
	"context"
	"log"

	"github.com/saeid-a/CoachConnectBack/internal/models"
	"github.com/saeid-a/CoachConnectBack/internal/repository"
)

// PushSender delivers a push message to a device token. Implementations are
// best effort; callers never treat a send failure as fatal.
type PushSender interface {
	Send(ctx context.Context, token string, title string, body string) error
}

type notificationUserReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// notifier is what the domain services need from the notification layer.
type notifier interface {
	Notify(ctx context.Context, userID int64, audience string, level string, title string, message string) error
}

// sendNotification is the fire-and-forget form used on non-financial side
// effects: failures are logged, never propagated.
func sendNotification(ctx context.Context, n notifier, userID int64, level string, title string, message string) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, userID, models.AudienceUser, level, title, message); err != nil {
		log.Printf("notification to user %d failed: %v", userID, err)
	}
}

type NotificationService struct {
	notificationRepo *repository.NotificationRepository
	userRepo         notificationUserReader
	push             PushSender
}

func NewNotificationService(
	notificationRepo *repository.NotificationRepository,
	userRepo notificationUserReader,
	push PushSender,
) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		push:             push,
	}
}

// Notify stores a notification row and pushes it to the user's device when a
// token is registered. Push failures are logged and swallowed.
func (s *NotificationService) Notify(
	ctx context.Context,
	userID int64,
	audience string,
	level string,
	title string,
	message string,
) error {
	notification, err := s.notificationRepo.Create(ctx, repository.CreateNotificationInput{
		UserID:   userID,
		Audience: audience,
		Level:    level,
		Title:    title,
		Message:  message,
	})
	if err != nil {
		return err
	}

	if s.push == nil || notification.Audience != models.AudienceUser {
		return nil
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil || user.FCMToken == nil {
		return nil
	}
	if err := s.push.Send(ctx, *user.FCMToken, title, message); err != nil {
		log.Printf("push notification to user %d failed: %v", userID, err)
	}
	return nil
}

func (s *NotificationService) ListForUser(
	ctx context.Context,
	userID int64,
	limit int,
	offset int,
) ([]models.Notification, error) {
	notifications, err := s.notificationRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if err := s.notificationRepo.MarkAllRead(ctx, userID); err != nil {
		return nil, err
	}
	return notifications, nil
}
