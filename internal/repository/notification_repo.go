package repository

import (
	"context"

	"github.com/saeid-a/CoachConnectBack/internal/models"
)

type CreateNotificationInput struct {
	UserID   int64
	Audience string
	Level    string
	Title    string
	Message  string
}

type NotificationRepository struct {
	db DBTX
}

func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(
	ctx context.Context,
	input CreateNotificationInput,
) (*models.Notification, error) {
	query := `
		INSERT INTO notifications (user_id, audience, level, title, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, audience, level, title, message, is_read, created_at
	`
	var notification models.Notification
	err := r.db.QueryRow(ctx, query, input.UserID, input.Audience, input.Level, input.Title, input.Message).Scan(
		&notification.ID,
		&notification.UserID,
		&notification.Audience,
		&notification.Level,
		&notification.Title,
		&notification.Message,
		&notification.IsRead,
		&notification.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &notification, nil
}

func (r *NotificationRepository) ListByUser(
	ctx context.Context,
	userID int64,
	limit int,
	offset int,
) ([]models.Notification, error) {
	query := `
		SELECT id, user_id, audience, level, title, message, is_read, created_at
		FROM notifications
		WHERE user_id = $1 AND audience = 'user'
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]models.Notification, 0)
	for rows.Next() {
		var notification models.Notification
		if err := rows.Scan(
			&notification.ID,
			&notification.UserID,
			&notification.Audience,
			&notification.Level,
			&notification.Title,
			&notification.Message,
			&notification.IsRead,
			&notification.CreatedAt,
		); err != nil {
			return nil, err
		}
		notifications = append(notifications, notification)
	}
	return notifications, rows.Err()
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64) error {
	query := `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`
	_, err := r.db.Exec(ctx, query, userID)
	return err
}
