package repository

import (
	"context"

	"tapcard/internal/feed"
	"tapcard/internal/models"

	"gorm.io/gorm"
)

// NotificationRepository defines the interface for notification data operations
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListForUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) error
}

// notificationRepository implements NotificationRepository
type notificationRepository struct {
	db  *gorm.DB
	pub feed.Publisher
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *gorm.DB, pub feed.Publisher) NotificationRepository {
	return &notificationRepository{db: db, pub: pub}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if err := r.db.WithContext(ctx).Create(notification).Error; err != nil {
		return models.NewInternalError(err)
	}
	if r.pub != nil {
		r.pub.Publish(feed.Event{
			Table:   feed.TableNotifications,
			Type:    feed.EventInsert,
			RowID:   notification.ID,
			UserIDs: []string{notification.UserID},
		})
	}
	return nil
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var notifications []models.Notification
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return notifications, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Notification", id)
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
