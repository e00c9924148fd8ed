package repository

import (
	"context"

	"stackit/internal/models"

	"gorm.io/gorm"
)

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository returns a GORM-backed NotificationRepository.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return mapError(r.db.WithContext(ctx).Create(n).Error, "Notification", n.UserID)
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]*models.Notification, error) {
	out := make([]*models.Notification, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, mapError(err, "Notification", userID)
	}
	return out, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, mapError(res.Error, "Notification", userID)
	}
	return res.RowsAffected, nil
}
