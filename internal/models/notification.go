package models

import "time"

// NotificationKind distinguishes why a notification was raised.
type NotificationKind string

const (
	NotificationAnswer  NotificationKind = "answer"
	NotificationMention NotificationKind = "mention"
)

// Notification is an inbox entry for a user.
type Notification struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	UserID     uint             `gorm:"index;not null" json:"userId"`
	Kind       NotificationKind `gorm:"size:16;not null" json:"kind"`
	Message    string           `gorm:"not null" json:"message"`
	QuestionID uint             `json:"questionId,omitempty"`
	AnswerID   uint             `json:"answerId,omitempty"`
	IsRead     bool             `gorm:"not null;default:false;index" json:"isRead"`
	CreatedAt  time.Time        `gorm:"index" json:"createdAt"`
}
