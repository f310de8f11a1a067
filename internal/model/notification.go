package model

import "time"

// NotificationType 通知来源
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationReport  NotificationType = "report"
)

// Notification 发给帖子作者的站内通知
type Notification struct {
	ID        string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string           `gorm:"type:varchar(36);not null;index:idx_notification_user_created" json:"user_id"`
	ActorID   string           `gorm:"type:varchar(36)" json:"actor_id"`
	PostID    string           `gorm:"type:varchar(36)" json:"post_id"`
	Type      NotificationType `gorm:"type:varchar(16);not null" json:"type"`
	Message   string           `gorm:"type:varchar(255)" json:"message"`
	IsRead    bool             `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt time.Time        `gorm:"index:idx_notification_user_created" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
