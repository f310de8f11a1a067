package model

import "time"

// ActionLog 一次被放行的限流行为（只追加，超过保留期后清理）
type ActionLog struct {
	ID        string     `gorm:"primaryKey;type:varchar(27)"`
	UserID    string     `gorm:"type:varchar(36);not null;index:idx_action_window"`
	Action    ActionKind `gorm:"type:varchar(16);not null;index:idx_action_window"`
	CreatedAt time.Time  `gorm:"not null;index:idx_action_window;index:idx_action_created"`
}

func (ActionLog) TableName() string { return "action_logs" }
