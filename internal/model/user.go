package model

import "time"

// User 用户（仅限流与注册校验所需字段）
type User struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)"`
	Username      string    `gorm:"type:varchar(64);uniqueIndex"`
	Email         string    `gorm:"type:varchar(255);index:idx_user_email_created"`
	Role          Role      `gorm:"type:varchar(16);not null;default:normal"`
	EmailVerified bool      `gorm:"not null;default:false"`
	Banned        bool      `gorm:"not null;default:false"`
	CreatedAt     time.Time `gorm:"index:idx_user_email_created"`
	UpdatedAt     time.Time
}

func (User) TableName() string { return "users" }

// IsAdmin 是否管理员
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
