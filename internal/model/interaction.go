package model

import "time"

// Like 点赞关系（同一用户对同一帖子只能一条）
type Like struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	PostID    string `gorm:"type:varchar(36);not null;uniqueIndex:ux_like_post_user"`
	UserID    string `gorm:"type:varchar(36);not null;uniqueIndex:ux_like_post_user"`
	CreatedAt time.Time
}

func (Like) TableName() string { return "likes" }

// Comment 评论
type Comment struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PostID    string    `gorm:"type:varchar(36);not null;index:idx_comment_post_created" json:"post_id"`
	UserID    string    `gorm:"type:varchar(36);not null" json:"user_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `gorm:"index:idx_comment_post_created" json:"created_at"`
}

func (Comment) TableName() string { return "comments" }

// Report 举报（同一用户对同一帖子只能举报一次）
type Report struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	PostID     string `gorm:"type:varchar(36);not null;uniqueIndex:ux_report_post_reporter"`
	ReporterID string `gorm:"type:varchar(36);not null;uniqueIndex:ux_report_post_reporter"`
	Reason     string `gorm:"type:varchar(500)"`
	CreatedAt  time.Time
}

func (Report) TableName() string { return "reports" }

// All 返回需要迁移的全部模型
func All() []any {
	return []any{&User{}, &Post{}, &ActionLog{}, &Like{}, &Comment{}, &Report{}, &Notification{}}
}
